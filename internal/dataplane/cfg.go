package dataplane

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/softroute/softroute/internal/link"
	"github.com/softroute/softroute/internal/logging"
)

// Config is the data plane configuration.
type Config struct {
	// Logging configuration.
	Logging logging.Config `yaml:"logging"`
	// Tick is the cadence at which neighbor cache lifetimes advance.
	Tick Duration `yaml:"tick"`
	// PendingLimit caps the bytes of datagrams queued behind a single
	// unresolved neighbor on each interface. Zero means unlimited.
	PendingLimit datasize.ByteSize `yaml:"pending_limit"`
	// TraceFrames is a glob over interface names; transmitted frames on
	// matching interfaces are logged at debug level.
	TraceFrames string `yaml:"trace_frames"`
	// ImportKernelRoutes seeds the routing table from the kernel's main
	// IPv4 routing table on startup (Linux only). Kernel routes whose
	// device does not match a configured interface name are skipped.
	ImportKernelRoutes bool `yaml:"import_kernel_routes"`
	// Interfaces lists the router's interfaces, in index order.
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	// Routes lists the static forwarding rules.
	Routes []RouteConfig `yaml:"routes"`
}

// InterfaceConfig describes a single network interface.
type InterfaceConfig struct {
	// Name identifies the interface in logs and route rules.
	Name string `yaml:"name"`
	// HardwareAddr is the interface's MAC address.
	HardwareAddr string `yaml:"hardware_addr"`
	// Addr is the interface's IPv4 address.
	Addr string `yaml:"addr"`
	// Link configures the UDP transport the interface is attached to.
	Link link.Config `yaml:"link"`
}

// RouteConfig describes a single forwarding rule.
type RouteConfig struct {
	// Prefix is the destination network, e.g. "10.1.0.0/16".
	Prefix string `yaml:"prefix"`
	// NextHop is the neighbor to forward through. Empty means the network
	// is directly attached.
	NextHop string `yaml:"next_hop"`
	// Interface is the name of the egress interface.
	Interface string `yaml:"interface"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.Config{
			Level: zapcore.InfoLevel,
		},
		Tick:         Duration(250 * time.Millisecond),
		PendingLimit: 256 * datasize.KB,
	}
}

// LoadConfig loads the configuration from the given path.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}

	return cfg, nil
}

// Duration is a time.Duration that deserializes from human-readable YAML
// ("250ms", "1s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}

	d, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", text, err)
	}

	*m = Duration(d)
	return nil
}
