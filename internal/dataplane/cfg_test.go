package dataplane

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "softroute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
tick: 500ms
pending_limit: 65536
trace_frames: "lan*"
interfaces:
  - name: lan0
    hardware_addr: "02:00:00:00:00:01"
    addr: 10.0.0.1
    link:
      listen: 127.0.0.1:9001
      peer: 127.0.0.1:9002
routes:
  - prefix: 10.0.0.0/8
    interface: lan0
  - prefix: 0.0.0.0/0
    next_hop: 10.0.0.7
    interface: lan0
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	require.Equal(t, Duration(500*time.Millisecond), cfg.Tick)
	require.Equal(t, 64*datasize.KB, cfg.PendingLimit)
	require.Equal(t, "lan*", cfg.TraceFrames)

	require.Len(t, cfg.Interfaces, 1)
	require.Equal(t, "lan0", cfg.Interfaces[0].Name)
	require.Equal(t, "127.0.0.1:9001", cfg.Interfaces[0].Link.Listen)

	require.Len(t, cfg.Routes, 2)
	require.Equal(t, "", cfg.Routes[0].NextHop)
	require.Equal(t, "10.0.0.7", cfg.Routes[1].NextHop)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
interfaces:
  - name: lan0
    hardware_addr: "02:00:00:00:00:01"
    addr: 10.0.0.1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, zapcore.InfoLevel, cfg.Logging.Level)
	require.Equal(t, Duration(250*time.Millisecond), cfg.Tick)
	require.Equal(t, 256*datasize.KB, cfg.PendingLimit)
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, "tick: soon\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
