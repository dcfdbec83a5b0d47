// Package dataplane assembles interfaces, routes, and link transports into
// a running software router.
//
// The core components are single-threaded by design; the data plane
// serializes all access to them behind one mutex and drives time from a
// wall-clock ticker.
package dataplane

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/softroute/softroute/internal/link"
	"github.com/softroute/softroute/internal/netif"
	"github.com/softroute/softroute/internal/proto/ethernet"
	"github.com/softroute/softroute/internal/router"
)

// DataPlane is a router wired to per-interface UDP link transports.
type DataPlane struct {
	cfg    *Config
	router *router.Router
	// names holds interface names by port index.
	names []string
	// portByName maps interface names to port indices.
	portByName map[string]int
	links      []*link.Transport
	trace      glob.Glob

	// mu serializes access to the router and its interfaces.
	mu  sync.Mutex
	log *zap.SugaredLogger
}

// Option is a functional option for the DataPlane.
type Option func(*DataPlane)

// WithLog sets the logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(m *DataPlane) {
		m.log = log
	}
}

// New builds a data plane from configuration: one interface and port per
// entry, static routes resolved against interface names, and optionally
// routes imported from the kernel.
func New(cfg *Config, opts ...Option) (*DataPlane, error) {
	m := &DataPlane{
		cfg:        cfg,
		portByName: map[string]int{},
		log:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if len(cfg.Interfaces) == 0 {
		return nil, fmt.Errorf("no interfaces configured")
	}

	if cfg.TraceFrames != "" {
		trace, err := glob.Compile(cfg.TraceFrames)
		if err != nil {
			return nil, fmt.Errorf("failed to compile trace_frames pattern %q: %w", cfg.TraceFrames, err)
		}
		m.trace = trace
	}

	m.router = router.New(router.WithLog(m.log))

	for _, ifaceCfg := range cfg.Interfaces {
		if _, ok := m.portByName[ifaceCfg.Name]; ok {
			return nil, fmt.Errorf("duplicate interface name %q", ifaceCfg.Name)
		}

		mac, err := ethernet.ParseAddr(ifaceCfg.HardwareAddr)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", ifaceCfg.Name, err)
		}
		addr, err := netip.ParseAddr(ifaceCfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("interface %q: failed to parse address: %w", ifaceCfg.Name, err)
		}

		iface := netif.New(mac, addr,
			netif.WithLog(m.log.Named(ifaceCfg.Name)),
			netif.WithPendingLimit(cfg.PendingLimit),
		)
		idx := m.router.AddInterface(iface)
		m.names = append(m.names, ifaceCfg.Name)
		m.portByName[ifaceCfg.Name] = idx
	}

	for _, routeCfg := range cfg.Routes {
		if err := m.addRoute(routeCfg); err != nil {
			return nil, err
		}
	}

	if cfg.ImportKernelRoutes {
		if err := m.importKernelRoutes(); err != nil {
			return nil, fmt.Errorf("failed to import kernel routes: %w", err)
		}
	}

	m.log.Infof("data plane configured with %d interfaces and %d routes",
		len(m.names), m.router.RouteCount())
	return m, nil
}

// addRoute resolves a configured route against interface names and
// installs it.
func (m *DataPlane) addRoute(cfg RouteConfig) error {
	prefix, err := netip.ParsePrefix(cfg.Prefix)
	if err != nil {
		return fmt.Errorf("route %q: failed to parse prefix: %w", cfg.Prefix, err)
	}

	var nextHop netip.Addr
	if cfg.NextHop != "" {
		nextHop, err = netip.ParseAddr(cfg.NextHop)
		if err != nil {
			return fmt.Errorf("route %q: failed to parse next hop: %w", cfg.Prefix, err)
		}
	}

	idx, ok := m.portByName[cfg.Interface]
	if !ok {
		return fmt.Errorf("route %q: unknown interface %q", cfg.Prefix, cfg.Interface)
	}

	m.router.AddRoute(prefix, nextHop, idx)
	return nil
}

// Run opens the link transports and pumps frames until the context is
// cancelled.
func (m *DataPlane) Run(ctx context.Context) error {
	wg, ctx := errgroup.WithContext(ctx)

	for idx := range m.names {
		transport, err := link.Open(ctx, m.cfg.Interfaces[idx].Link,
			link.WithLog(m.log.Named(m.names[idx])),
		)
		if err != nil {
			m.closeLinks()
			return err
		}
		m.links = append(m.links, transport)
	}

	// Closing the transports is what unblocks the receive loops.
	wg.Go(func() error {
		<-ctx.Done()
		m.closeLinks()
		return nil
	})

	for idx := range m.links {
		wg.Go(func() error {
			return m.receiveLoop(ctx, idx)
		})
	}
	wg.Go(func() error {
		return m.tickLoop(ctx)
	})

	m.log.Info("data plane running")
	return wg.Wait()
}

// receiveLoop feeds frames from one link into its port and lets the router
// react immediately.
func (m *DataPlane) receiveLoop(ctx context.Context, idx int) error {
	for {
		frame, err := m.links[idx].ReadFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, link.ErrMalformedFrame) {
				m.log.Debugf("interface %s: %v", m.names[idx], err)
				continue
			}
			return fmt.Errorf("interface %s: receive failed: %w", m.names[idx], err)
		}

		m.mu.Lock()
		m.router.Port(idx).Deliver(frame)
		m.router.Process()
		m.flushTransmit()
		m.mu.Unlock()
	}
}

// tickLoop advances the neighbor caches and drains any frames expiry
// produced room for.
func (m *DataPlane) tickLoop(ctx context.Context) error {
	tick := time.Duration(m.cfg.Tick)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(prev)
			prev = now

			m.mu.Lock()
			for idx := range m.names {
				m.router.Port(idx).Tick(elapsed)
			}
			m.router.Process()
			m.flushTransmit()
			m.mu.Unlock()
		}
	}
}

// flushTransmit moves every queued outbound frame onto its link. Callers
// must hold mu.
func (m *DataPlane) flushTransmit() {
	for idx := range m.names {
		port := m.router.Port(idx)
		for {
			frame, ok := port.PollFrame()
			if !ok {
				break
			}

			if m.trace != nil && m.trace.Match(m.names[idx]) {
				m.log.Debugw("transmit frame",
					zap.String("interface", m.names[idx]),
					zap.Stringer("dst", frame.Header.Dst),
					zap.Stringer("type", frame.Header.Type),
					zap.Int("payload_bytes", len(frame.Payload)),
				)
			}

			if err := m.links[idx].WriteFrame(frame); err != nil {
				m.log.Warnw("failed to transmit frame",
					zap.String("interface", m.names[idx]),
					zap.Error(err),
				)
			}
		}
	}
}

// closeLinks closes every opened transport once.
func (m *DataPlane) closeLinks() {
	for _, transport := range m.links {
		_ = transport.Close()
	}
}
