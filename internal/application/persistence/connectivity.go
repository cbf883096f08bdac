// internal/application/persistence/connectivity.go
package persistence

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultProbeInterval = 15 * time.Second
	probeTimeout         = 5 * time.Second
)

// ConnectivityMonitor probes the remote and feeds the result into SetOnline.
type ConnectivityMonitor struct {
	backend  *Backend
	interval time.Duration
	log      *zap.Logger
}

func NewConnectivityMonitor(b *Backend, interval time.Duration, lg *zap.Logger) *ConnectivityMonitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &ConnectivityMonitor{backend: b, interval: interval, log: lg.Named("connectivity")}
}

// Probe runs one reachability check.
func (m *ConnectivityMonitor) Probe(ctx context.Context) bool {
	if m == nil || m.backend == nil || m.backend.remote == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.backend.remote.Ping(pctx)
	if err != nil {
		m.log.Debug("probe failed", zap.Error(err))
	}
	if serr := m.backend.SetOnline(ctx, err == nil); serr != nil {
		m.log.Warn("flush after reconnect failed", zap.Error(serr))
	}
	return err == nil
}

// Run probes on every tick until ctx is cancelled.
func (m *ConnectivityMonitor) Run(ctx context.Context) error {
	if m == nil || m.backend == nil || m.backend.remote == nil {
		return nil
	}
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Probe(ctx)
		}
	}
}
