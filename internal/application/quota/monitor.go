// internal/application/quota/monitor.go
package quota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"booknest/internal/infra/localstore"
)

const DefaultCheckInterval = 5 * time.Minute

type Options struct {
	Capacity int64
	Interval time.Duration
	// Remote disables monitoring (cart repair still runs): a remote backend has no local ceiling.
	Remote   bool
	OnStatus func(Status)
	Now      func() time.Time
	Logger   *zap.Logger
}

// Monitor watches local storage usage and sweeps old data when it gets critical.
type Monitor struct {
	local localstore.Store
	opts  Options
	log   *zap.Logger
}

func NewMonitor(local localstore.Store, opts Options) *Monitor {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacityBytes
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultCheckInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{local: local, opts: opts, log: opts.Logger.Named("quota")}
}

func (m *Monitor) Capacity() int64 { return m.opts.Capacity }

// Check measures current usage.
func (m *Monitor) Check(ctx context.Context) (Status, error) {
	all, err := localstore.Snapshot(ctx, m.local)
	if err != nil {
		return Status{}, fmt.Errorf("quota: snapshot: %w", err)
	}
	return statusOf(Usage(all), m.opts.Capacity), nil
}

// Sweep runs the retention sweep and returns the usage afterwards.
func (m *Monitor) Sweep(ctx context.Context) (SweepReport, Status, error) {
	rep, err := Sweep(ctx, m.local, m.opts.Now())
	if err != nil {
		return rep, Status{}, err
	}
	st, err := m.Check(ctx)
	return rep, st, err
}

func (m *Monitor) RepairCart(ctx context.Context) (map[string]CartRepair, error) {
	return RepairCart(ctx, m.local, m.opts.Now())
}

// Tick is one check; a critical reading triggers a sweep and a re-check.
func (m *Monitor) Tick(ctx context.Context) (Status, error) {
	st, err := m.Check(ctx)
	if err != nil {
		return st, err
	}
	if st.Level == LevelCritical {
		m.log.Warn("storage critical, sweeping",
			zap.String("used", st.Formatted),
			zap.Float64("percentage", st.Percentage),
		)
		rep, after, err := m.Sweep(ctx)
		if err != nil {
			return st, err
		}
		m.log.Info("sweep done", zap.Int("removed", rep.Total()), zap.String("used", after.Formatted))
		st = after
	}
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(st)
	}
	return st, nil
}

// Run repairs carts once, then ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if res, err := m.RepairCart(ctx); err != nil {
		m.log.Warn("cart repair failed", zap.Error(err))
	} else {
		for key, r := range res {
			if r != CartClean {
				m.log.Info("cart repaired", zap.String("key", key), zap.String("result", string(r)))
			}
		}
	}
	if m.opts.Remote {
		m.log.Info("remote backend configured, local quota monitoring off")
		return nil
	}

	tick := func() {
		if _, err := m.Tick(ctx); err != nil {
			m.log.Warn("check failed", zap.Error(err))
		}
	}
	tick()
	t := time.NewTicker(m.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			tick()
		}
	}
}
