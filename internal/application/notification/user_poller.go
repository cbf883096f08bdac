// internal/application/notification/user_poller.go
package notification

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	ticketdom "booknest/internal/domain/ticket"
)

// UserPoller refreshes one buyer's unread badge.
type UserPoller struct {
	store    *Store
	userID   string
	interval time.Duration
	hooks    Hooks
	log      *zap.Logger
}

func NewUserPoller(store *Store, userID string, interval time.Duration, hooks Hooks, lg *zap.Logger) *UserPoller {
	if interval <= 0 {
		interval = DefaultUserInterval
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &UserPoller{
		store:    store,
		userID:   strings.TrimSpace(userID),
		interval: interval,
		hooks:    hooks,
		log:      lg.Named("user_poller"),
	}
}

func (p *UserPoller) Tick(ctx context.Context) (int, error) {
	n, err := p.store.UnreadCount(ctx, UserList, p.userID)
	if err != nil {
		return 0, err
	}
	p.hooks.badge(n)
	return n, nil
}

func (p *UserPoller) Run(ctx context.Context) error {
	return every(ctx, p.interval, func() {
		if _, err := p.Tick(ctx); err != nil {
			p.log.Warn("tick failed", zap.String("userId", p.userID), zap.Error(err))
		}
	})
}

// TicketUnreadPoller counts a customer's tickets carrying an unread admin reply.
type TicketUnreadPoller struct {
	tickets  ticketdom.Repository
	email    string
	interval time.Duration
	hooks    Hooks
	log      *zap.Logger
}

func NewTicketUnreadPoller(tickets ticketdom.Repository, email string, interval time.Duration, hooks Hooks, lg *zap.Logger) *TicketUnreadPoller {
	if interval <= 0 {
		interval = DefaultTicketInterval
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &TicketUnreadPoller{
		tickets:  tickets,
		email:    strings.TrimSpace(email),
		interval: interval,
		hooks:    hooks,
		log:      lg.Named("ticket_poller"),
	}
}

func (p *TicketUnreadPoller) Tick(ctx context.Context) (int, error) {
	if p.email == "" {
		return 0, nil
	}
	mine, err := p.tickets.ListByEmail(ctx, p.email)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range mine {
		if t.UnreadByCustomer() {
			n++
		}
	}
	p.hooks.badge(n)
	return n, nil
}

func (p *TicketUnreadPoller) Run(ctx context.Context) error {
	return every(ctx, p.interval, func() {
		if _, err := p.Tick(ctx); err != nil {
			p.log.Warn("tick failed", zap.Error(err))
		}
	})
}

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, d time.Duration, fn func()) error {
	fn()
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn()
		}
	}
}
