// internal/application/notification/admin_poller.go
package notification

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"booknest/internal/domain/common"
	notifdom "booknest/internal/domain/notification"
	orderdom "booknest/internal/domain/order"
	ticketdom "booknest/internal/domain/ticket"
)

const (
	DefaultAdminInterval  = 5 * time.Second
	DefaultUserInterval   = 5 * time.Second
	DefaultTicketInterval = 10 * time.Second
)

// AdminPoller diffs orders and tickets against the previous tick and emits
// admin notifications for new orders, payment-proof uploads, new tickets and
// overdue unpaid orders.
type AdminPoller struct {
	orders   orderdom.Repository
	tickets  ticketdom.Repository
	store    *Store
	interval time.Duration
	hooks    Hooks
	now      func() time.Time
	log      *zap.Logger

	mu          sync.Mutex
	primed      bool
	lastOrders  map[string]orderdom.Order
	lastTickets map[string]struct{}
}

type AdminPollerOptions struct {
	Interval time.Duration
	Hooks    Hooks
	Now      func() time.Time
	Logger   *zap.Logger
}

func NewAdminPoller(orders orderdom.Repository, tickets ticketdom.Repository, store *Store, opts AdminPollerOptions) *AdminPoller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultAdminInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &AdminPoller{
		orders:   orders,
		tickets:  tickets,
		store:    store,
		interval: opts.Interval,
		hooks:    opts.Hooks,
		now:      opts.Now,
		log:      opts.Logger.Named("admin_poller"),
	}
}

// Prime records the current snapshot without emitting anything, so records
// that existed before the poller started are not reported as new.
func (p *AdminPoller) Prime(ctx context.Context) error {
	orders, tickets, err := p.snapshot(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.retain(orders, tickets)
	p.mu.Unlock()
	return nil
}

// PrimeEmpty marks the poller primed with an empty baseline, so the next Scan
// reports every order and ticket the admin list does not mention yet.
func (p *AdminPoller) PrimeEmpty() {
	p.mu.Lock()
	p.retain(nil, nil)
	p.mu.Unlock()
}

func (p *AdminPoller) snapshot(ctx context.Context) ([]orderdom.Order, []ticketdom.Ticket, error) {
	orders, err := p.orders.List(ctx, "")
	if err != nil {
		return nil, nil, fmt.Errorf("admin_poller: load orders: %w", err)
	}
	tickets, err := p.tickets.List(ctx, "")
	if err != nil {
		return nil, nil, fmt.Errorf("admin_poller: load tickets: %w", err)
	}
	return orders, tickets, nil
}

func (p *AdminPoller) retain(orders []orderdom.Order, tickets []ticketdom.Ticket) {
	p.lastOrders = make(map[string]orderdom.Order, len(orders))
	for _, o := range orders {
		p.lastOrders[o.ID.String()] = o
	}
	p.lastTickets = make(map[string]struct{}, len(tickets))
	for _, t := range tickets {
		p.lastTickets[t.ID.String()] = struct{}{}
	}
	p.primed = true
}

// Scan runs one Idle → Scan → (Idle | Emit) cycle and returns what it emitted.
func (p *AdminPoller) Scan(ctx context.Context) ([]notifdom.Record, error) {
	orders, tickets, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.primed {
		p.retain(orders, tickets)
		return nil, nil
	}

	now := p.now()
	var emitted []notifdom.Record
	// several pollers may share one store, so every emission goes through AddUnique
	emit := func(rec notifdom.Record) {
		out, added, err := p.store.AddUnique(ctx, AdminList, rec)
		if err != nil {
			p.log.Warn("add notification failed", zap.String("type", string(rec.Type)), zap.Error(err))
			return
		}
		if added {
			emitted = append(emitted, out)
			p.hooks.toast(out)
		}
	}

	for _, o := range orders {
		id := o.ID.String()
		prev, known := p.lastOrders[id]
		if !known {
			emit(notifdom.Record{
				Title:     "New Order Received",
				Message:   fmt.Sprintf("Order #%s has been placed.", id),
				Type:      notifdom.TypeOrder,
				RelatedID: common.ID(id),
				Link:      AdminOrderLink(id),
			})
			continue
		}
		if prev.PaymentStatus != orderdom.PaymentPaying && o.PaymentStatus == orderdom.PaymentPaying {
			emit(notifdom.Record{
				Title:     "Payment Proof Uploaded",
				Message:   fmt.Sprintf("Payment proof uploaded for Order #%s. Please verify.", id),
				Type:      notifdom.TypePayment,
				RelatedID: common.ID(id),
				Link:      AdminOrderLink(id),
				EventKey:  paymentEventKey(o),
			})
		}
	}

	for _, t := range tickets {
		id := t.ID.String()
		if _, known := p.lastTickets[id]; known {
			continue
		}
		emit(notifdom.Record{
			Title:     "New Support Ticket",
			Message:   fmt.Sprintf("Ticket #%s from %s", id, t.FBName),
			Type:      notifdom.TypeTicket,
			RelatedID: common.ID(id),
			Link:      AdminTicketLink(id),
		})
	}

	for _, o := range orders {
		if !o.Overdue(now) {
			continue
		}
		id := o.ID.String()
		emit(notifdom.Record{
			Title:     "Order Overdue",
			Message:   fmt.Sprintf("Order #%s is unpaid after 24 hours.", id),
			Type:      notifdom.TypeOverdue,
			RelatedID: common.ID(id),
			Link:      AdminOrderLink(id),
		})
	}

	p.retain(orders, tickets)

	if len(emitted) > 0 {
		list, err := p.store.Records(ctx, AdminList, "")
		if err == nil {
			p.hooks.render(list)
			p.hooks.badge(Unread(list))
		}
	}
	return emitted, nil
}

// paymentEventKey identifies one unpaid→paying transition. A rejected proof
// followed by a new upload gets a new key.
func paymentEventKey(o orderdom.Order) string {
	at := o.PaymentProofAt
	if at.IsZero() {
		at = o.UpdatedAt
	}
	if at.IsZero() {
		return "payment:" + o.ID.String()
	}
	return "payment:" + o.ID.String() + "@" + strconv.FormatInt(at.UnixMilli(), 10)
}

// Run primes and then scans on every tick until ctx is cancelled.
func (p *AdminPoller) Run(ctx context.Context) error {
	if err := p.Prime(ctx); err != nil {
		p.log.Warn("prime failed", zap.Error(err))
	}
	if n, err := p.store.UnreadCount(ctx, AdminList, ""); err == nil {
		p.hooks.badge(n)
	}

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := p.Scan(ctx); err != nil {
				p.log.Warn("scan failed", zap.Error(err))
			}
		}
	}
}
