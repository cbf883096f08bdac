// backend/internal/adapters/out/docstore/ticket_repository.go
package docstore

import (
	"context"
	"strings"

	"booknest/internal/application/persistence"
	"booknest/internal/domain/common"
	ticketdom "booknest/internal/domain/ticket"
)

type TicketRepository struct {
	store Store
}

func NewTicketRepository(s Store) *TicketRepository {
	return &TicketRepository{store: s}
}

var _ ticketdom.Repository = (*TicketRepository)(nil)

func (r *TicketRepository) List(ctx context.Context, userID string) ([]ticketdom.Ticket, error) {
	all, err := load[ticketdom.Ticket](ctx, r.store, ColTickets)
	if err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return all, nil
	}
	out := make([]ticketdom.Ticket, 0, len(all))
	for _, t := range all {
		if t.UserID == uid {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *TicketRepository) ListByEmail(ctx context.Context, email string) ([]ticketdom.Ticket, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]ticketdom.Ticket, 0, len(all))
	for _, t := range all {
		if t.BelongsTo(email) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*ticketdom.Ticket, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return nil, err
	}
	tid := persistence.IDString(id)
	for i := range all {
		if all[i].ID.String() == tid {
			return &all[i], nil
		}
	}
	return nil, ticketdom.ErrNotFound
}

func (r *TicketRepository) Create(ctx context.Context, t ticketdom.Ticket) (ticketdom.Ticket, error) {
	if t.Messages == nil {
		t.Messages = []ticketdom.Message{}
	}
	doc, err := toDocument(t)
	if err != nil {
		return t, err
	}
	res, err := r.store.Save(ctx, ColTickets, doc, t.ID.String())
	if err != nil {
		return t, err
	}
	t.ID = common.ID(res.ID)
	return t, nil
}

func (r *TicketRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	_, err := r.store.Update(ctx, ColTickets, id, fieldsOf(fields))
	return err
}

func (r *TicketRepository) Replace(ctx context.Context, t ticketdom.Ticket) error {
	if t.ID.IsZero() {
		return ticketdom.ErrNotFound
	}
	doc, err := toDocument(t)
	if err != nil {
		return err
	}
	_, err = r.store.Save(ctx, ColTickets, doc, t.ID.String())
	return err
}
