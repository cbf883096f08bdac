// backend/internal/application/usecase/ticket_usecase.go
package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"booknest/internal/application/notification"
	"booknest/internal/application/persistence"
	"booknest/internal/domain/common"
	notifdom "booknest/internal/domain/notification"
	ticketdom "booknest/internal/domain/ticket"
	userdom "booknest/internal/domain/user"
)

type TicketInput struct {
	FBName  string   `json:"fbName"`
	FBLink  string   `json:"fbLink"`
	Subject string   `json:"subject"`
	Details string   `json:"details"`
	OrderID string   `json:"orderId,omitempty"`
	Images  []string `json:"images,omitempty"`
}

type TicketUsecase struct {
	tickets ticketdom.Repository
	users   userdom.Repository
	notes   *notification.Store
	clock   Clock
	log     *zap.Logger
}

func NewTicketUsecase(tickets ticketdom.Repository, users userdom.Repository, notes *notification.Store, clock Clock, lg *zap.Logger) *TicketUsecase {
	if clock == nil {
		clock = systemClock{}
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &TicketUsecase{tickets: tickets, users: users, notes: notes, clock: clock, log: lg.Named("ticket_usecase")}
}

func (uc *TicketUsecase) Create(ctx context.Context, in TicketInput) (ticketdom.Ticket, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return ticketdom.Ticket{}, err
	}
	if strings.TrimSpace(a.Email) == "" {
		return ticketdom.Ticket{}, ticketdom.ErrInvalidEmail
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return ticketdom.Ticket{}, ticketdom.ErrInvalidSubject
	}
	details := strings.TrimSpace(in.Details)
	if details == "" {
		return ticketdom.Ticket{}, ticketdom.ErrInvalidDetails
	}
	name := strings.TrimSpace(in.FBName)
	if name == "" {
		name = a.Name
	}

	now := common.At(uc.clock.Now())
	return uc.tickets.Create(ctx, ticketdom.Ticket{
		UserID:                a.UserID,
		Email:                 a.Email,
		FBName:                name,
		FBLink:                strings.TrimSpace(in.FBLink),
		Subject:               subject,
		Details:               details,
		OrderID:               strings.TrimSpace(in.OrderID),
		Images:                in.Images,
		Status:                ticketdom.StatusOpen,
		Messages:              []ticketdom.Message{},
		LastCustomerMessageAt: now,
		Timestamp:             now,
	})
}

// ListMine returns the caller's tickets, newest first.
func (uc *TicketUsecase) ListMine(ctx context.Context) ([]ticketdom.Ticket, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := uc.tickets.ListByEmail(ctx, a.Email)
	if err != nil {
		return nil, err
	}
	sortTickets(list)
	return list, nil
}

func (uc *TicketUsecase) ListAll(ctx context.Context) ([]ticketdom.Ticket, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	list, err := uc.tickets.List(ctx, "")
	if err != nil {
		return nil, err
	}
	sortTickets(list)
	return list, nil
}

func (uc *TicketUsecase) Get(ctx context.Context, id string) (*ticketdom.Ticket, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	t, err := uc.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsAdmin() && !t.BelongsTo(a.Email) {
		return nil, ticketdom.ErrNotFound
	}
	return t, nil
}

// Reply appends a message. Admin replies notify the ticket owner.
func (uc *TicketUsecase) Reply(ctx context.Context, id, content string, images []string) (*ticketdom.Ticket, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	t, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sender := ticketdom.SenderCustomer
	if a.IsAdmin() {
		sender = ticketdom.SenderAdmin
	}
	if err := t.AddMessage(sender, content, images, uc.clock.Now()); err != nil {
		return nil, err
	}
	if err := uc.tickets.Replace(ctx, *t); err != nil {
		return nil, err
	}
	if sender == ticketdom.SenderAdmin {
		uc.notifyOwner(ctx, t, "New Support Response",
			fmt.Sprintf("Admin responded to your ticket: %s", t.Subject), notifdom.TypeInfo)
	}
	return t, nil
}

// MarkRead records that the customer has seen the latest admin reply.
func (uc *TicketUsecase) MarkRead(ctx context.Context, id string) error {
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	t, err := uc.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.BelongsTo(a.Email) {
		return ticketdom.ErrForbidden
	}
	return uc.tickets.Update(ctx, t.ID.String(), map[string]any{
		"customerReadAt": persistence.Timestamp(uc.clock.Now()),
	})
}

// SetStatus closes or reopens a ticket. Owners may only close their own.
func (uc *TicketUsecase) SetStatus(ctx context.Context, id string, status ticketdom.Status) error {
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	if status != ticketdom.StatusOpen && status != ticketdom.StatusClosed {
		return ErrInvalidArgument
	}
	t, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}
	if !a.IsAdmin() && status != ticketdom.StatusClosed {
		return ticketdom.ErrForbidden
	}
	if t.Status == status {
		return nil
	}
	if err := uc.tickets.Update(ctx, t.ID.String(), map[string]any{"status": string(status)}); err != nil {
		return err
	}
	if a.IsAdmin() {
		label, typ := "Reopened", notifdom.TypeInfo
		if status == ticketdom.StatusClosed {
			label, typ = "Closed", notifdom.TypeSuccess
		}
		uc.notifyOwner(ctx, t, "Ticket "+label,
			fmt.Sprintf("Your support ticket %q has been %s.", t.Subject, status), typ)
	}
	return nil
}

// UnreadCount counts the caller's tickets with an unseen admin reply.
func (uc *TicketUsecase) UnreadCount(ctx context.Context) (int, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return 0, err
	}
	list, err := uc.tickets.ListByEmail(ctx, a.Email)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range list {
		if t.UnreadByCustomer() {
			n++
		}
	}
	return n, nil
}

func (uc *TicketUsecase) notifyOwner(ctx context.Context, t *ticketdom.Ticket, title, msg string, typ notifdom.Type) {
	if uc.notes == nil {
		return
	}
	uid := t.UserID
	if uid == "" && uc.users != nil {
		if u, err := uc.users.GetByEmail(ctx, t.Email); err == nil {
			uid = u.ID.String()
		}
	}
	if uid == "" {
		return
	}
	_, err := uc.notes.Add(ctx, notification.UserList, notifdom.Record{
		UserID:    uid,
		Title:     title,
		Message:   msg,
		Type:      typ,
		RelatedID: t.ID,
		Link:      notification.TicketsPageLink,
	})
	if err != nil {
		uc.log.Warn("ticket notification failed", zap.String("ticketId", t.ID.String()), zap.Error(err))
	}
}

func sortTickets(list []ticketdom.Ticket) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp.Time)
	})
}
