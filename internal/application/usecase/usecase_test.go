package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booknest/internal/adapters/out/docstore"
	"booknest/internal/application/notification"
	"booknest/internal/application/persistence"
	"booknest/internal/application/usecase"
	bookdom "booknest/internal/domain/book"
	cartdom "booknest/internal/domain/cart"
	orderdom "booknest/internal/domain/order"
	userdom "booknest/internal/domain/user"
	"booknest/internal/infra/localstore"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeProofs struct {
	mu   sync.Mutex
	objs map[string]string
}

func (f *fakeProofs) PutPaymentProof(_ context.Context, orderID string, r io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objs == nil {
		f.objs = map[string]string{}
	}
	f.objs[orderID] = string(b)
	return "https://proofs.test/" + orderID, nil
}

type fakeSessions struct {
	mu     sync.Mutex
	tokens map[string]usecase.Actor
}

func (f *fakeSessions) Issue(a usecase.Actor) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens == nil {
		f.tokens = map[string]usecase.Actor{}
	}
	tok := fmt.Sprintf("tok-%d", len(f.tokens)+1)
	f.tokens[tok] = a
	return tok, baseTime.Add(time.Hour), nil
}

func (f *fakeSessions) Verify(token string) (usecase.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.tokens[token]
	if !ok {
		return usecase.Actor{}, usecase.ErrUnauthenticated
	}
	return a, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (f *fakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes == nil {
		f.codes = map[string]string{}
	}
	f.codes[strings.ToLower(to)] = code
	return nil
}

type fixture struct {
	now    time.Time
	local  *localstore.MemoryStore
	notes  *notification.Store
	books  *docstore.BookRepository
	users  *docstore.UserRepository
	orders *docstore.OrderRepository
	proofs *fakeProofs

	cart    *usecase.CartUsecase
	order   *usecase.OrderUsecase
	pile    *usecase.PileUsecase
	ticket  *usecase.TicketUsecase
	catalog *usecase.CatalogUsecase
	auth    *usecase.AuthUsecase
	mailer  *fakeMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: baseTime, local: localstore.NewMemoryStore(0), proofs: &fakeProofs{}, mailer: &fakeMailer{}}
	b, err := persistence.New(persistence.Options{Local: f.local})
	require.NoError(t, err)

	clock := usecase.ClockFunc(func() time.Time { return f.now })
	f.notes = notification.NewStore(f.local, clock.Now)
	f.books = docstore.NewBookRepository(b)
	f.users = docstore.NewUserRepository(b)
	f.orders = docstore.NewOrderRepository(b)
	carts := docstore.NewCartRepository(b, clock.Now)
	pile := docstore.NewPileRepository(b)
	tickets := docstore.NewTicketRepository(b)

	f.cart = usecase.NewCartUsecaseWithClock(carts, f.books, clock)
	f.order = usecase.NewOrderUsecase(usecase.OrderDeps{
		Orders: f.orders, Pile: pile, Carts: carts, Books: f.books,
		Notes: f.notes, Proofs: f.proofs, Clock: clock,
	})
	f.pile = usecase.NewPileUsecase(pile, f.orders, clock)
	f.ticket = usecase.NewTicketUsecase(tickets, f.users, f.notes, clock, nil)
	f.catalog = usecase.NewCatalogUsecase(f.books)
	f.auth = usecase.NewAuthUsecase(usecase.AuthDeps{
		Users:    f.users,
		Recovery: docstore.NewRecoveryRepository(b),
		Sessions: &fakeSessions{},
		Mailer:   f.mailer,
		Clock:    clock,
	})
	f.auth.BcryptCost = 4
	return f
}

func buyer(id string) context.Context {
	return usecase.WithActor(context.Background(), usecase.Actor{
		UserID: id, Email: id + "@gmail.com", Name: "Reader " + id, Role: userdom.RoleBuyer,
	})
}

func admin() context.Context {
	return usecase.WithActor(context.Background(), usecase.Actor{
		UserID: "admin", Email: "admin@gmail.com", Name: "Admin", Role: userdom.RoleAdmin,
	})
}

func (f *fixture) addBook(t *testing.T, title string, price float64, stock int) bookdom.Book {
	t.Helper()
	b, err := f.catalog.Create(admin(), bookdom.Book{Title: title, Author: "Anon", Price: price, Stock: stock})
	require.NoError(t, err)
	return b
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	b, err := f.books.GetByID(context.Background(), id)
	require.NoError(t, err)
	return b.Stock
}

func (f *fixture) titles(t *testing.T, uid string) []string {
	t.Helper()
	list, err := f.notes.Records(context.Background(), notification.UserList, uid)
	require.NoError(t, err)
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.Title)
	}
	return out
}

// ============================================================
// Cart / checkout
// ============================================================

func TestCartAddIsBoundedByStock(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune", 100, 2)
	ctx := buyer("u1")

	_, err := f.cart.AddBook(ctx, b.ID.String())
	require.NoError(t, err)
	c, err := f.cart.AddBook(ctx, b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())

	_, err = f.cart.AddBook(ctx, b.ID.String())
	assert.ErrorIs(t, err, cartdom.ErrStockExceeded)

	other, err := f.cart.Get(buyer("u2"))
	require.NoError(t, err)
	assert.Zero(t, other.Count())
}

func TestCheckoutPileOrderReducesStockAndPilesItems(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune", 100, 3)
	ctx := buyer("u1")

	for i := 0; i < 2; i++ {
		_, err := f.cart.AddBook(ctx, b.ID.String())
		require.NoError(t, err)
	}
	o, err := f.order.Checkout(ctx, usecase.CheckoutInput{OrderType: orderdom.TypePile})
	require.NoError(t, err)

	assert.Equal(t, orderdom.StatusPending, o.Status)
	assert.Equal(t, orderdom.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, 200.0, o.Total)
	assert.Zero(t, o.ShippingFee)
	assert.Equal(t, 1, f.stock(t, b.ID.String()))

	groups, err := f.pile.List(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, o.ID.String(), groups[0].OrderID)
	require.Len(t, groups[0].Items, 1)
	assert.Equal(t, 2, groups[0].Items[0].Quantity)

	c, err := f.cart.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.Count())

	_, err = f.order.Checkout(ctx, usecase.CheckoutInput{})
	assert.Error(t, err, "empty cart")
}

func TestCheckoutShippingAddsFeeAndNeedsRecipient(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Emma", 120, 5)
	ctx := buyer("u1")
	_, err := f.cart.AddBook(ctx, b.ID.String())
	require.NoError(t, err)

	_, err = f.order.Checkout(ctx, usecase.CheckoutInput{OrderType: orderdom.TypeShipping})
	assert.ErrorIs(t, err, orderdom.ErrInvalidCustomer)

	_, err = f.order.Checkout(ctx, usecase.CheckoutInput{OrderType: "teleport"})
	assert.ErrorIs(t, err, orderdom.ErrInvalidType)

	o, err := f.order.Checkout(ctx, usecase.CheckoutInput{
		OrderType:    orderdom.TypeShipping,
		CustomerInfo: &orderdom.CustomerInfo{RecipientName: "R", PhoneNumber: "0917", ShippingAddress: "Manila"},
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, o.Subtotal)
	assert.Equal(t, orderdom.ShippingFee, o.ShippingFee)
	assert.Equal(t, 120.0+orderdom.ShippingFee, o.Total)

	groups, err := f.pile.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

// ============================================================
// Order workflow
// ============================================================

func (f *fixture) placeOrder(t *testing.T, ctx context.Context, book bookdom.Book) orderdom.Order {
	t.Helper()
	_, err := f.cart.AddBook(ctx, book.ID.String())
	require.NoError(t, err)
	o, err := f.order.Checkout(ctx, usecase.CheckoutInput{OrderType: orderdom.TypePile})
	require.NoError(t, err)
	return o
}

func TestBuyerCancelRestoresStockAndNotifies(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune", 100, 1)
	ctx := buyer("u1")
	o := f.placeOrder(t, ctx, b)
	require.Equal(t, 0, f.stock(t, b.ID.String()))

	assert.ErrorIs(t, f.order.Cancel(buyer("u2"), o.ID.String()), orderdom.ErrNotFound)

	require.NoError(t, f.order.Cancel(ctx, o.ID.String()))
	assert.Equal(t, 1, f.stock(t, b.ID.String()))

	got, err := f.order.Get(ctx, o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, orderdom.StatusCancelled, got.Status)
	assert.Equal(t, []string{"Order Cancelled"}, f.titles(t, "u1"))

	// already cancelled: buyers cannot cancel again
	assert.ErrorIs(t, f.order.Cancel(ctx, o.ID.String()), orderdom.ErrNotCancellable)
}

func TestPaymentProofVerifyAndShip(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune", 100, 5)
	ctx := buyer("u1")
	o := f.placeOrder(t, ctx, b)
	id := o.ID.String()

	_, err := f.order.UploadPaymentProof(buyer("u2"), id, strings.NewReader("img"), "image/png")
	assert.ErrorIs(t, err, orderdom.ErrForbidden)

	got, err := f.order.UploadPaymentProof(ctx, id, strings.NewReader("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, orderdom.PaymentPaying, got.PaymentStatus)
	assert.Equal(t, "https://proofs.test/"+id, got.PaymentProofURL)
	assert.Equal(t, "img", f.proofs.objs[id])

	assert.ErrorIs(t, f.order.VerifyPayment(ctx, id), userdom.ErrNotAdmin)
	require.NoError(t, f.order.VerifyPayment(admin(), id))

	stored, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, orderdom.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, orderdom.StatusConfirmed, stored.Status)
	assert.True(t, stored.PaymentVerified.Equal(baseTime))

	f.now = baseTime.Add(time.Hour)
	assert.ErrorIs(t, f.order.Ship(admin(), id, "  "), usecase.ErrInvalidArgument)
	require.NoError(t, f.order.Ship(admin(), id, "TRK-1"))
	stored, err = f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, orderdom.StatusShipped, stored.Status)
	assert.Equal(t, "TRK-1", stored.TrackingNumber)

	assert.Equal(t, []string{"Order Shipped", "Payment Verified"}, f.titles(t, "u1"))
}

func TestRejectedPaymentCanBeResubmitted(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune", 100, 5)
	ctx := buyer("u1")
	o := f.placeOrder(t, ctx, b)
	id := o.ID.String()

	_, err := f.order.UploadPaymentProof(ctx, id, strings.NewReader("blurry"), "image/jpeg")
	require.NoError(t, err)
	assert.ErrorIs(t, f.order.RejectPayment(admin(), id, ""), usecase.ErrInvalidArgument)
	require.NoError(t, f.order.RejectPayment(admin(), id, "unreadable"))

	stored, err := f.orders.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, orderdom.PaymentRejected, stored.PaymentStatus)
	assert.Equal(t, "unreadable", stored.RejectReason)

	got, err := f.order.UploadPaymentProof(ctx, id, strings.NewReader("sharp"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, orderdom.PaymentPaying, got.PaymentStatus)
}

func TestShipNowConvertsPaidPileOrder(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune", 100, 5)
	ctx := buyer("u1")
	o := f.placeOrder(t, ctx, b)
	id := o.ID.String()
	info := orderdom.CustomerInfo{RecipientName: "R", PhoneNumber: "0917", ShippingAddress: "Cebu"}

	_, err := f.pile.ShipNow(ctx, id, info)
	assert.ErrorIs(t, err, orderdom.ErrNotShippable)

	require.NoError(t, f.order.VerifyPayment(admin(), id))
	got, err := f.pile.ShipNow(ctx, id, info)
	require.NoError(t, err)
	assert.Equal(t, orderdom.TypeShipping, got.OrderType)

	groups, err := f.pile.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.order.ListAll(buyer("u1"))
	assert.ErrorIs(t, err, userdom.ErrNotAdmin)
	_, err = f.order.ListMine(context.Background())
	assert.ErrorIs(t, err, usecase.ErrUnauthenticated)
	_, err = f.catalog.Create(buyer("u1"), bookdom.Book{Title: "x"})
	assert.ErrorIs(t, err, userdom.ErrNotAdmin)
	assert.ErrorIs(t, f.order.UpdateStatus(admin(), "1", "lost"), orderdom.ErrInvalidStatus)
}

func TestOverduePenaltyIsAppliedOnce(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Dune", 100, 5)
	ctx := buyer("u1")
	o := f.placeOrder(t, ctx, b)

	n, err := f.order.ApplyOverduePenalties(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = baseTime.Add(25 * time.Hour)
	for i := 0; i < 3; i++ {
		_, err = f.order.ApplyOverduePenalties(context.Background())
		require.NoError(t, err)
	}
	stored, err := f.orders.GetByID(context.Background(), o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 100+orderdom.PenaltyAmount, stored.Total)
	assert.True(t, stored.PenaltyApplied)
	assert.Equal(t, []string{"Late Payment Penalty"}, f.titles(t, "u1"))
}

// ============================================================
// Tickets
// ============================================================

func TestTicketReplyNotifiesOwnerAndTracksUnread(t *testing.T) {
	f := newFixture(t)
	ctx := buyer("u1")

	_, err := f.ticket.Create(ctx, usecase.TicketInput{Subject: " ", Details: "x"})
	assert.Error(t, err)

	tk, err := f.ticket.Create(ctx, usecase.TicketInput{Subject: "Late parcel", Details: "Where is it?"})
	require.NoError(t, err)
	assert.False(t, tk.ID.IsZero())

	_, err = f.ticket.Get(buyer("u2"), tk.ID.String())
	assert.Error(t, err)

	f.now = baseTime.Add(time.Minute)
	_, err = f.ticket.Reply(admin(), tk.ID.String(), "On its way", nil)
	require.NoError(t, err)

	n, err := f.ticket.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.now = baseTime.Add(2 * time.Minute)
	require.NoError(t, f.ticket.MarkRead(ctx, tk.ID.String()))
	n, err = f.ticket.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Error(t, f.ticket.SetStatus(ctx, tk.ID.String(), "open"))
	require.NoError(t, f.ticket.SetStatus(admin(), tk.ID.String(), "closed"))
	assert.Equal(t, []string{"Ticket Closed", "New Support Response"}, f.titles(t, "u1"))
}

// ============================================================
// Auth
// ============================================================

const goodPassword = "Bookworm#2024!"

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, usecase.RegisterInput{Email: "a@yahoo.com", Name: "A", Password: goodPassword})
	assert.ErrorIs(t, err, userdom.ErrInvalidEmail)

	_, err = f.auth.Register(ctx, usecase.RegisterInput{Email: "a@gmail.com", Name: "A", Password: "short"})
	var pe *usecase.PasswordError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, userdom.ErrWeakPassword)
	assert.NotEmpty(t, pe.Check.Errors)

	s, err := f.auth.Register(ctx, usecase.RegisterInput{Email: "Reader@gmail.com", Name: "Reader", Password: goodPassword})
	require.NoError(t, err)
	assert.Empty(t, s.User.PasswordHash)
	assert.Equal(t, userdom.RoleBuyer, s.User.Role)

	_, err = f.auth.Register(ctx, usecase.RegisterInput{Email: "reader@gmail.com", Name: "Again", Password: goodPassword})
	assert.ErrorIs(t, err, userdom.ErrEmailTaken)

	_, err = f.auth.Login(ctx, "reader@gmail.com", "wrong")
	assert.ErrorIs(t, err, userdom.ErrBadCredentials)

	s, err = f.auth.Login(ctx, "reader@gmail.com", goodPassword)
	require.NoError(t, err)
	a, err := f.auth.Authenticate(s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID.String(), a.UserID)

	_, err = f.auth.AdminLogin(ctx, "reader@gmail.com", goodPassword)
	assert.ErrorIs(t, err, userdom.ErrNotAdmin)
}

func TestAdminMustUseAdminLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.EnsureAdmin(ctx, "boss@gmail.com", "Boss", goodPassword))
	require.NoError(t, f.auth.EnsureAdmin(ctx, "boss@gmail.com", "Boss", goodPassword))

	_, err := f.auth.Login(ctx, "boss@gmail.com", goodPassword)
	assert.ErrorIs(t, err, userdom.ErrAdminLoginOnly)

	s, err := f.auth.AdminLogin(ctx, "boss@gmail.com", goodPassword)
	require.NoError(t, err)
	assert.True(t, s.User.IsAdmin())

	users, err := f.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestVerificationCodeLifecycle(t *testing.T) {
	f := newFixture(t)
	f.auth.RequireCode = true
	ctx := context.Background()
	in := usecase.RegisterInput{Email: "new@gmail.com", Name: "New", Password: goodPassword}

	_, err := f.auth.Register(ctx, in)
	assert.ErrorIs(t, err, userdom.ErrCodeNotFound)

	require.NoError(t, f.auth.SendVerificationCode(ctx, in.Email))
	code := f.mailer.codes["new@gmail.com"]
	require.Len(t, code, 6)

	in.Code = "000000"
	_, err = f.auth.Register(ctx, in)
	assert.ErrorIs(t, err, userdom.ErrInvalidCode)

	f.now = baseTime.Add(usecase.VerificationCodeTTL + time.Second)
	in.Code = code
	_, err = f.auth.Register(ctx, in)
	assert.ErrorIs(t, err, userdom.ErrCodeExpired)

	require.NoError(t, f.auth.SendVerificationCode(ctx, in.Email))
	in.Code = f.mailer.codes["new@gmail.com"]
	_, err = f.auth.Register(ctx, in)
	require.NoError(t, err)
}

func TestPasswordRecoveryRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, usecase.RegisterInput{Email: "lost@gmail.com", Name: "Lost", Password: goodPassword})
	require.NoError(t, err)

	_, err = f.auth.RequestPasswordRecovery(ctx, "lost@gmail.com", "https://example.com/me")
	assert.ErrorIs(t, err, userdom.ErrInvalidFacebookLink)
	_, err = f.auth.RequestPasswordRecovery(ctx, "nobody@gmail.com", "https://facebook.com/me")
	assert.ErrorIs(t, err, userdom.ErrNotFound)

	req, err := f.auth.RequestPasswordRecovery(ctx, "lost@gmail.com", "https://facebook.com/lost")
	require.NoError(t, err)
	assert.Equal(t, "N/A", req.Phone)
	assert.Equal(t, userdom.RecoveryPending, req.Status)

	_, err = f.auth.ListRecoveryRequests(buyer("u1"))
	assert.ErrorIs(t, err, userdom.ErrNotAdmin)
	list, err := f.auth.ListRecoveryRequests(admin())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "lost@gmail.com", list[0].Email)
}

func TestActorForEmailCreatesBuyerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1, err := f.auth.ActorForEmail(ctx, "fire@gmail.com", "")
	require.NoError(t, err)
	a2, err := f.auth.ActorForEmail(ctx, "FIRE@gmail.com", "Other")
	require.NoError(t, err)
	assert.Equal(t, a1.UserID, a2.UserID)
	assert.Equal(t, "fire", a1.Name)
	assert.Equal(t, userdom.RoleBuyer, a1.Role)
}
