package httpin_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpin "booknest/internal/adapters/in/http"
	"booknest/internal/adapters/in/http/middleware"
	"booknest/internal/adapters/out/docstore"
	"booknest/internal/adapters/out/session"
	"booknest/internal/application/notification"
	"booknest/internal/application/persistence"
	"booknest/internal/application/quota"
	"booknest/internal/application/usecase"
	bookdom "booknest/internal/domain/book"
	"booknest/internal/domain/common"
	notifdom "booknest/internal/domain/notification"
	ticketdom "booknest/internal/domain/ticket"
	"booknest/internal/infra/localstore"
)

const (
	adminEmail = "owner@gmail.com"
	adminPass  = "Sh3lf&Stack!"
	goodPass   = "Bookworm#2024!"
)

type memProofs struct {
	mu   sync.Mutex
	urls map[string]string
}

func (m *memProofs) PutPaymentProof(_ context.Context, orderID string, r io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.urls == nil {
		m.urls = map[string]string{}
	}
	u := "/uploads/payment-proofs/" + orderID + "/proof.jpg"
	m.urls[orderID] = u
	return u, nil
}

type fakeFirebase struct{}

func (fakeFirebase) VerifyIDToken(_ context.Context, tok string) (*fbauth.Token, error) {
	if tok != "firebase-good" {
		return nil, errors.New("bad token")
	}
	return &fbauth.Token{UID: "fb-1", Claims: map[string]interface{}{"email": "fan@gmail.com", "name": "Fan"}}, nil
}

type env struct {
	t       *testing.T
	srv     http.Handler
	notes   *notification.Store
	local   *localstore.MemoryStore
	books   *docstore.BookRepository
	tickets *docstore.TicketRepository
	admin   string
	proofs  *memProofs
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	local := localstore.NewMemoryStore(0)
	b, err := persistence.New(persistence.Options{Local: local})
	require.NoError(t, err)

	issuer, err := session.NewJWTIssuer("test-secret", time.Hour, nil)
	require.NoError(t, err)

	notes := notification.NewStore(local, nil)
	books := docstore.NewBookRepository(b)
	users := docstore.NewUserRepository(b)
	orders := docstore.NewOrderRepository(b)
	carts := docstore.NewCartRepository(b, nil)
	pile := docstore.NewPileRepository(b)
	tickets := docstore.NewTicketRepository(b)
	proofs := &memProofs{}

	auth := usecase.NewAuthUsecase(usecase.AuthDeps{
		Users:    users,
		Recovery: docstore.NewRecoveryRepository(b),
		Sessions: issuer,
	})
	auth.BcryptCost = 4
	require.NoError(t, auth.EnsureAdmin(ctx, adminEmail, "Owner", adminPass))

	e := &env{t: t, notes: notes, local: local, books: books, tickets: tickets, proofs: proofs}
	e.srv = httpin.NewRouter(httpin.RouterDeps{
		AuthUC:    auth,
		CatalogUC: usecase.NewCatalogUsecase(books),
		CartUC:    usecase.NewCartUsecase(carts, books),
		OrderUC: usecase.NewOrderUsecase(usecase.OrderDeps{
			Orders: orders, Pile: pile, Carts: carts, Books: books, Notes: notes, Proofs: proofs,
		}),
		PileUC:   usecase.NewPileUsecase(pile, orders, nil),
		TicketUC: usecase.NewTicketUsecase(tickets, users, notes, nil, nil),
		Notes:    notes,
		Backend:  b,
		Monitor:  quota.NewMonitor(local, quota.Options{}),
		Firebase: fakeFirebase{},

		Tickets:            tickets,
		UserPollInterval:   20 * time.Millisecond,
		TicketPollInterval: 20 * time.Millisecond,
	})

	var s usecase.Session
	e.do(http.MethodPost, "/api/auth/admin/login", "", map[string]string{"email": adminEmail, "password": adminPass}, http.StatusOK, &s)
	e.admin = s.Token
	return e
}

func (e *env) request(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *env) do(method, path, token string, body any, want int, out any) {
	e.t.Helper()
	rec := e.request(method, path, token, body)
	require.Equal(e.t, want, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	if out != nil {
		require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func (e *env) register(email, name string) string {
	e.t.Helper()
	var s usecase.Session
	e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "name": name, "password": goodPass,
	}, http.StatusCreated, &s)
	require.NotEmpty(e.t, s.Token)
	return s.Token
}

func (e *env) addBook(title string, price float64, stock int) bookdom.Book {
	e.t.Helper()
	var b bookdom.Book
	e.do(http.MethodPost, "/api/admin/books", e.admin, bookdom.Book{Title: title, Price: price, Stock: stock}, http.StatusCreated, &b)
	return b
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.request(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRegisterLoginAndProfile(t *testing.T) {
	e := newEnv(t)
	e.register("reader@gmail.com", "Reader")

	var s usecase.Session
	e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "reader@gmail.com", "password": goodPass}, http.StatusOK, &s)

	var me map[string]any
	e.do(http.MethodGet, "/api/me", s.Token, nil, http.StatusOK, &me)
	assert.Equal(t, "Reader", me["name"])
	assert.NotContains(t, me, "password")

	e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "reader@gmail.com", "password": "nope"}, http.StatusUnauthorized, nil)
	e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "reader@gmail.com", "name": "Again", "password": goodPass,
	}, http.StatusConflict, nil)
}

func TestWeakPasswordListsEveryProblem(t *testing.T) {
	e := newEnv(t)
	var out struct {
		Error  string   `json:"error"`
		Errors []string `json:"errors"`
	}
	e.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "weak@gmail.com", "name": "Weak", "password": "abc",
	}, http.StatusBadRequest, &out)
	assert.NotEmpty(t, out.Errors)
}

func TestAdminRoutesAreGuarded(t *testing.T) {
	e := newEnv(t)
	buyer := e.register("buyer@gmail.com", "Buyer")

	e.do(http.MethodGet, "/api/admin/orders", "", nil, http.StatusUnauthorized, nil)
	e.do(http.MethodGet, "/api/admin/orders", buyer, nil, http.StatusForbidden, nil)
	e.do(http.MethodGet, "/api/admin/orders", e.admin, nil, http.StatusOK, nil)
	e.do(http.MethodGet, "/api/orders", "not-a-token", nil, http.StatusUnauthorized, nil)

	// admins cannot use the buyer login
	e.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": adminEmail, "password": adminPass}, http.StatusForbidden, nil)
}

func TestGuestCartUsesGuestHeader(t *testing.T) {
	e := newEnv(t)
	b := e.addBook("Dune", 120, 1)

	rec := e.request(http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var gid struct {
		GuestID string `json:"guestId"`
	}
	e.do(http.MethodGet, "/api/guest-id", "", nil, http.StatusOK, &gid)
	require.True(t, persistence.IsGuestID(gid.GuestID), gid.GuestID)

	add := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(`{"bookId":"`+b.ID.String()+`"}`))
		req.Header.Set(middleware.GuestHeader, gid.GuestID)
		rec := httptest.NewRecorder()
		e.srv.ServeHTTP(rec, req)
		return rec
	}
	rec = add()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cart struct {
		Count int     `json:"count"`
		Total float64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, 1, cart.Count)
	assert.Equal(t, 120.0, cart.Total)

	// stock is 1
	assert.Equal(t, http.StatusConflict, add().Code)
}

func TestGuestHeaderRejectsIDsThatAreNotGuestIDs(t *testing.T) {
	e := newEnv(t)
	buyer := e.register("buyer@gmail.com", "Buyer")
	b := e.addBook("Dune", 120, 3)
	e.do(http.MethodPost, "/api/cart/items", buyer, map[string]string{"bookId": b.ID.String()}, http.StatusOK, nil)

	var me struct {
		ID string `json:"id"`
	}
	e.do(http.MethodGet, "/api/me", buyer, nil, http.StatusOK, &me)
	require.NotEmpty(t, me.ID)

	for _, gid := range []string{me.ID, "guest_abc", "guest_1700000000000_ABCDEFGHI", "guest_1700000000000_abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set(middleware.GuestHeader, gid)
		rec := httptest.NewRecorder()
		e.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, gid)
		assert.NotContains(t, rec.Body.String(), "Dune", gid)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(middleware.GuestHeader, "guest_1700000000000_abc123xyz")
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "Dune")
}

func TestCheckoutProofAndVerifyNotifiesBuyer(t *testing.T) {
	e := newEnv(t)
	buyer := e.register("buyer@gmail.com", "Buyer")
	b := e.addBook("Emma", 200, 3)

	e.do(http.MethodPost, "/api/cart/items", buyer, map[string]string{"bookId": b.ID.String()}, http.StatusOK, nil)

	var o struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PaymentStatus string `json:"paymentStatus"`
	}
	e.do(http.MethodPost, "/api/orders", buyer, map[string]string{"orderType": "pile"}, http.StatusCreated, &o)
	require.NotEmpty(t, o.ID)
	assert.Equal(t, "pending", o.Status)

	var pile []map[string]any
	e.do(http.MethodGet, "/api/pile", buyer, nil, http.StatusOK, &pile)
	require.Len(t, pile, 1)

	rec := e.upload("/api/orders/"+o.ID+"/payment-proof", buyer, pngBytes(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, "paying", o.PaymentStatus)

	e.do(http.MethodPost, "/api/admin/orders/"+o.ID+"/verify", e.admin, nil, http.StatusNoContent, nil)

	var list struct {
		Notifications []notifdom.Record `json:"notifications"`
		Unread        int               `json:"unread"`
	}
	e.do(http.MethodGet, "/api/notifications?path=/pages/orders.html", buyer, nil, http.StatusOK, &list)
	require.NotEmpty(t, list.Notifications)
	assert.Equal(t, "Payment Verified", list.Notifications[0].Title)
	assert.Equal(t, 1, list.Unread)
	assert.False(t, strings.HasPrefix(list.Notifications[0].Link, "pages/"))

	e.do(http.MethodPost, "/api/notifications/read-all", buyer, nil, http.StatusNoContent, nil)
	var unread map[string]int
	e.do(http.MethodGet, "/api/notifications/unread", buyer, nil, http.StatusOK, &unread)
	assert.Equal(t, 0, unread["unread"])

	// another buyer cannot see the order
	other := e.register("other@gmail.com", "Other")
	e.do(http.MethodGet, "/api/orders/"+o.ID, other, nil, http.StatusNotFound, nil)
}

func TestProofUploadRejectsNonImages(t *testing.T) {
	e := newEnv(t)
	buyer := e.register("buyer@gmail.com", "Buyer")
	b := e.addBook("Emma", 200, 3)
	e.do(http.MethodPost, "/api/cart/items", buyer, map[string]string{"bookId": b.ID.String()}, http.StatusOK, nil)
	var o struct {
		ID string `json:"id"`
	}
	e.do(http.MethodPost, "/api/orders", buyer, map[string]string{"orderType": "pile"}, http.StatusCreated, &o)

	rec := e.uploadAs("/api/orders/"+o.ID+"/payment-proof", buyer, []byte("%PDF-1.4"), "application/pdf")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestFirebaseTokenMapsToBuyer(t *testing.T) {
	e := newEnv(t)
	var me map[string]any
	e.do(http.MethodGet, "/api/me", "firebase-good", nil, http.StatusOK, &me)
	assert.Equal(t, "fan@gmail.com", me["email"])
	assert.Equal(t, "buyer", me["role"])

	e.do(http.MethodGet, "/api/me", "firebase-bad", nil, http.StatusUnauthorized, nil)
}

func TestAdminStorageEndpoints(t *testing.T) {
	e := newEnv(t)
	var st struct {
		Backend persistence.StorageInfo `json:"backend"`
		Quota   quota.Status            `json:"quota"`
	}
	e.do(http.MethodGet, "/api/admin/storage", e.admin, nil, http.StatusOK, &st)
	assert.Equal(t, "local", st.Backend.Type)
	assert.Equal(t, quota.LevelOK, st.Quota.Level)

	var flushed persistence.FlushReport
	e.do(http.MethodPost, "/api/admin/sync/flush", e.admin, nil, http.StatusOK, &flushed)
	assert.Zero(t, flushed.Flushed)

	e.do(http.MethodPost, "/api/admin/storage/sweep", e.admin, nil, http.StatusOK, nil)
}

func TestNotificationStreamPushesChanges(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.srv)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/admin/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.admin)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	waitFor := func(substr string) {
		t.Helper()
		for {
			line, err := rd.ReadString('\n')
			require.NoError(t, err, "waiting for %q", substr)
			if strings.Contains(line, substr) {
				return
			}
		}
	}
	waitFor("event: connected")
	waitFor("event: unread")

	_, err = e.notes.Add(context.Background(), notification.AdminList, notifdom.Record{
		Title: "New Order Received", Message: "Order #9 has been placed.", Type: notifdom.TypeOrder,
	})
	require.NoError(t, err)
	waitFor("New Order Received")
	waitFor(`{"unread":1}`)
}

// nextEvent skips ahead to the next "event: name" block and returns its data.
func nextEvent(t *testing.T, rd *bufio.Reader, name string) string {
	t.Helper()
	matched := false
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err, "waiting for event %q", name)
		line = strings.TrimSpace(line)
		switch {
		case line == "event: "+name:
			matched = true
		case matched && strings.HasPrefix(line, "data: "):
			return strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, "event: "):
			matched = false
		}
	}
}

func TestBuyerStreamCarriesUnreadTicketBadge(t *testing.T) {
	e := newEnv(t)
	buyer := e.register("buyer@gmail.com", "Buyer")
	srv := httptest.NewServer(e.srv)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+buyer)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rd := bufio.NewReader(resp.Body)
	nextEvent(t, rd, "connected")
	assert.JSONEq(t, `{"unread":0}`, nextEvent(t, rd, "unread-tickets"))

	_, err = e.tickets.Create(context.Background(), ticketdom.Ticket{
		Email:               "buyer@gmail.com",
		FBName:              "Buyer",
		Subject:             "Where is my order?",
		Details:             "Placed last week.",
		Status:              ticketdom.StatusOpen,
		LastAdminResponseAt: common.At(time.Now()),
	})
	require.NoError(t, err)
	// someone else's ticket does not count
	_, err = e.tickets.Create(context.Background(), ticketdom.Ticket{
		Email:               "other@gmail.com",
		Subject:             "Refund",
		Details:             "Damaged copy.",
		Status:              ticketdom.StatusOpen,
		LastAdminResponseAt: common.At(time.Now()),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"unread":1}`, nextEvent(t, rd, "unread-tickets"))
}

func (e *env) upload(path, token string, data []byte) *httptest.ResponseRecorder {
	return e.uploadAs(path, token, data, "image/png")
}

func (e *env) uploadAs(path, token string, data []byte, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="proof"; filename="proof"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(e.t, err)
	_, err = part.Write(data)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
