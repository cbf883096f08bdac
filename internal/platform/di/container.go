// internal/platform/di/container.go
package di

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	httpin "booknest/internal/adapters/in/http"
	"booknest/internal/adapters/in/http/middleware"
	"booknest/internal/adapters/out/docstore"
	fsadapter "booknest/internal/adapters/out/firestore"
	"booknest/internal/adapters/out/gcs"
	"booknest/internal/adapters/out/localfs"
	"booknest/internal/adapters/out/mail"
	"booknest/internal/adapters/out/session"
	"booknest/internal/application/notification"
	"booknest/internal/application/persistence"
	"booknest/internal/application/quota"
	usecase "booknest/internal/application/usecase"
	notifdom "booknest/internal/domain/notification"
	appcfg "booknest/internal/infra/config"
	"booknest/internal/infra/localstore"
	"booknest/internal/platform/di/shared"
)

// Container は main.go / booknestctl から使う依存オブジェクトの束。
// main.go を極限まで薄くするためのもの。
type Container struct {
	Infra  *shared.Infra
	Config *appcfg.Config
	Logger *zap.Logger

	Local   localstore.Store
	Backend *persistence.Backend
	Notes   *notification.Store

	Books   *docstore.BookRepository
	Users   *docstore.UserRepository
	Orders  *docstore.OrderRepository
	Tickets *docstore.TicketRepository

	AuthUC    *usecase.AuthUsecase
	CatalogUC *usecase.CatalogUsecase
	CartUC    *usecase.CartUsecase
	OrderUC   *usecase.OrderUsecase
	PileUC    *usecase.PileUsecase
	TicketUC  *usecase.TicketUsecase

	Monitor      *quota.Monitor
	AdminPoller  *notification.AdminPoller
	Connectivity *persistence.ConnectivityMonitor

	firebase  middleware.IDTokenVerifier
	uploadDir string
}

// NewContainer wires everything from cfg. The caller owns Close.
func NewContainer(ctx context.Context, cfg *appcfg.Config, lg *zap.Logger) (*Container, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	inf, err := shared.NewInfra(ctx, cfg, lg)
	if err != nil {
		return nil, err
	}
	c := &Container{Infra: inf, Config: cfg, Logger: lg}

	// 1) local store
	local, err := openLocal(ctx, cfg, lg)
	if err != nil {
		_ = inf.Close()
		return nil, err
	}
	c.Local = local

	// 2) backend (remote first, local mirror)
	var remote persistence.RemoteStore
	switch {
	case inf.Firestore != nil:
		remote = fsadapter.NewDocumentStoreFS(inf.Firestore.Client)
	case inf.Mongo != nil:
		remote = inf.Mongo
	}
	backend, err := persistence.New(persistence.Options{
		Local:         local,
		Remote:        remote,
		Logger:        lg,
		FlushPolicy:   persistence.FlushPolicy{Mode: persistence.FlushMode(cfg.FlushMode), MaxAttempts: cfg.FlushMaxAttempts},
		CapacityBytes: cfg.QuotaCapacityBytes,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Backend = backend
	if err := backend.MigrateLegacyKeys(ctx); err != nil {
		lg.Warn("legacy key migration failed", zap.Error(err))
	}

	// 3) repositories
	c.Notes = notification.NewStore(local, nil)
	c.Books = docstore.NewBookRepository(backend)
	c.Users = docstore.NewUserRepository(backend)
	c.Orders = docstore.NewOrderRepository(backend)
	c.Tickets = docstore.NewTicketRepository(backend)
	carts := docstore.NewCartRepository(backend, nil)
	pile := docstore.NewPileRepository(backend)

	// 4) outbound services
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		secret = randomSecret()
		lg.Warn("JWT_SECRET is empty; using a per-process secret (sessions end on restart)")
	}
	sessions, err := session.NewJWTIssuer(secret, cfg.SessionTTL, nil)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	var mailer usecase.VerificationMailer
	if m := mail.NewVerificationMailerWithSendGrid(cfg.SendGridAPIKey, cfg.SendGridFrom, cfg.StoreName, lg); m != nil {
		mailer = m
	} else {
		lg.Info("SendGrid not configured; verification codes are logged")
	}

	var proofs usecase.ProofStorage
	if inf.GCS != nil {
		proofs = gcs.NewProofStoreGCS(inf.GCS, cfg.GCSBucket, lg)
	} else {
		proofs = localfs.NewProofStore(cfg.UploadDir, "/uploads")
		c.uploadDir = cfg.UploadDir
	}

	if inf.FirebaseAuth != nil {
		c.firebase = inf.FirebaseAuth
	}

	// 5) usecases
	c.AuthUC = usecase.NewAuthUsecase(usecase.AuthDeps{
		Users:    c.Users,
		Recovery: docstore.NewRecoveryRepository(backend),
		Sessions: sessions,
		Mailer:   mailer,
		Logger:   lg,
	})
	c.AuthUC.RequireCode = cfg.RequireCode
	c.CatalogUC = usecase.NewCatalogUsecase(c.Books)
	c.CartUC = usecase.NewCartUsecase(carts, c.Books)
	c.OrderUC = usecase.NewOrderUsecase(usecase.OrderDeps{
		Orders: c.Orders,
		Pile:   pile,
		Carts:  carts,
		Books:  c.Books,
		Notes:  c.Notes,
		Proofs: proofs,
		Logger: lg,
	})
	c.PileUC = usecase.NewPileUsecase(pile, c.Orders, nil)
	c.TicketUC = usecase.NewTicketUsecase(c.Tickets, c.Users, c.Notes, nil, lg)

	if err := c.AuthUC.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword); err != nil {
		lg.Warn("admin bootstrap failed", zap.Error(err))
	}

	// 6) background
	c.Monitor = quota.NewMonitor(local, quota.Options{
		Capacity: cfg.QuotaCapacityBytes,
		Interval: cfg.QuotaInterval,
		Remote:   backend.HasRemote(),
		OnStatus: func(st quota.Status) {
			if st.Level != quota.LevelOK {
				lg.Warn("local storage usage high",
					zap.String("level", string(st.Level)),
					zap.String("used", st.Formatted),
					zap.Float64("percentage", st.Percentage))
			}
		},
		Logger: lg,
	})
	c.AdminPoller = notification.NewAdminPoller(c.Orders, c.Tickets, c.Notes, notification.AdminPollerOptions{
		Interval: cfg.AdminPollInterval,
		Hooks: notification.Hooks{
			Toast: func(r notifdom.Record) {
				lg.Info("admin notification", zap.String("title", r.Title), zap.String("relatedId", r.RelatedID.String()))
			},
		},
		Logger: lg,
	})
	if backend.HasRemote() {
		c.Connectivity = persistence.NewConnectivityMonitor(backend, cfg.ProbeInterval, lg)
	}

	return c, nil
}

func openLocal(ctx context.Context, cfg *appcfg.Config, lg *zap.Logger) (localstore.Store, error) {
	switch cfg.Local {
	case appcfg.LocalMemory:
		lg.Warn("memory local store: data is lost on exit")
		return localstore.NewMemoryStore(0), nil
	case appcfg.LocalSQLite:
		return localstore.OpenSQL(ctx, localstore.DialectSQLite, cfg.SQLitePath, lg)
	case appcfg.LocalPostgres:
		return localstore.OpenSQL(ctx, localstore.DialectPostgres, cfg.PostgresDSN, lg)
	case appcfg.LocalFile, "":
		return localstore.NewFileStore(cfg.LocalDir, localstore.FileOptions{Watch: cfg.LocalWatch, Logger: lg})
	}
	return nil, fmt.Errorf("di: unknown local store %q", cfg.Local)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Router builds the HTTP handler.
func (c *Container) Router() http.Handler {
	return httpin.NewRouter(httpin.RouterDeps{
		AuthUC:      c.AuthUC,
		CatalogUC:   c.CatalogUC,
		CartUC:      c.CartUC,
		OrderUC:     c.OrderUC,
		PileUC:      c.PileUC,
		TicketUC:    c.TicketUC,
		Notes:       c.Notes,
		Backend:     c.Backend,
		Monitor:     c.Monitor,
		Tickets:     c.Tickets,
		Firebase:    c.firebase,
		CORSOrigins: c.Config.CORSOrigins,
		UploadDir:   c.uploadDir,
		Logger:      c.Logger,

		UserPollInterval:   c.Config.UserPollInterval,
		TicketPollInterval: c.Config.TicketPollInterval,
	})
}

// Runners are the background loops main runs next to the server.
func (c *Container) Runners() []notification.Runnable {
	rs := []notification.Runnable{
		c.Monitor,
		c.AdminPoller,
		&PenaltySweeper{Orders: c.OrderUC, Interval: c.Config.PenaltySweepEvery, Logger: c.Logger},
	}
	if c.Connectivity != nil {
		rs = append(rs, c.Connectivity)
	}
	return rs
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Local != nil {
		errs = append(errs, c.Local.Close())
	}
	errs = append(errs, c.Infra.Close())
	return errors.Join(errs...)
}

// PenaltySweeper applies overdue penalties on a timer.
type PenaltySweeper struct {
	Orders   *usecase.OrderUsecase
	Interval time.Duration
	Logger   *zap.Logger
}

func (p *PenaltySweeper) Run(ctx context.Context) error {
	lg := p.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	iv := p.Interval
	if iv <= 0 {
		iv = 10 * time.Minute
	}
	sys := usecase.AsSystem(ctx)
	t := time.NewTicker(iv)
	defer t.Stop()
	for {
		if _, err := p.Orders.ApplyOverduePenalties(sys); err != nil {
			lg.Warn("penalty sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
