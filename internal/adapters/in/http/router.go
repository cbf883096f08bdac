// backend/internal/adapters/in/http/router.go
package httpin

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"booknest/internal/adapters/in/http/handlers"
	"booknest/internal/adapters/in/http/middleware"
	"booknest/internal/application/notification"
	"booknest/internal/application/persistence"
	"booknest/internal/application/quota"
	usecase "booknest/internal/application/usecase"
	ticketdom "booknest/internal/domain/ticket"
)

// RouterDeps collects everything the HTTP layer needs, injected from main.go.
type RouterDeps struct {
	AuthUC    *usecase.AuthUsecase
	CatalogUC *usecase.CatalogUsecase
	CartUC    *usecase.CartUsecase
	OrderUC   *usecase.OrderUsecase
	PileUC    *usecase.PileUsecase
	TicketUC  *usecase.TicketUsecase

	Notes   *notification.Store
	Backend *persistence.Backend
	Monitor *quota.Monitor

	// Tickets feeds the unread-tickets badge on buyer notification streams.
	Tickets            ticketdom.Repository
	UserPollInterval   time.Duration
	TicketPollInterval time.Duration

	// Firebase is optional; nil means only local sessions are accepted.
	Firebase middleware.IDTokenVerifier

	CORSOrigins []string

	// UploadDir is served under /uploads when payment proofs are stored locally.
	UploadDir string

	Logger *zap.Logger
}

// NewRouter sets up HTTP routing for all endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	lg := deps.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	r := chi.NewRouter()

	// CORS outermost so even a recovered panic response carries the headers.
	r.Use(cors.Handler(corsOptions(deps.CORSOrigins)))
	r.Use(chimw.RequestID)
	r.Use(middleware.AccessLog(lg.Named("http")))
	r.Use(middleware.Recover(lg.Named("recover")))

	// Health check (always on)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if dir := strings.TrimSpace(deps.UploadDir); dir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir))))
	}

	auth := &middleware.AuthMiddleware{Firebase: deps.Firebase, Logger: lg.Named("auth")}
	if deps.AuthUC != nil {
		auth.Sessions = deps.AuthUC
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Handler)

		r.Get("/guest-id", handlers.GuestID)

		if deps.AuthUC != nil {
			ah := handlers.NewAuthHandler(deps.AuthUC)
			r.Route("/auth", ah.Public)
			r.With(middleware.RequireUser).Route("/me", ah.Private)
		}

		var catalog *handlers.CatalogHandler
		if deps.CatalogUC != nil {
			catalog = handlers.NewCatalogHandler(deps.CatalogUC)
			r.Route("/books", catalog.Public)
		}
		if deps.CartUC != nil {
			r.Route("/cart", handlers.NewCartHandler(deps.CartUC).Routes)
		}

		var orders *handlers.OrderHandler
		if deps.OrderUC != nil {
			orders = handlers.NewOrderHandler(deps.OrderUC)
			r.With(middleware.RequireUser).Route("/orders", orders.Routes)
		}
		if deps.PileUC != nil {
			r.With(middleware.RequireUser).Route("/pile", handlers.NewPileHandler(deps.PileUC).Routes)
		}

		var tickets *handlers.TicketHandler
		if deps.TicketUC != nil {
			tickets = handlers.NewTicketHandler(deps.TicketUC)
			r.With(middleware.RequireUser).Route("/tickets", tickets.Routes)
		}

		if deps.Notes != nil && deps.Backend != nil {
			nh := handlers.NewNotificationHandler(deps.Notes, deps.Backend.Local(), notification.UserList, lg).
				WithPollers(deps.Tickets, deps.UserPollInterval, deps.TicketPollInterval)
			r.With(middleware.RequireUser).Route("/notifications", nh.Routes)
		}

		// ---- admin ----
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			if orders != nil {
				r.Route("/orders", orders.Admin)
			}
			if catalog != nil {
				r.Route("/books", catalog.Admin)
			}
			if tickets != nil {
				r.Route("/tickets", tickets.Admin)
			}
			if deps.Notes != nil && deps.Backend != nil {
				nh := handlers.NewNotificationHandler(deps.Notes, deps.Backend.Local(), notification.AdminList, lg)
				r.Route("/notifications", nh.Routes)
			}
			if deps.AuthUC != nil && deps.Backend != nil {
				handlers.NewAdminHandler(deps.AuthUC, deps.Backend, deps.Monitor, lg).Routes(r)
			}
		})
	})

	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.GuestHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}
