package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/config"
	"github.com/dukerupert/fintrack/internal/handler"
	"github.com/dukerupert/fintrack/internal/middleware"
	"github.com/dukerupert/fintrack/internal/reminder"
	"github.com/dukerupert/fintrack/internal/store"
	ws "github.com/dukerupert/fintrack/internal/websocket"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	gateway      *auth.Gateway
	authH        *handler.AuthHandler
	transactionH *handler.TransactionHandler
	goalH        *handler.GoalHandler
	categoryH    *handler.CategoryHandler
	adminH       *handler.AdminHandler
	rateLimiter  *middleware.RateLimiter
	reminders    *reminder.Scheduler
	corsOrigins  []string
	proxies      []netip.Prefix
	logger       *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	transactionStore := store.NewTransactionStore(db)
	goalStore := store.NewGoalStore(db)
	categoryStore := store.NewCategoryStore(db)

	tokens := auth.NewTokens(cfg.SecretKey, cfg.TokenMaxAge)
	gateway := auth.NewGateway(userStore, auth.NewHasher(cfg.BcryptCost), tokens)
	hub := ws.NewHub(gateway, logger.With("component", "websocket"))

	return &Server{
		db:           db,
		hub:          hub,
		gateway:      gateway,
		authH:        handler.NewAuthHandler(gateway, cfg.SecureCookie, logger.With("component", "auth")),
		transactionH: handler.NewTransactionHandler(transactionStore, hub, logger.With("component", "transaction")),
		goalH:        handler.NewGoalHandler(goalStore, hub, logger.With("component", "goal")),
		categoryH:    handler.NewCategoryHandler(categoryStore, logger.With("component", "category")),
		adminH:       handler.NewAdminHandler(gateway, transactionStore, goalStore, logger.With("component", "admin")),
		rateLimiter:  middleware.NewRateLimiter(),
		reminders:    reminder.NewScheduler(goalStore, hub, cfg.ReminderInterval, cfg.ReminderWindow, logger.With("component", "reminder")),
		corsOrigins:  cfg.CORSOrigins,
		proxies:      cfg.TrustedProxies,
		logger:       logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Reminders returns the goal deadline scheduler.
func (s *Server) Reminders() *reminder.Scheduler {
	return s.reminders
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.gateway, s.logger.With("component", "auth_middleware"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	var h http.Handler = outerMux
	h = middleware.StripTrailingSlash(h)
	h = middleware.CORS(s.corsOrigins)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return middleware.RequestID(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return r.URL.Path + "|" + middleware.ClientIP(r, s.proxies)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, authRateLimit, authRateWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /user", s.authH.Me)
	mux.HandleFunc("PUT /user", s.authH.UpdateMe)

	mux.HandleFunc("GET /transactions", s.transactionH.List)
	mux.HandleFunc("POST /transactions", s.transactionH.Create)
	mux.HandleFunc("GET /transactions/{id}", s.transactionH.Get)
	mux.HandleFunc("PUT /transactions/{id}", s.transactionH.Update)
	mux.HandleFunc("DELETE /transactions/{id}", s.transactionH.Delete)

	mux.HandleFunc("GET /goals", s.goalH.List)
	mux.HandleFunc("POST /goals", s.goalH.Create)
	mux.HandleFunc("GET /goals/{id}", s.goalH.Get)
	mux.HandleFunc("PUT /goals/{id}", s.goalH.Update)
	mux.HandleFunc("DELETE /goals/{id}", s.goalH.Delete)

	mux.HandleFunc("GET /categories", s.categoryH.List)

	// Admin routes
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }
	mux.Handle("GET /admin/users", admin(s.adminH.ListUsers))
	mux.Handle("POST /admin/users", admin(s.adminH.CreateUser))
	mux.Handle("GET /admin/users/{id}", admin(s.adminH.GetUser))
	mux.Handle("PUT /admin/users/{id}", admin(s.adminH.UpdateUser))
	mux.Handle("DELETE /admin/users/{id}", admin(s.adminH.DeleteUser))
	mux.Handle("GET /admin/goals", admin(s.adminH.ListGoals))
	mux.Handle("GET /admin/transactions", admin(s.adminH.ListTransactions))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.corsOrigins, s.logger.With("component", "websocket")))
}
