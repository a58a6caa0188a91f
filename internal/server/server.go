package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/backup"
	"github.com/redevirtus/virtus/internal/email"
	"github.com/redevirtus/virtus/internal/handler"
	"github.com/redevirtus/virtus/internal/metrics"
	"github.com/redevirtus/virtus/internal/middleware"
	"github.com/redevirtus/virtus/internal/push"
	"github.com/redevirtus/virtus/internal/state"
	"github.com/redevirtus/virtus/internal/store"
	"github.com/redevirtus/virtus/internal/timebudget"
	ws "github.com/redevirtus/virtus/internal/websocket"
)

// Deps are the long-lived components the server routes to.
type Deps struct {
	DB             *sql.DB
	Store          *state.Store
	Sessions       *auth.Sessions
	Usage          *timebudget.Registry
	Metrics        *metrics.Metrics
	Email          *email.Client
	Backup         *backup.Manager
	Push           push.Config
	ReminderHour   int
	BaseURL        string
	Location       *time.Location
	OriginPatterns []string
}

type Server struct {
	db            *sql.DB
	store         *state.Store
	sessions      *auth.Sessions
	usage         *timebudget.Registry
	metrics       *metrics.Metrics
	hub           *ws.Hub
	authH         *handler.AuthHandler
	signupH       *handler.SignupHandler
	virtueH       *handler.VirtueHandler
	readingH      *handler.ReadingHandler
	activityH     *handler.ActivityHandler
	adminH        *handler.AdminHandler
	dailyH        *handler.DailyHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	pushStore     *store.PushStore
	pushScheduler *push.Scheduler
	rateLimiter   *middleware.RateLimiter
	origins       []string
	logger        *slog.Logger
}

func New(d Deps, logger *slog.Logger) *Server {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	hub := ws.NewHub(logger.With("component", "websocket"), ws.WithClientGauge(d.Metrics.WebSocketClients))

	// Push notification service + scheduler
	pushSt := store.NewPushStore(d.DB)
	pushSvc := push.NewService(d.Push)
	var pushSched *push.Scheduler
	if pushSvc.Configured() {
		pushSched = push.NewScheduler(pushSvc, pushSt, d.Store,
			push.WithLocation(loc),
			push.WithReminderHour(d.ReminderHour),
			push.WithSentCounter(d.Metrics.PushSent),
			push.WithLogger(logger),
		)
	}

	backups := d.Backup
	if backups == nil {
		backups = backup.NewManager(backup.Config{}, d.Store)
	}

	return &Server{
		db:            d.DB,
		store:         d.Store,
		sessions:      d.Sessions,
		usage:         d.Usage,
		metrics:       d.Metrics,
		hub:           hub,
		authH:         handler.NewAuthHandler(d.Store, d.Sessions, logger.With("component", "auth")),
		signupH:       handler.NewSignupHandler(d.Store, d.Email, d.Metrics, loc, logger.With("component", "signup")),
		virtueH:       handler.NewVirtueHandler(d.Store, hub, d.Metrics, logger.With("component", "virtue")),
		readingH:      handler.NewReadingHandler(d.Store, hub, d.Metrics, logger.With("component", "reading")),
		activityH:     handler.NewActivityHandler(d.Store, hub, logger.With("component", "activity")),
		adminH:        handler.NewAdminHandler(d.Store, d.Email, hub, d.Metrics, d.BaseURL, loc, logger.With("component", "admin")),
		dailyH:        handler.NewDailyHandler(d.Usage, loc, logger.With("component", "daily")),
		pushH:         handler.NewPushHandler(pushSt, pushSvc, logger.With("component", "push_handler")),
		backupH:       handler.NewBackupHandler(backups, logger.With("component", "backup")),
		pushStore:     pushSt,
		pushScheduler: pushSched,
		rateLimiter:   middleware.NewRateLimiter(),
		origins:       d.OriginPatterns,
		logger:        logger,
	}
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Sessions returns the session issuer for cleanup tasks.
func (s *Server) Sessions() *auth.Sessions {
	return s.sessions
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// PushScheduler returns the reminder scheduler, or nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /api/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("POST /api/signup/code/validate", s.rateLimited(s.signupH.ValidateCode))
	mux.HandleFunc("POST /api/signup/code", s.rateLimited(s.signupH.SubmitCode))
	mux.HandleFunc("POST /api/signup/link/validate", s.rateLimited(s.signupH.ValidateLink))
	mux.HandleFunc("POST /api/signup/link", s.rateLimited(s.signupH.SubmitLink))
	mux.HandleFunc("GET /api/activities", s.activityH.List)
	mux.HandleFunc("GET /api/readings/books", s.readingH.Books)

	// Member routes
	mux.Handle("GET /api/me", s.member(s.authH.Me))
	mux.Handle("PUT /api/me/activities", s.member(s.authH.UpdateMyActivities))
	mux.Handle("GET /api/usage", s.member(s.dailyH.Usage))
	mux.Handle("GET /api/pulse", s.member(s.dailyH.Pulse))

	// Member routes that count against the daily allowance
	mux.Handle("GET /api/virtues", s.metered(s.virtueH.List))
	mux.Handle("POST /api/virtues", s.metered(s.virtueH.Create))
	mux.Handle("GET /api/mural", s.metered(s.virtueH.Mural))
	mux.Handle("GET /api/readings", s.metered(s.readingH.List))
	mux.Handle("GET /api/readings/current", s.metered(s.readingH.Current))
	mux.Handle("POST /api/readings/start", s.metered(s.readingH.Start))
	mux.Handle("POST /api/readings/stop", s.metered(s.readingH.Stop))
	mux.Handle("POST /api/readings/{id}/publish", s.metered(s.readingH.Publish))

	// Push notification API routes
	mux.Handle("GET /api/push/vapid-key", s.member(s.pushH.GetVAPIDKey))
	mux.Handle("POST /api/push/subscribe", s.member(s.pushH.Subscribe))
	mux.Handle("GET /api/push/subscriptions", s.member(s.pushH.ListSubscriptions))
	mux.Handle("DELETE /api/push/subscriptions/{id}", s.member(s.pushH.Unsubscribe))
	mux.Handle("POST /api/push/test", s.member(s.pushH.TestNotification))

	// Admin routes
	mux.Handle("POST /api/admin/invite-codes", s.admin(s.adminH.CreateInviteCode))
	mux.Handle("GET /api/admin/invite-codes", s.admin(s.adminH.ListInviteCodes))
	mux.Handle("DELETE /api/admin/invite-codes/{code}", s.admin(s.adminH.DeactivateInviteCode))
	mux.Handle("POST /api/admin/invite-links", s.admin(s.adminH.CreateInviteLink))
	mux.Handle("GET /api/admin/invite-links", s.admin(s.adminH.ListInviteLinks))
	mux.Handle("DELETE /api/admin/invite-links/{id}", s.admin(s.adminH.DeactivateInviteLink))
	mux.Handle("GET /api/admin/pending", s.admin(s.adminH.ListPending))
	mux.Handle("POST /api/admin/pending/{id}/approve", s.admin(s.adminH.Approve))
	mux.Handle("POST /api/admin/pending/{id}/reject", s.admin(s.adminH.Reject))
	mux.Handle("GET /api/admin/members", s.admin(s.adminH.ListMembers))
	mux.Handle("PUT /api/admin/members/{id}/maturity", s.admin(s.adminH.UpdateMaturity))
	mux.Handle("PUT /api/admin/members/{id}/end-date", s.admin(s.adminH.UpdateEndDate))
	mux.Handle("PUT /api/admin/members/{id}/activities", s.admin(s.adminH.UpdateActivities))
	mux.Handle("PUT /api/admin/members/{id}/role", s.creator(s.adminH.UpdateRole))
	mux.Handle("GET /api/admin/backups", s.creator(s.backupH.Status))
	mux.Handle("POST /api/admin/backups", s.creator(s.backupH.Run))
	mux.Handle("POST /api/admin/activities", s.admin(s.activityH.Create))
	mux.Handle("PUT /api/admin/activities/{id}", s.admin(s.activityH.Update))
	mux.Handle("DELETE /api/admin/activities/{id}", s.admin(s.activityH.Delete))

	// WebSocket
	mux.Handle("GET /ws", s.member(ws.HandleWebSocket(s.hub, ws.HandlerConfig{
		Usage:          s.usage,
		OriginPatterns: s.origins,
		Logger:         s.logger.With("component", "websocket"),
	})))

	// Apply metrics and request logging middleware
	h := middleware.Instrument(s.metrics)(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return middleware.RequireAuth(s.sessions, s.store)
}

func (s *Server) member(h http.HandlerFunc) http.Handler {
	return s.requireAuth()(h)
}

func (s *Server) metered(h http.HandlerFunc) http.Handler {
	usage := middleware.RequireUsage(s.usage, s.logger.With("component", "usage"))
	return s.requireAuth()(usage(h))
}

func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.requireAuth()(middleware.RequireAdmin(h))
}

func (s *Server) creator(h http.HandlerFunc) http.Handler {
	return s.requireAuth()(middleware.RequireCreator(h))
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, 10, time.Minute)(h).ServeHTTP
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Error("health check", "error", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
