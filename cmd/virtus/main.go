package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/backup"
	"github.com/redevirtus/virtus/internal/config"
	"github.com/redevirtus/virtus/internal/database"
	"github.com/redevirtus/virtus/internal/email"
	"github.com/redevirtus/virtus/internal/kv"
	"github.com/redevirtus/virtus/internal/logging"
	"github.com/redevirtus/virtus/internal/metrics"
	"github.com/redevirtus/virtus/internal/push"
	"github.com/redevirtus/virtus/internal/server"
	"github.com/redevirtus/virtus/internal/state"
	"github.com/redevirtus/virtus/internal/timebudget"
	"github.com/redevirtus/virtus/internal/userdb"
)

func main() {
	restoreKey := flag.String("restore", "", "restore the backup object with this key into the key-value store and exit")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel)
	if cfg.EphemeralSecret {
		logger.Warn("VIRTUS_SESSION_SECRET not set, sessions will not survive a restart")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	// Key-value mirror: Redis when configured, otherwise the SQLite database.
	var store kv.Store = kv.NewSQLite(db)
	if cfg.RedisAddr != "" {
		rds, err := kv.NewRedis(ctx, kv.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "virtus:",
		})
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rds.Close()
		store = rds
		logger.Info("using redis key-value store", "addr", cfg.RedisAddr)
	}

	stateOpts := []state.Option{
		state.WithLogger(logger.With("component", "state")),
		state.WithConsumeInvitesOnApproval(cfg.ConsumeOnApprove),
	}

	// Optional relational mirror of the member roster.
	if cfg.DatabaseURL != "" {
		pool, err := userdb.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		users := userdb.New(pool, logger.With("component", "userdb"))
		if err := users.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare users table", "error", err)
			os.Exit(1)
		}
		stateOpts = append(stateOpts, state.WithMemberSink(users))
	}

	st := state.New(store, stateOpts...)
	m := metrics.New()

	backups := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Prefix:        cfg.Backup.Prefix,
		Passphrase:    cfg.Backup.Passphrase,
		Hour:          cfg.Backup.Hour,
		RetentionDays: cfg.Backup.RetentionDays,
		Location:      cfg.Location,
	}, st, backup.WithLogger(logger.With("component", "backup")), backup.WithCounter(m.Backups))

	if *restoreKey != "" {
		n, err := backups.Restore(ctx, *restoreKey, store)
		if err != nil {
			slog.Error("restore failed", "key", *restoreKey, "error", err)
			os.Exit(1)
		}
		logger.Info("backup restored", "key", *restoreKey, "keys", n)
		return
	}

	if err := st.Load(ctx); err != nil {
		slog.Error("failed to load state", "error", err)
		os.Exit(1)
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			slog.Error("failed to hash admin password", "error", err)
			os.Exit(1)
		}
		creator, created, err := st.EnsureCreator(ctx, cfg.AdminEmail, cfg.AdminName, hash)
		if err != nil {
			slog.Error("failed to bootstrap creator", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("creator admin created", "member_id", creator.ID, "email", creator.Email)
		}
	}

	usage := timebudget.NewRegistry(store,
		timebudget.WithAllowance(cfg.DailyAllowance),
		timebudget.WithLocation(cfg.Location),
		timebudget.WithLogger(logger.With("component", "timebudget")),
		timebudget.WithOnBlocked(func(memberID string) {
			m.UsageBlocks.Inc()
			logger.Info("daily allowance exhausted", "member_id", memberID)
		}),
	)

	srv := server.New(server.Deps{
		DB:       db,
		Store:    st,
		Sessions: auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL),
		Usage:    usage,
		Metrics:  m,
		Email:    email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL),
		Backup:   backups,
		Push: push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subscriber:      cfg.PushSubscriber,
		},
		ReminderHour:   cfg.ReminderHour,
		BaseURL:        cfg.BaseURL,
		Location:       cfg.Location,
		OriginPatterns: cfg.AllowedOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
		logger.Info("activity reminders enabled", "hour", cfg.ReminderHour)
	}

	if backups.Enabled() {
		backups.Start(ctx)
		defer backups.Stop()
		logger.Info("daily backups enabled", "hour", cfg.Backup.Hour, "bucket", cfg.Backup.Bucket)
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
				srv.Sessions().Cleanup()
				cutoff := time.Now().In(cfg.Location).AddDate(0, 0, -7).Format("2006-01-02")
				if err := srv.PushStore().CleanupSent(cutoff); err != nil {
					slog.Error("cleanup notification log", "error", err)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("virtus starting", "addr", ":"+cfg.Port, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
