// Package app boots the service: logging, storage, service wiring, the HTTP
// listener and the background cache sweep.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/careerpilot-ke/careerpilot/internal/cache"
	"github.com/careerpilot-ke/careerpilot/internal/config"
	"github.com/careerpilot-ke/careerpilot/internal/db"
	"github.com/careerpilot-ke/careerpilot/internal/httpapi"
	"github.com/careerpilot-ke/careerpilot/internal/modelrouter"
	"github.com/careerpilot-ke/careerpilot/internal/orchestrator"
	"github.com/careerpilot-ke/careerpilot/internal/providers"
	"github.com/careerpilot-ke/careerpilot/internal/quota"
	"github.com/careerpilot-ke/careerpilot/internal/security"
	"github.com/careerpilot-ke/careerpilot/internal/settings"
	"github.com/careerpilot-ke/careerpilot/internal/subscription"
	"github.com/careerpilot-ke/careerpilot/internal/usage"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging configures logrus from the log config. When a file is set the
// log is rotated and mirrored to stderr.
func SetupLogging(cfg config.LogConfig) {
	level, errParse := log.ParseLevel(cfg.Level)
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.File == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

// Migrate opens the database and runs schema migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the full service and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg *config.Config) error {
	if errValidate := cfg.Validate(); errValidate != nil {
		return errValidate
	}

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("app: settings snapshot load failed, continuing with defaults")
	}

	cipher, errCipher := security.NewCipher(cfg.Security.CredentialSecret)
	if errCipher != nil {
		return errCipher
	}

	plans := subscription.NewService(conn)
	quotaManager := quota.NewManager(conn, plans)
	if errQuota := quotaManager.Validate(); errQuota != nil {
		return errQuota
	}
	for _, kind := range providers.AllKinds() {
		fast, quality := providers.DefaultModels(kind)
		if errRouter := modelrouter.New(fast, quality).Validate(); errRouter != nil {
			return fmt.Errorf("app: model routing table for %s: %w", kind, errRouter)
		}
	}

	cacheManager := cache.NewManager(conn, plans)
	orchestratorService := orchestrator.NewService(orchestrator.Options{
		DB:     conn,
		Cipher: cipher,
		Plans:  plans,
		Quota:  quotaManager,
		Cache:  cacheManager,
		EnvCredentials: map[providers.Kind]string{
			providers.KindGemini: cfg.Providers.GeminiAPIKey,
			providers.KindOpenAI: cfg.Providers.OpenAIAPIKey,
			providers.KindClaude: cfg.Providers.ClaudeAPIKey,
		},
	})

	engine := httpapi.BuildRouter(httpapi.Dependencies{
		DB:           conn,
		Config:       cfg,
		Cipher:       cipher,
		Orchestrator: orchestratorService,
		Quota:        quotaManager,
		Cache:        cacheManager,
	})

	go runCacheSweep(ctx, cacheManager)
	usage.NewRetentionCleaner(conn).Start(ctx)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("app: listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// runCacheSweep periodically reclaims expired cache rows. The interval is
// re-read from settings each tick so admins can tune it without a restart.
func runCacheSweep(ctx context.Context, cacheManager *cache.Manager) {
	for {
		timer := time.NewTimer(cacheSweepInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		removed, errSweep := cacheManager.CleanupExpired(sweepCtx)
		cancel()
		if errSweep != nil {
			log.WithError(errSweep).Warn("app: cache sweep failed")
			continue
		}
		if removed > 0 {
			log.Infof("app: cache sweep removed %d expired entries", removed)
		}
	}
}

// cacheSweepInterval reads the sweep interval from the settings snapshot.
func cacheSweepInterval() time.Duration {
	if seconds, ok := settings.DBConfigInt(settings.CacheSweepIntervalSecondsKey); ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return time.Duration(settings.DefaultCacheSweepIntervalSeconds) * time.Second
}
