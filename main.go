package main

import (
	"context"
	"crypto/rand"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/mindtrack/internal/auth"
	"github.com/MGallo-Code/mindtrack/internal/config"
	"github.com/MGallo-Code/mindtrack/internal/respond"
	"github.com/MGallo-Code/mindtrack/internal/store"
	"github.com/MGallo-Code/mindtrack/internal/tracker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	// Set up slog to output as json with configured level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (ps, rdb) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rdb.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	// Create new postgres store, return errors if any
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	// Close at end of run func
	defer ps.Close()

	// Run database migrations
	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := ps.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Background jobs stop when run() returns.
	jobsCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	// Redis is optional. Without it revocations live in process memory and
	// login throttling is off.
	var (
		revocations auth.RevocationStore
		limiter     auth.RateLimiter
	)
	if cfg.RedisURL != "" {
		// Create shared Redis client; all Redis structs share one connection pool.
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis client: %w", err)
		}
		defer rdb.Close()
		revocations = store.NewRedisRevocations(rdb)
		limiter = store.NewRedisRateLimiter(rdb)
	} else {
		slog.Warn("REDIS_URL not set; token revocations are in-memory and login throttling is disabled")
		mem := store.NewMemoryRevocations()
		go sweepRevocations(jobsCtx, mem, cfg.RevocationSweepInterval)
		revocations = mem
		limiter = store.NopRateLimiter{}
	}

	tokens, err := newIssuer(cfg, revocations)
	if err != nil {
		return err
	}

	var guard auth.Guard
	switch cfg.AuthMode {
	case config.AuthModeStatic:
		slog.Warn("AUTH_MODE=static; every request acts as a fixed user", "user_id", cfg.StaticUserID)
		guard = auth.StaticGuard{UserID: cfg.StaticUserID}
	default:
		guard = &auth.JWTGuard{Issuer: tokens}
	}

	ah := &auth.AuthHandler{
		PS:     ps,
		RS:     revocations,
		RL:     limiter,
		Tokens: tokens,
		LoginPolicy: &store.RateLimit{
			MaxAttempts: cfg.RateLoginEmailMax,
			Window:      cfg.RateLoginEmailWindow,
			LockoutTTL:  cfg.RateLoginEmailLockout,
		},
	}
	th := &tracker.Handler{Store: ps}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(ah, th, guard),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("mindtrack listening", "addr", ln.Addr().String(), "auth_mode", cfg.AuthMode)
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	// In-flight requests get 30s to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newIssuer builds the token issuer. Static mode may run without a
// JWT_SECRET_KEY; it then signs with a random per-process key so the auth
// endpoints still work, but tokens do not survive a restart.
func newIssuer(cfg *config.Config, revocations auth.RevocationStore) (*auth.Issuer, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
	}
	return auth.NewIssuer(secret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, revocations), nil
}

// sweepRevocations drops expired in-memory revocations every interval until ctx is done.
func sweepRevocations(ctx context.Context, m *store.MemoryRevocations, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.PurgeExpired(); n > 0 {
				slog.Debug("revocation sweep complete", "purged", n, "remaining", m.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}

// buildRouter wires all routes and middleware.
// The API is served at the root and mirrored under /api/v1.
func buildRouter(ah *auth.AuthHandler, th *tracker.Handler, guard auth.Guard) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.NotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
	})

	r.Get("/health", ah.CheckHealth)

	api := func(r chi.Router) {
		r.Post("/auth/register", ah.Register)
		r.Post("/auth/login", ah.Login)
		r.Post("/auth/refresh", ah.Refresh)

		// Authentication required routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(guard))
			r.Post("/auth/logout", ah.Logout)
			r.Get("/users/me", ah.Me)
			r.Delete("/users/me", ah.DeleteMe)
			th.Mount(r)
		})
	}
	r.Group(api)
	r.Route("/api/v1", api)

	return r
}
