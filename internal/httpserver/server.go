package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citytransit/backend/internal/auth"
	"github.com/citytransit/backend/internal/config"
	"github.com/citytransit/backend/internal/email"
	"github.com/citytransit/backend/internal/middleware"
	"github.com/citytransit/backend/internal/sessions"
	"github.com/citytransit/backend/internal/transit"
	"github.com/citytransit/backend/internal/users"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	httpServer  *http.Server
	pool        *pgxpool.Pool
	logger      *slog.Logger
	stopCleanup context.CancelFunc
}

// New creates a new HTTP server with all routes configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to database")

	// Create email sender
	emailSender, err := email.NewSender(&email.Config{
		Provider:     cfg.EmailProvider,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
		APIKey:       cfg.EmailAPIKey,
		FromAddress:  cfg.EmailFromAddress,
		FromName:     cfg.EmailFromName,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create email sender: %w", err)
	}

	// Create repositories
	userRepo := users.NewRepository(pool)
	sessionRepo := sessions.NewRepository(pool)
	codeRepo := users.NewVerificationCodeRepository(pool)
	resetRepo := users.NewPasswordResetRepository(pool)

	// Create session store and auth service
	sessionStore := sessions.NewStore(
		sessionRepo,
		userRepo,
		cfg.SessionCookieName,
		cfg.SessionDuration,
		cfg.SessionCookieSecure,
	)
	tokenService := auth.NewTokenService(codeRepo, resetRepo)
	authService := auth.NewService(
		userRepo,
		sessionStore,
		tokenService,
		emailSender,
		cfg.BaseURL,
		logger,
	)
	authHandler := auth.NewHandler(authService, sessionStore, logger)

	// Create transit service and handler
	transitRepo := transit.NewRepository(pool)
	transitService := transit.NewService(transitRepo)
	transitHandler := transit.NewHandler(transitService, logger)

	// Setup routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /version", handleVersion)

	// Account lifecycle endpoints
	mux.HandleFunc("POST /user/signup", authHandler.Signup)
	mux.HandleFunc("POST /user/login", authHandler.Login)
	mux.HandleFunc("POST /user/logout", authHandler.Logout)
	mux.HandleFunc("POST /user/email-verification", authHandler.VerifyEmail)
	mux.HandleFunc("POST /user/reset-password", authHandler.RequestPasswordReset)
	mux.HandleFunc("GET /user/reset-password/{token}", authHandler.ResetPassword)
	mux.Handle("GET /user/me", middleware.RequireAuth(http.HandlerFunc(authHandler.Me)))

	// Transit data endpoints; reads are public, writes need a session
	mux.HandleFunc("GET /bus-lines", transitHandler.ListLines)
	mux.HandleFunc("GET /bus-lines/{route_no}", transitHandler.GetLine)
	mux.HandleFunc("GET /bus-lines/{route_no}/route", transitHandler.GetLineRoute)
	mux.Handle("POST /bus-lines", middleware.RequireAuth(http.HandlerFunc(transitHandler.CreateLine)))
	mux.Handle("PUT /bus-lines/{route_no}", middleware.RequireAuth(http.HandlerFunc(transitHandler.UpdateLine)))
	mux.HandleFunc("GET /bus-stops", transitHandler.ListStops)
	mux.HandleFunc("GET /bus-stops/nearest-bus-stop", transitHandler.NearestStops)
	mux.HandleFunc("GET /bus-stops/{id}", transitHandler.GetStop)
	mux.HandleFunc("GET /bus-stops/{id}/lines", transitHandler.GetStopLines)
	mux.HandleFunc("GET /bus-stops/{id}/logs", transitHandler.ListStopLogs)
	mux.HandleFunc("GET /bus-stops/{id}/{route_no}/logs", transitHandler.ListStopLogs)
	mux.Handle("POST /bus-stops", middleware.RequireAuth(http.HandlerFunc(transitHandler.CreateStop)))
	mux.Handle("PUT /bus-stops/{id}", middleware.RequireAuth(http.HandlerFunc(transitHandler.UpdateStop)))
	mux.Handle("POST /bus-stops/{id}/{route_no}/logs", middleware.RequireAuth(http.HandlerFunc(transitHandler.CreateStopLog)))

	// Apply middleware
	var handler http.Handler = mux
	handler = middleware.NoCache()(handler)
	handler = middleware.Session(sessionStore, logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Gzip()(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.Recovery(logger)(handler)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Expired sessions are filtered on read; this sweep just keeps the
	// table from accumulating dead rows.
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := sessionStore.CleanupExpired(cleanupCtx); err != nil {
					logger.Error("failed to clean up expired sessions", "error", err)
				}
			}
		}
	}()

	return &Server{
		httpServer:  httpServer,
		pool:        pool,
		logger:      logger,
		stopCleanup: stopCleanup,
	}, nil
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopCleanup()
	s.logger.Info("closing database connection pool")
	s.pool.Close()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Build-time variables injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildTime": BuildTime,
	})
}
