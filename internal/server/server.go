package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"account-ledger/internal/auth"
	"account-ledger/internal/config"
	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
	"account-ledger/internal/handler"
	"account-ledger/internal/logging"
	"account-ledger/internal/repository"
	"account-ledger/internal/service"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
	db     *sql.DB
	ledger *service.LedgerService
	logger *slog.Logger
	port   string
}

// NewServer opens the configured snapshot store, hydrates the ledger from it
// and wires the HTTP routes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx := context.Background()

	var (
		store domain.SnapshotStore
		db    *sql.DB
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		var err error
		db, err = openDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store = repository.NewStore(db, logger)
	default:
		store = repository.NewFileStore(cfg.DataFile, logger)
		logger.Info("Using file snapshot store", "path", cfg.DataFile)
	}

	ledger := service.NewLedgerService(store, logger)
	if err := ledger.Hydrate(ctx); err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	var authenticator auth.Authenticator
	if cfg.AuthEnabled() {
		authenticator = auth.NewBcryptAuthenticator(cfg.AuthUsername, cfg.AuthPasswordHash)
	} else {
		logger.Warn("Authentication disabled, AUTH_USERNAME is not set")
	}

	return &Server{
		router: NewRouter(ledger, store, authenticator, logger),
		db:     db,
		ledger: ledger,
		logger: logger,
	}, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("Successfully connected to database")

	if err := repository.Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewRouter builds the HTTP routes over a ledger. store is only used for the
// health check; authenticator may be nil to disable authentication.
func NewRouter(ledger *service.LedgerService, store domain.SnapshotStore, authenticator auth.Authenticator, logger *slog.Logger) *mux.Router {
	accountHandler := handler.NewAccountHandler(ledger)
	transactionHandler := handler.NewTransactionHandler(ledger)
	reportHandler := handler.NewReportHandler(ledger, logger)

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	// Health check stays reachable without credentials
	router.HandleFunc("/health", healthHandler(ledger, store)).Methods("GET")

	api := router.PathPrefix("/").Subrouter()
	if authenticator != nil {
		api.Use(authMiddleware(authenticator, logger))
	}

	// Account routes
	api.HandleFunc("/accounts", accountHandler.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{account_number}", accountHandler.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{account_number}", accountHandler.DeleteAccount).Methods("DELETE")
	api.HandleFunc("/accounts/{account_number}/balance", accountHandler.GetBalance).Methods("GET")

	// Transaction routes
	api.HandleFunc("/accounts/{account_number}/deposits", transactionHandler.Deposit).Methods("POST")
	api.HandleFunc("/accounts/{account_number}/withdrawals", transactionHandler.Withdraw).Methods("POST")
	api.HandleFunc("/accounts/{account_number}/transactions", transactionHandler.GetHistory).Methods("GET")

	// Report
	api.HandleFunc("/report", reportHandler.GetReport).Methods("GET")

	return router
}

func healthHandler(ledger *service.LedgerService, store domain.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if pinger, ok := store.(domain.Pinger); ok {
			if err := pinger.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "storage unavailable"})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"accounts":  ledger.AccountCount(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response wrapper to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// authMiddleware requires HTTP Basic credentials accepted by authenticator.
func authMiddleware(authenticator auth.Authenticator, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || !authenticator.Authenticate(username, password) {
				logger.Warn("Rejected credentials", "path", r.URL.Path, "username", username)
				w.Header().Set("WWW-Authenticate", `Basic realm="account-ledger"`)
				handler.WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	// Get the actual port being used
	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server, then releases the database.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	if s.db != nil {
		if closeErr := s.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// Ledger returns the ledger served by s.
func (s *Server) Ledger() *service.LedgerService {
	return s.ledger
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		// Test environment - use discard logger
		logger = logging.Discard()
	} else {
		logger = logging.New(cfg.LogLevel)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(context.Background())
		return nil, "", err
	}

	return server, port, nil
}
