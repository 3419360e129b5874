package server

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"async-transfers/internal/config"
	"async-transfers/internal/domain"
	"async-transfers/internal/exchange"
	"async-transfers/internal/handler"
	"async-transfers/internal/processing"
	"async-transfers/internal/repository"
	"async-transfers/internal/repository/memory"
	"async-transfers/internal/service"
	"async-transfers/internal/validation"
	"async-transfers/internal/worker"
)

// dispatcher is a processing.Dispatcher with a lifecycle.
type dispatcher interface {
	processing.Dispatcher
	Start() error
	Stop(ctx context.Context) error
}

// Server represents the HTTP server and the transfer processing engine behind it
type Server struct {
	router     *mux.Router
	server     *http.Server
	db         *sql.DB
	store      domain.Store
	scheduler  *processing.Scheduler
	dispatcher dispatcher
	logger     *slog.Logger
	port       string
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger}

	if err := s.openStore(cfg); err != nil {
		return nil, err
	}

	rates, err := exchange.ParseRates(cfg.ExchangeRates)
	if err != nil {
		s.closeDB()
		return nil, err
	}
	table, err := exchange.NewTable(rates)
	if err != nil {
		s.closeDB()
		return nil, err
	}

	// Initialize processing engine
	executor := processing.NewExecutor(s.store, table, logger)
	switch cfg.Dispatcher {
	case config.DispatcherRedis:
		s.dispatcher = worker.NewRedisQueue(cfg.RedisAddress, executor, cfg.WorkerCount, logger)
	default:
		s.dispatcher = worker.NewPool(executor, worker.PoolConfig{
			Workers:   cfg.WorkerCount,
			QueueSize: cfg.WorkerQueueSize,
		}, logger)
	}
	s.scheduler = processing.NewScheduler(s.store, s.dispatcher, processing.SchedulerConfig{
		Interval:   cfg.ProcessingInterval,
		ClaimGrace: cfg.ClaimGrace,
	}, logger)

	// Initialize services
	validate := validation.New()
	accountService := service.NewAccountService(s.store, validate, table, logger)
	transferService := service.NewTransferService(s.store, validate, table, service.TransferServiceConfig{
		TTL: cfg.TransferTTL,
	}, logger)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountService, logger)
	transferHandler := handler.NewTransferHandler(transferService, logger)

	// Setup router
	router := mux.NewRouter()

	// Add middleware for logging
	router.Use(loggingMiddleware(logger))

	// Account routes
	router.HandleFunc("/accounts", accountHandler.CreateAccount).Methods(http.MethodPost)
	router.HandleFunc("/accounts", accountHandler.ListAccounts).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{account_id}", accountHandler.GetAccount).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{account_id}", accountHandler.DeleteAccount).Methods(http.MethodDelete)

	// Transfer routes
	router.HandleFunc("/transfers", transferHandler.SubmitTransfer).Methods(http.MethodPost)
	router.HandleFunc("/transfers", transferHandler.ListTransfers).Methods(http.MethodGet)
	router.HandleFunc("/transfers/{transfer_id}", transferHandler.GetTransfer).Methods(http.MethodGet)
	router.HandleFunc("/transfers/{transfer_id}", transferHandler.DeleteTransfer).Methods(http.MethodDelete)

	// Health check
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	s.router = router
	return s, nil
}

func (s *Server) openStore(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMemory {
		s.store = memory.NewStore(s.logger)
		s.logger.Warn("Using in-memory store, data is lost on shutdown")
		return nil
	}

	if cfg.RunMigrations {
		if err := repository.Migrate(cfg.GetDBConnectionString(), s.logger); err != nil {
			return err
		}
	}

	// Initialize database connection
	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test database connection
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	s.logger.Info("Successfully connected to database")

	s.db = db
	s.store = repository.NewStore(db, s.logger)
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Check database connectivity in health check
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
			return
		}
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
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

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the processing engine and the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	// Get the actual port being used
	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	// Workers before the scheduler, so the first tick has somewhere to dispatch
	if err := s.dispatcher.Start(); err != nil {
		listener.Close()
		return "", fmt.Errorf("failed to start workers: %w", err)
	}
	if err := s.scheduler.Start(); err != nil {
		listener.Close()
		s.dispatcher.Stop(context.Background())
		return "", fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Create HTTP server
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)

	// Start server in background
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop shuts down the HTTP server, then the scheduler, then the workers, and
// finally closes the database. Work still queued stays NEW.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Shutdown HTTP server
	if s.server != nil {
		keep(s.server.Shutdown(ctx))
	}

	if s.scheduler != nil {
		if err := s.scheduler.Stop(ctx); err != nil && !stderrors.Is(err, processing.ErrSchedulerNotRunning) {
			keep(err)
		}
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Stop(ctx); err != nil && !stderrors.Is(err, worker.ErrPoolNotRunning) {
			keep(err)
		}
	}

	s.closeDB()
	return firstErr
}

func (s *Server) closeDB() {
	// Close database connection
	if s.db != nil {
		s.db.Close()
	}
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetStore returns the store for testing purposes
func (s *Server) GetStore() domain.Store {
	return s.store
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	// Initialize logger - use io.Discard for tests to avoid panic
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		// Test environment - use discard logger
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		// Production environment - use stdout
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	// Start the server and get the actual port
	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.closeDB()
		return nil, "", err
	}

	return server, port, nil
}
