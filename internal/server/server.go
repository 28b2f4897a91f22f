package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"asset-catalog/internal/logging"
	"asset-catalog/internal/storage"
)

const (
	loginRate   = 10
	loginWindow = time.Minute
)

type Config struct {
	Addr    string // e.g. ":5000"
	Version string

	Accounts Accounts
	Catalog  Catalog
	Store    storage.Store
	// DB is pinged by the health endpoint. Optional.
	DB Pinger

	JWTSecret      string
	SessionTTL     time.Duration
	MaxUploadBytes int64
	CORSOrigins    []string

	Logger *zap.Logger
	// Registry receives the service metrics and backs /metrics. A fresh
	// registry is created when nil.
	Registry *prometheus.Registry
}

type Server struct {
	log      *zap.Logger
	version  string
	maxBytes int64

	accounts Accounts
	catalog  Catalog
	store    storage.Store
	db       Pinger

	sessions *Issuer
	pipeline *Pipeline
	metrics  *Metrics
	limiter  *rateLimiter

	handler    http.Handler
	httpServer *http.Server
	stop       context.CancelFunc
}

func New(cfg Config) (*Server, error) {
	if cfg.Accounts == nil || cfg.Catalog == nil || cfg.Store == nil {
		return nil, errors.New("server: accounts, catalog and store are required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("server: jwt secret is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = storage.DefaultMaxBytes
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	log := logging.OrNop(cfg.Logger)

	s := &Server{
		log:      log,
		version:  cfg.Version,
		maxBytes: cfg.MaxUploadBytes,
		accounts: cfg.Accounts,
		catalog:  cfg.Catalog,
		store:    cfg.Store,
		db:       cfg.DB,
		sessions: NewIssuer(cfg.Accounts, cfg.JWTSecret, cfg.SessionTTL),
		pipeline: NewPipeline(cfg.Store, cfg.Catalog, cfg.MaxUploadBytes, log.Named("pipeline"), metrics),
		metrics:  metrics,
		limiter:  newRateLimiter(loginRate, loginWindow),
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/admin/login", s.limiter.middleware(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /api/admin/profile", s.gate(true, http.HandlerFunc(s.handleProfile)))
	mux.Handle("POST /api/admin/images/upload", s.gate(true, http.HandlerFunc(s.handleUpload)))
	mux.Handle("GET /api/admin/images/all", s.gate(true, http.HandlerFunc(s.handleAdminList)))
	mux.Handle("DELETE /api/admin/images/{id}", s.gate(true, http.HandlerFunc(s.handleDelete)))

	mux.Handle("GET /api/public/images", s.gate(false, http.HandlerFunc(s.handlePublicList)))
	mux.Handle("GET /api/public/images/{id}", s.gate(false, http.HandlerFunc(s.handlePublicGet)))
	mux.Handle("GET /api/public/images/file/{filename}", s.gate(false, http.HandlerFunc(s.handleFile)))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.handleNotFound)

	// Wrap middleware: requestID -> logging -> security headers -> CORS -> mux
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.limiter.run(ctx)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	s.log.Info("listening", zap.String("addr", ln.Addr().String()), zap.String("backend", s.store.Backend()))
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.httpServer.Shutdown(ctx)
}
