// Package httpapi exposes the account and file services over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/logging"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/config"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/services"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/sessions"
	"github.com/gin-gonic/gin"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	healthTimeout     = 2 * time.Second
)

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps groups everything the HTTP layer talks to.
type Deps struct {
	Config   *config.Config
	Users    *services.UserService
	Files    *services.FileService
	Tokens   *auth.TokenManager
	Denylist sessions.Denylist
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	DB       Pinger
}

type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	router   *gin.Engine
	users    *services.UserService
	files    *services.FileService
	tokens   *auth.TokenManager
	denylist sessions.Denylist
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	db       Pinger
}

func NewServer(d Deps, l logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	// rate limiting keys on the peer address, never on forwarded headers
	_ = r.SetTrustedProxies(nil)

	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.Disabled{}
	}
	m := d.Metrics
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		cfg:      d.Config,
		logger:   l.With("module", "http_server"),
		router:   r,
		users:    d.Users,
		files:    d.Files,
		tokens:   d.Tokens,
		denylist: d.Denylist,
		limiter:  limiter,
		metrics:  m,
		db:       d.DB,
	}

	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.observe())
	s.registerRoutes()
	return s
}

// Handler returns the router for use with httptest or a custom server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	limited := r.Group("/", s.rateLimit())
	limited.POST("/signup", s.handleSignUp)
	limited.POST("/signin", s.handleSignIn)
	limited.POST("/api/v1/signup", s.handleSignUp)
	limited.POST("/api/v1/signin", s.handleSignIn)

	meta := r.Group("/api/v1/meta")
	meta.GET("/build", s.handleBuild)
	meta.GET("/health", s.handleHealth)

	authed := r.Group("/", s.authRequired())
	authed.GET("/logout", s.handleLogout)
	authed.GET("/api/v1/account", s.handleAccount)
	authed.POST("/api/v1/account/delete", s.handleDeleteAccount)

	files := authed.Group("/app/files")
	files.GET("/get", s.handleGet)
	files.GET("/list", s.handleList)
	files.POST("/upload", s.handleUpload)
	files.POST("/move", s.handleMove)
	files.POST("/copy", s.handleCopy)
	files.GET("/remove", s.handleRemove)
	files.GET("/create_dir", s.handleCreateDir)
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to shutdownTimeout. HTTPS is used when a certificate is configured.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.EndpointAddrHTTP,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownDone <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.cfg.EndpointAddrHTTP, "tls", s.cfg.TLSEnabled(), "read_only", s.cfg.ReadOnly)

	var err error
	if s.cfg.TLSEnabled() {
		err = srv.ListenAndServeTLS(s.cfg.TLSCertPath, s.cfg.TLSKeyPath)
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return <-shutdownDone
	}
	return err
}
