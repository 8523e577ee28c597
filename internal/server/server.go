// Package server exposes the submission and polling endpoints over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/callfacts/internal/model"
	"github.com/ppiankov/callfacts/internal/store"
	"github.com/ppiankov/callfacts/internal/worker"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Deps are the components the handlers drive
type Deps struct {
	Processor worker.Processor
	Pool      *worker.Pool
	Store     store.Store
}

// Server holds the state for the HTTP server.
type Server struct {
	router    *gin.Engine
	processor worker.Processor
	pool      *worker.Pool
	store     store.Store
	sessions  *SessionCodec
	config    model.ServerConfig
	logger    *zap.Logger
}

// NewServer creates a new Server instance.
func NewServer(cfg model.ServerConfig, deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Processor == nil || deps.Pool == nil || deps.Store == nil {
		return nil, errors.New("server: processor, pool and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions, err := NewSessionCodec(cfg.AppKey, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(pages)

	s := &Server{
		router:    r,
		processor: deps.Processor,
		pool:      deps.Pool,
		store:     deps.Store,
		sessions:  sessions,
		config:    cfg,
		logger:    logger.Named("http"),
	}
	s.setupRoutes()
	return s, nil
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(RequestID(), RequestLogger(s.logger), Recovery(s.logger))
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(CORS(s.config.AllowedOrigins))
	} else {
		s.logger.Info("no allowed origins configured, cross-origin requests are not served")
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/", s.handleIndex)
	s.router.POST("/submit", s.handleSubmitForm)
	s.router.POST("/submit_question_and_documents", s.handleSubmitJSON)
	s.router.GET("/get_question_and_facts", s.handleGetQuestionAndFacts)
	s.router.GET("/results", s.handleResults)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
