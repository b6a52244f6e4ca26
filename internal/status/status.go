// Package status serves health, metrics and session summaries over HTTP.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"jellycord/internal/metrics"
	"jellycord/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Sessions lists the open guild sessions.
type Sessions interface {
	List() []session.Info
}

// Jobs reports background jobs.
type Jobs interface {
	List() []string
}

// Server is the status HTTP server.
type Server struct {
	router   *gin.Engine
	sessions Sessions
	jobs     Jobs
	started  time.Time
	log      *logrus.Entry
}

func New(sessions Sessions, jobs Jobs, log *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:   gin.New(),
		sessions: sessions,
		jobs:     jobs,
		started:  time.Now(),
		log:      log.WithField("component", "status"),
	}
	s.router.Use(gin.Recovery(), s.logRequests)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.GET("/sessions", s.listSessions)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"jobs":   s.jobs.List(),
	})
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.List()})
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"status": c.Writer.Status(),
		"took":   time.Since(start),
	}).Debug("Status request")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("Status server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
