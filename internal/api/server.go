// Package api exposes the local control surface over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"candlebot/internal/config"
	"candlebot/internal/feed"
	"candlebot/internal/journal"
	"candlebot/internal/position"
	"candlebot/pkg/logger"
)

// Server serves the health, status, trade history and manual-exit
// endpoints. It reads through the position manager's mutex, so responses
// always reflect a consistent position snapshot.
type Server struct {
	cfg     config.APIConfig
	manager *position.Manager
	journal journal.Journaler
	feed    *feed.Feed

	srv *http.Server
}

func NewServer(cfg config.APIConfig, m *position.Manager, j journal.Journaler, f *feed.Feed, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, manager: m, journal: j, feed: f}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	authed := r.Group("/", s.auth())
	authed.GET("/status", s.handleStatus)
	authed.GET("/trades", s.handleTrades)
	authed.POST("/sell", s.handleSell)

	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Infof("API | Listening on %s", s.cfg.ListenAddr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// auth requires a bearer token on mutating and stateful endpoints when
// one is configured. An empty token leaves the surface open, which is
// only sane on a loopback listener.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AuthToken == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token != s.cfg.AuthToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{"position": s.manager.Status()}
	if s.feed != nil {
		resp["feed"] = gin.H{
			"state":      s.feed.State().String(),
			"reconnects": s.feed.Reconnects(),
			"last_event": s.feed.LastMessageAt(),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTrades(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}

	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)
	trades, err := s.journal.GetTrades(c.Request.Context(), start, end)
	if err != nil {
		logger.Errorf("API | Failed to fetch trades: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// handleSell triggers a manual market exit. Selling while flat is a
// warning, not an error.
func (s *Server) handleSell(c *gin.Context) {
	res := s.manager.ForceExit(c.Request.Context())
	switch res.Status {
	case "error":
		c.JSON(http.StatusInternalServerError, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
