package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/KevinKickass/ShackControl/internal/api/websocket"
	"github.com/KevinKickass/ShackControl/internal/auth"
	"github.com/KevinKickass/ShackControl/internal/config"
	"github.com/KevinKickass/ShackControl/internal/interfaces"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	panel  interfaces.Panel
	logger *zap.Logger
	server *http.Server
	wsHub  *websocket.Hub
	auth   *auth.Middleware
}

func NewServer(cfg config.RemoteConfig, panel interfaces.Panel, logger *zap.Logger, wsHub *websocket.Hub, authMW *auth.Middleware) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		panel:  panel,
		logger: logger,
		wsHub:  wsHub,
		auth:   authMW,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:        cfg.Listen,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background. Bind
// errors are returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting remote panel", zap.String("address", ln.Addr().String()),
		zap.Bool("auth", s.auth.Enabled()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Remote panel failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down remote panel")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		api := v1.Group("")
		api.Use(s.auth.Authenticate())
		{
			api.GET("/status", s.auth.RequireScope(auth.ScopeMonitor), s.getStatus)
			api.POST("/command", s.auth.RequireScope(auth.ScopeControl), s.executeCommand)
		}

		// Auth via first message
		v1.GET("/ws/live", s.wsLiveConnection)
	}
}

func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"device":    s.panel.Kind(),
		"clients":   s.wsHub.ClientCount(),
		"timestamp": time.Now().Unix(),
	})
}
