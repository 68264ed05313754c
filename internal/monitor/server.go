package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/models"
)

// pushInterval caps how often a websocket client receives snapshots.
const pushInterval = 100 * time.Millisecond

// DeviceLister supplies the device list for the /api/devices endpoint.
type DeviceLister func() []models.DeviceInfo

// Server serves the monitor API on the configured listen address.
type Server struct {
	cfg     config.MonitorConfig
	bridge  *Bridge
	devices DeviceLister
	logger  *zap.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates the monitor server. devices may be nil, in which case
// /api/devices serves an empty list.
func NewServer(cfg config.MonitorConfig, bridge *Bridge, devices DeviceLister, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		bridge:  bridge,
		devices: devices,
		logger:  logger,
		upgrader: websocket.Upgrader{
			// Local monitoring UIs are served from file:// or other ports.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/api/status", s.handleStatus)
	router.GET("/api/devices", s.handleDevices)
	router.GET("/api/live", s.handleLive)

	s.httpServer = &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}
	return s
}

// Start runs the listener in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("monitor server listening", zap.String("addr", s.cfg.Listen))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("monitor server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.bridge.Snapshot())
}

func (s *Server) handleDevices(c *gin.Context) {
	devices := []models.DeviceInfo{}
	if s.devices != nil {
		devices = s.devices()
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

// handleLive upgrades to a websocket and pushes snapshots at a capped
// rate until the client disconnects.
func (s *Server) handleLive(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	s.logger.Debug("live client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain control frames so pings and the close handshake are handled.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(s.bridge.Snapshot()); err != nil {
				return
			}
		}
	}
}
