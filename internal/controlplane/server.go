package controlplane

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/autopilot/internal/models"
	"github.com/gin-gonic/gin"
)

// Message page bounds for the chat listing endpoint.
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 500
)

// Server provides the HTTP API of the local daemon.
type Server struct {
	service *Service
	addr    string
	apiKey  string
	logger  *slog.Logger

	Engine *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server. An empty apiKey disables auth.
func NewServer(service *Service, addr, apiKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: service,
		addr:    addr,
		apiKey:  apiKey,
		logger:  logger,
		Engine:  gin.New(),
	}
	s.Engine.Use(gin.Recovery())
	s.Engine.Use(s.logMiddleware())
	s.Engine.Use(s.authMiddleware())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.Engine.GET("/health", s.handleHealth)

	agents := s.Engine.Group("/agents")
	{
		agents.GET("", s.listAgents)
		agents.POST("", s.createAgent)
		agents.GET("/:id", s.getAgent)
		agents.PUT("/:id", s.updateAgent)
		agents.GET("/:id/audit", s.getAudit)
		agents.GET("/:id/chats/:chatId/messages", s.listMessages)
		agents.POST("/:id/chats/:chatId/messages", s.appendMessage)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.Engine }

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting autopilot daemon", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrAgentNotFound), errors.Is(err, ErrChatNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidAgent):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	health := s.service.Health(c.Request.Context())
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

// --- Agent Handlers ---

type createAgentRequest struct {
	Name string `json:"name"`
}

func (s *Server) createAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	agent, err := s.service.CreateAgent(req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (s *Server) listAgents(c *gin.Context) {
	agents, err := s.service.ListAgents()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

func (s *Server) getAgent(c *gin.Context) {
	agent, err := s.service.GetAgent(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) updateAgent(c *gin.Context) {
	var agent models.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updated, err := s.service.UpdateAgent(c.Param("id"), &agent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) getAudit(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	recs, err := s.service.AuditLog(c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs})
}

// --- Chat Handlers ---

func (s *Server) listMessages(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := s.service.ListMessages(c.Param("id"), c.Param("chatId"), limit, c.Query("cursor"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) appendMessage(c *gin.Context) {
	var msg models.ExecutionMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	stored, err := s.service.AppendMessage(c.Param("id"), c.Param("chatId"), msg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultMessageLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, raw)
	}
	if n > MaxMessageLimit {
		n = MaxMessageLimit
	}
	return n, nil
}
