package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"hoomachat/internal/config"
	"hoomachat/internal/report"
	"hoomachat/internal/service/chat"
)

// ChatService is the slice of the chat orchestrator the transport needs.
type ChatService interface {
	Handle(ctx context.Context, clientKey string, req chat.Request) (chat.Response, error)
}

// Handler wires HTTP routes to the chat orchestrator and the reporting
// service.
type Handler struct {
	chat    ChatService
	reports *report.Service
	cfg     *config.Config
}

// NewHandler constructs a Handler instance.
func NewHandler(chatService ChatService, reportService *report.Service, cfg *config.Config) *Handler {
	return &Handler{
		chat:    chatService,
		reports: reportService,
		cfg:     cfg,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.cfg.AllowedOrigins))

	router.GET("/health", h.basicHealth)

	api := router.Group("/api")
	api.GET("/health", h.detailedHealth)
	api.POST("/chat", h.postChat)

	if h.cfg.AdminEnabled() {
		admin := router.Group("/admin", gin.BasicAuth(gin.Accounts{
			h.cfg.AdminUsername: h.cfg.AdminPassword,
		}))
		admin.GET("/stats", h.adminStats)
		admin.GET("/conversations", h.adminConversations)
		admin.GET("/export", h.adminExport)
		admin.POST("/clear-sessions", h.adminClearSessions)
	}
}

type chatRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	UserInfo  map[string]any `json:"user_info"`
}

func (h *Handler) postChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.chat.Handle(c.Request.Context(), c.ClientIP(), chat.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		UserInfo:  req.UserInfo,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, please slow down"})
		case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error().Err(err).Msg("chat request failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response":   resp.Response,
		"session_id": resp.SessionID,
		"timestamp":  resp.Timestamp.Format(time.RFC3339),
	})
}

func (h *Handler) basicHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "hooma-chatbot"})
}

func (h *Handler) detailedHealth(c *gin.Context) {
	aiStatus := "no_api_key"
	if h.cfg.ProviderCredential() != "" {
		aiStatus = "configured"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"version":     "1.0.0",
		"ai_provider": fmt.Sprintf("%s_%s", h.cfg.Provider, aiStatus),
	})
}

func (h *Handler) adminStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.reports.Stats())
}

func (h *Handler) adminConversations(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": h.reports.RecentConversations(limit)})
}

func (h *Handler) adminExport(c *gin.Context) {
	export := h.reports.Export()
	filename := fmt.Sprintf("hooma-chatbot-data-%s.json", export.ExportedAt.Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.JSON(http.StatusOK, export)
}

func (h *Handler) adminClearSessions(c *gin.Context) {
	h.reports.Clear()
	c.Status(http.StatusNoContent)
}
