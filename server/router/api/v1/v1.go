// Package v1 exposes the HTTP API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pachverse/sitechat/internal/profile"
	"github.com/pachverse/sitechat/server/chat"
	"github.com/pachverse/sitechat/server/internal/errors"
	"github.com/pachverse/sitechat/server/knowledge"
	"github.com/pachverse/sitechat/server/middleware"
	"github.com/pachverse/sitechat/store"
)

// APIV1Service wires the chat pipeline and knowledge index into routes.
type APIV1Service struct {
	Profile     *profile.Profile
	Store       *store.Store
	ChatService *chat.Service
	Indexer     *knowledge.Indexer

	chatLimiter *middleware.RateLimiter
}

// NewAPIV1Service creates the API service.
func NewAPIV1Service(profile *profile.Profile, st *store.Store, chatService *chat.Service, indexer *knowledge.Indexer) *APIV1Service {
	return &APIV1Service{
		Profile:     profile,
		Store:       st,
		ChatService: chatService,
		Indexer:     indexer,
		chatLimiter: middleware.NewRateLimiter(profile.RateLimitPerMinute),
	}
}

// RegisterRoutes attaches all v1 routes to the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.POST("/chat", s.Chat, s.chatLimiter.Middleware())
	g.DELETE("/chat/:sessionId", s.EndSession)
	g.GET("/chat/sessions/:sessionId", s.GetSessionInfo)
	g.GET("/chat/sessions", s.GetSessionStats)
	g.GET("/chat/suggestions", s.GetSuggestions)

	g.GET("/knowledge/stats", s.GetKnowledgeStats)
	g.POST("/knowledge/reindex", s.ReindexKnowledge)

	g.GET("/health", s.GetHealth)
	g.GET("/health/detailed", s.GetDetailedHealth)
}

// errorResponse maps a pipeline error onto an HTTP status and body.
func errorResponse(c echo.Context, err error) error {
	code := errors.GetCodeFromError(err, errors.ErrCodeProcessingFailed)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case errors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeSessionLimitExceeded, errors.ErrCodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case errors.ErrCodeGenerationFailed, errors.ErrCodeRetrievalFailed, errors.ErrCodeProcessingFailed:
		status = http.StatusInternalServerError
	}

	message := "internal error"
	var chatErr *errors.ChatError
	if e, ok := err.(*errors.ChatError); ok {
		chatErr = e
		message = e.Message
	}

	body := map[string]any{
		"error": message,
		"code":  code,
	}
	if chatErr != nil && len(chatErr.Context) > 0 {
		body["details"] = chatErr.Context
	}
	return c.JSON(status, body)
}
