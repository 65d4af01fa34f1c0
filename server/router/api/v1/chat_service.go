package v1

import (
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/pachverse/sitechat/server/chat"
	"github.com/pachverse/sitechat/server/internal/errors"
	"github.com/pachverse/sitechat/server/internal/observability"
)

const (
	minMessageLength = 1
	maxMessageLength = 2000
)

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Chat handles one conversation turn.
// POST /api/v1/chat
func (s *APIV1Service) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, errors.InvalidArgument("invalid request body"))
	}

	// Length limits are in characters, not bytes; CJK messages are
	// three bytes per rune in UTF-8.
	if n := utf8.RuneCountInString(req.Message); n < minMessageLength || n > maxMessageLength {
		return errorResponse(c, errors.InvalidArgument("message must be between 1 and 2000 characters"))
	}

	// A missing session ID starts a new conversation.
	if req.SessionID == "" {
		req.SessionID = shortuuid.New()
	}

	rc := observability.NewRequestContext(slog.Default(), req.SessionID, req.Language)
	ctx := observability.WithRequestContext(c.Request().Context(), rc)
	rc.Info("chat turn started", slog.Int(observability.LogFieldMessageLen, len(req.Message)))

	resp, err := s.ChatService.Chat(ctx, chat.Request{
		SessionID: req.SessionID,
		Message:   req.Message,
		Language:  req.Language,
	})
	if err != nil {
		code := errors.GetCodeFromError(err, errors.ErrCodeProcessingFailed)
		if errors.IsCode(err, errors.ErrCodeSessionLimitExceeded) {
			// Hitting the round limit is normal client behavior, not a fault.
			rc.Warn("chat turn rejected", slog.String(observability.LogFieldErrorCode, string(code)))
		} else {
			rc.Error("chat turn failed", err, slog.String(observability.LogFieldErrorCode, string(code)))
		}
		return errorResponse(c, err)
	}

	rc.Info("chat turn done",
		slog.Int("sources", len(resp.Sources)),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return c.JSON(http.StatusOK, resp)
}

// EndSession deletes a session and its history.
// DELETE /api/v1/chat/:sessionId
func (s *APIV1Service) EndSession(c echo.Context) error {
	sessionID := c.Param("sessionId")
	s.ChatService.EndSession(sessionID)
	return c.JSON(http.StatusOK, map[string]any{
		"message":    "session ended",
		"session_id": sessionID,
	})
}

// GetSessionInfo returns a session's metadata.
// GET /api/v1/chat/sessions/:sessionId
func (s *APIV1Service) GetSessionInfo(c echo.Context) error {
	info, err := s.ChatService.SessionInfo(c.Param("sessionId"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// GetSessionStats returns aggregate session metrics.
// GET /api/v1/chat/sessions
func (s *APIV1Service) GetSessionStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ChatService.SessionStats())
}

// GetSuggestions returns conversation starters.
// GET /api/v1/chat/suggestions
func (s *APIV1Service) GetSuggestions(c echo.Context) error {
	language := c.QueryParam("language")
	return c.JSON(http.StatusOK, map[string]any{
		"suggestions": s.ChatService.Suggestions(language),
		"timestamp":   time.Now().UTC(),
	})
}
