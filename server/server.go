// Package server assembles the HTTP server around the chat pipeline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/pachverse/sitechat/internal/profile"
	llm "github.com/pachverse/sitechat/plugin/ai"
	"github.com/pachverse/sitechat/plugin/ai/session"
	"github.com/pachverse/sitechat/server/chat"
	"github.com/pachverse/sitechat/server/knowledge"
	"github.com/pachverse/sitechat/server/retrieval"
	apiv1 "github.com/pachverse/sitechat/server/router/api/v1"
	"github.com/pachverse/sitechat/store"
)

// Server owns the echo instance, the session store, and the AI provider.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	sessions   *session.Store
	provider   *llm.Provider
}

// NewServer wires every component from the profile: provider, session
// store, retrieval searcher, chat pipeline, knowledge indexer, routes.
func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store) (*Server, error) {
	provider, err := llm.NewProvider(&llm.Config{
		BaseURL:          profile.OpenAIBaseURL,
		APIKey:           profile.OpenAIAPIKey,
		ChatModel:        profile.ChatModel,
		EmbeddingModel:   profile.EmbeddingModel,
		MaxContextTokens: profile.MaxContextTokens,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AI provider")
	}

	sessions := session.NewStore(session.Config{
		Capacity:   profile.SessionCapacity,
		TTL:        profile.SessionTTL,
		HistoryCap: profile.HistoryCap,
		MaxRounds:  profile.MaxRounds,
	})

	searcher := retrieval.NewSearcher(provider, st, profile.EmbeddingModel)
	chatService := chat.NewService(sessions, searcher, provider, chat.Options{
		TopK:            profile.TopK,
		SimilarityFloor: float32(profile.SimilarityFloor),
		DefaultLanguage: profile.DefaultLanguage,
		HistoryWindow:   profile.PromptHistoryWindow,
	})
	indexer := knowledge.NewIndexer(provider, st, profile.ChunkTokenBudget)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: profile.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))

	s := &Server{
		Profile:    profile,
		Store:      st,
		echoServer: e,
		sessions:   sessions,
		provider:   provider,
	}

	apiService := apiv1.NewAPIV1Service(profile, st, chatService, indexer)
	apiService.RegisterRoutes(e)

	return s, nil
}

// Start runs the HTTP listener until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started",
		slog.String("address", address),
		slog.String("mode", s.Profile.Mode),
		slog.String("driver", s.Profile.Driver))

	if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown stops the listener, the session sweep, and the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down http server", slog.Any("error", err))
	}

	s.sessions.Close()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.Any("error", err))
	}

	slog.Info("server shut down")
}
