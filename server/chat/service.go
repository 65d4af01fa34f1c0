// Package chat orchestrates the conversation pipeline: session bookkeeping,
// knowledge retrieval, prompt assembly, and reply generation.
package chat

import (
	"context"
	"log/slog"
	"time"

	llm "github.com/pachverse/sitechat/plugin/ai"
	"github.com/pachverse/sitechat/plugin/ai/session"
	"github.com/pachverse/sitechat/plugin/ai/vector"
	serverai "github.com/pachverse/sitechat/server/ai"
	"github.com/pachverse/sitechat/server/internal/errors"
	"github.com/pachverse/sitechat/server/internal/observability"
)

// Completer generates a chat reply from a message list.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.ChatResult, error)
}

// Options configure the pipeline. Zero values fall back to the defaults
// used by NewService.
type Options struct {
	TopK            int
	SimilarityFloor float32
	DefaultLanguage string
	HistoryWindow   int
	Temperature     float32
	MaxReplyTokens  int
}

// Service runs the retrieval-augmented chat pipeline. Retrieval failures
// degrade the reply to an un-augmented one; generation failures are fatal
// for the request but the user's turn stays recorded in the session.
type Service struct {
	sessions  *session.Store
	retriever vector.Service
	completer Completer
	prompts   *serverai.PromptBuilder
	opts      Options
}

// NewService wires the pipeline's collaborators together.
func NewService(sessions *session.Store, retriever vector.Service, completer Completer, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = vector.DefaultTopK
	}
	if opts.SimilarityFloor <= 0 {
		opts.SimilarityFloor = 0.7
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxReplyTokens <= 0 {
		opts.MaxReplyTokens = 1024
	}
	return &Service{
		sessions:  sessions,
		retriever: retriever,
		completer: completer,
		prompts:   serverai.NewPromptBuilder(opts.HistoryWindow),
		opts:      opts,
	}
}

// SourceRef identifies one knowledge chunk that grounded a reply.
type SourceRef struct {
	Source      string  `json:"source"`
	Similarity  float32 `json:"similarity"`
	ContentType string  `json:"content_type"`
}

// Request is one user turn.
type Request struct {
	SessionID string
	Message   string
	Language  string
}

// Response is the generated reply plus its provenance.
type Response struct {
	SessionID string          `json:"session_id"`
	Reply     string          `json:"response"`
	Sources   []SourceRef     `json:"sources"`
	Round     int             `json:"round"`
	Model     string          `json:"model,omitempty"`
	Usage     *llm.TokenUsage `json:"usage,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Chat runs one full turn of the pipeline.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	if req.Language == "" {
		req.Language = s.opts.DefaultLanguage
	}
	lang := serverai.NormalizeLanguage(req.Language)

	// The limit check runs before the turn is stored: a rejected turn
	// must leave no trace in the session.
	s.sessions.GetOrCreate(req.SessionID, string(lang))
	if s.sessions.RoundLimitReached(req.SessionID) {
		return nil, errors.SessionLimitExceeded(s.sessions.MaxRounds())
	}

	// History is captured before the current turn is appended, so the
	// prompt's history window never contains the message being asked.
	history := sessionHistory(s.sessions.Messages(req.SessionID, 0))

	results, err := s.retriever.Search(ctx, req.Message, s.opts.TopK, s.opts.SimilarityFloor)
	if err != nil {
		// Degraded mode: answer without knowledge grounding.
		attrs := []slog.Attr{
			slog.String(observability.LogFieldStage, "retrieval"),
			slog.Any("error", err),
		}
		if rc, ok := observability.FromContext(ctx); ok {
			rc.Warn("retrieval failed, continuing without knowledge context", attrs...)
		} else {
			slog.LogAttrs(ctx, slog.LevelWarn, "retrieval failed, continuing without knowledge context", attrs...)
		}
		results = nil
	}

	prompt := s.prompts.BuildPrompt(req.Message, results, lang)
	messages := s.prompts.PrepareMessages(prompt, history)

	s.sessions.Append(req.SessionID, llm.RoleUser, req.Message)

	result, err := s.completer.Complete(ctx, messages, llm.ChatOptions{
		SystemPrompt: serverai.SystemPrompt(lang),
		Temperature:  s.opts.Temperature,
		MaxTokens:    s.opts.MaxReplyTokens,
	})
	if err != nil {
		// The user's turn stays recorded; only the reply is lost.
		return nil, errors.GenerationFailed(err)
	}

	s.sessions.Append(req.SessionID, llm.RoleAssistant, result.Reply)

	info, _ := s.sessions.Get(req.SessionID)
	return &Response{
		SessionID: req.SessionID,
		Reply:     result.Reply,
		Sources:   sourceRefs(results),
		Round:     info.MessageCount,
		Model:     result.Model,
		Usage:     &result.Usage,
		Timestamp: time.Now().UTC(),
	}, nil
}

// EndSession removes the session and all its history. Unknown or expired
// sessions end successfully: the caller wanted it gone and it is.
func (s *Service) EndSession(sessionID string) {
	s.sessions.Remove(sessionID)
}

// SessionInfo returns the session's metadata. A session at its round limit
// still exists and still reports its info; only unknown or expired sessions
// are not found.
func (s *Service) SessionInfo(sessionID string) (session.Info, error) {
	info, status := s.sessions.Resolve(sessionID)
	if status == session.StatusNotFound {
		return session.Info{}, errors.SessionNotFound(sessionID)
	}
	return info, nil
}

// SessionStats reports aggregate session metrics.
func (s *Service) SessionStats() session.Stats {
	return s.sessions.Stats()
}

// KnowledgeStats reports the size of the knowledge index.
func (s *Service) KnowledgeStats(ctx context.Context) (*vector.Stats, error) {
	stats, err := s.retriever.Stats(ctx)
	if err != nil {
		return nil, errors.RetrievalFailed(err)
	}
	return stats, nil
}

var suggestionsEN = []string{
	"What are your main technical skills?",
	"Tell me about your most interesting project.",
	"What is your professional background?",
	"How can I get in touch with you?",
}

var suggestionsZH = []string{
	"你有哪些主要的技术技能？",
	"介绍一下你最有意思的项目。",
	"你的职业背景是什么？",
	"怎样可以联系到你？",
}

// Suggestions returns canned conversation starters for the language.
func (s *Service) Suggestions(language string) []string {
	if serverai.NormalizeLanguage(language) == serverai.LanguageEN {
		return suggestionsEN
	}
	return suggestionsZH
}

func sessionHistory(messages []session.Message) []llm.Message {
	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return history
}

func sourceRefs(results []vector.RetrievalResult) []SourceRef {
	refs := make([]SourceRef, 0, len(results))
	for _, r := range results {
		refs = append(refs, SourceRef{
			Source:      r.Source,
			Similarity:  r.Similarity,
			ContentType: r.Metadata.ContentType,
		})
	}
	return refs
}
