package chat

import (
	"context"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llm "github.com/pachverse/sitechat/plugin/ai"
	"github.com/pachverse/sitechat/plugin/ai/session"
	"github.com/pachverse/sitechat/plugin/ai/vector"
	"github.com/pachverse/sitechat/server/internal/errors"
)

type fakeCompleter struct {
	reply string
	err   error

	// calls records the message lists seen by Complete.
	calls [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message, _ llm.ChatOptions) (*llm.ChatResult, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResult{Reply: f.reply, Model: "gpt-4o-mini"}, nil
}

func newTestService(t *testing.T, retriever vector.Service, completer Completer) (*Service, *session.Store) {
	t.Helper()
	sessions := session.NewStore(session.Config{
		Capacity:      100,
		HistoryCap:    20,
		MaxRounds:     5,
		SweepInterval: 0,
	})
	t.Cleanup(sessions.Close)
	return NewService(sessions, retriever, completer, Options{
		TopK:            5,
		SimilarityFloor: 0.7,
		HistoryWindow:   4,
	}), sessions
}

func TestChat(t *testing.T) {
	ctx := context.Background()

	t.Run("ReplyWithSources", func(t *testing.T) {
		retriever := &vector.MockService{Results: []vector.RetrievalResult{
			{Content: "Go backend work", Similarity: 0.9, Source: "experience.md",
				Metadata: vector.ChunkMetadata{ContentType: "experience"}},
		}}
		completer := &fakeCompleter{reply: "I mostly build Go backends."}
		svc, sessions := newTestService(t, retriever, completer)

		resp, err := svc.Chat(ctx, Request{SessionID: "s1", Message: "what do you do?", Language: "en"})
		require.NoError(t, err)
		assert.Equal(t, "I mostly build Go backends.", resp.Reply)
		assert.Equal(t, 1, resp.Round)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, "experience.md", resp.Sources[0].Source)
		assert.Equal(t, "experience", resp.Sources[0].ContentType)

		// Both turns are now in the session.
		msgs := sessions.Messages("s1", 0)
		require.Len(t, msgs, 2)
		assert.Equal(t, llm.RoleUser, msgs[0].Role)
		assert.Equal(t, "what do you do?", msgs[0].Content)
		assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	})

	t.Run("RoundLimitRejectsBeforeStoring", func(t *testing.T) {
		svc, sessions := newTestService(t, &vector.MockService{}, &fakeCompleter{reply: "ok"})

		for i := 0; i < 5; i++ {
			_, err := svc.Chat(ctx, Request{SessionID: "s2", Message: fmt.Sprintf("round %d", i)})
			require.NoError(t, err)
		}

		_, err := svc.Chat(ctx, Request{SessionID: "s2", Message: "one too many"})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeSessionLimitExceeded, errors.GetCodeFromError(err, errors.ErrCodeProcessingFailed))

		// The rejected turn left no trace.
		for _, msg := range sessions.Messages("s2", 0) {
			assert.NotEqual(t, "one too many", msg.Content)
		}
		info, ok := sessions.Get("s2")
		require.True(t, ok)
		assert.Equal(t, 5, info.MessageCount)
	})

	t.Run("RetrievalFailureDegrades", func(t *testing.T) {
		retriever := &vector.MockService{SearchErr: pkgerrors.New("vector db down")}
		completer := &fakeCompleter{reply: "answering from memory"}
		svc, _ := newTestService(t, retriever, completer)

		resp, err := svc.Chat(ctx, Request{SessionID: "s3", Message: "hello", Language: "en"})
		require.NoError(t, err)
		assert.Equal(t, "answering from memory", resp.Reply)
		assert.Empty(t, resp.Sources)

		// The degraded prompt carries no retrieved context.
		require.Len(t, completer.calls, 1)
		last := completer.calls[0][len(completer.calls[0])-1]
		assert.NotContains(t, last.Content, "## Relevant Information:")
	})

	t.Run("GenerationFailureKeepsUserTurn", func(t *testing.T) {
		completer := &fakeCompleter{err: pkgerrors.New("model unavailable")}
		svc, sessions := newTestService(t, &vector.MockService{}, completer)

		_, err := svc.Chat(ctx, Request{SessionID: "s4", Message: "doomed question"})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeGenerationFailed, errors.GetCodeFromError(err, errors.ErrCodeProcessingFailed))

		msgs := sessions.Messages("s4", 0)
		require.Len(t, msgs, 1)
		assert.Equal(t, "doomed question", msgs[0].Content)
		info, ok := sessions.Get("s4")
		require.True(t, ok)
		assert.Equal(t, 1, info.MessageCount)
	})

	t.Run("PromptHistoryExcludesCurrentTurn", func(t *testing.T) {
		completer := &fakeCompleter{reply: "ok"}
		svc, _ := newTestService(t, &vector.MockService{}, completer)

		_, err := svc.Chat(ctx, Request{SessionID: "s5", Message: "first"})
		require.NoError(t, err)
		_, err = svc.Chat(ctx, Request{SessionID: "s5", Message: "second"})
		require.NoError(t, err)

		// Second call: history is [first, ok], then the augmented prompt.
		second := completer.calls[1]
		require.Len(t, second, 3)
		assert.Equal(t, "first", second[0].Content)
		assert.Equal(t, "ok", second[1].Content)
		assert.Contains(t, second[2].Content, "second")
	})
}

func TestEndSession(t *testing.T) {
	svc, sessions := newTestService(t, &vector.MockService{}, &fakeCompleter{reply: "ok"})

	_, err := svc.Chat(context.Background(), Request{SessionID: "gone", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, 1, sessions.Count())

	svc.EndSession("gone")
	assert.Equal(t, 0, sessions.Count())

	// Ending an unknown session is not an error.
	svc.EndSession("never-existed")
}

func TestSessionInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("KnownSession", func(t *testing.T) {
		svc, _ := newTestService(t, &vector.MockService{}, &fakeCompleter{reply: "ok"})

		_, err := svc.Chat(ctx, Request{SessionID: "known", Message: "hi", Language: "en"})
		require.NoError(t, err)

		info, err := svc.SessionInfo("known")
		require.NoError(t, err)
		assert.Equal(t, "known", info.SessionID)
		assert.Equal(t, 1, info.MessageCount)
		assert.Equal(t, "en", info.Language)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		svc, _ := newTestService(t, &vector.MockService{}, &fakeCompleter{reply: "ok"})

		_, err := svc.SessionInfo("unknown")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeSessionNotFound, errors.GetCodeFromError(err, errors.ErrCodeProcessingFailed))
	})

	t.Run("SessionAtRoundLimitStillReports", func(t *testing.T) {
		svc, _ := newTestService(t, &vector.MockService{}, &fakeCompleter{reply: "ok"})

		for i := 0; i < 5; i++ {
			_, err := svc.Chat(ctx, Request{SessionID: "maxed", Message: fmt.Sprintf("round %d", i)})
			require.NoError(t, err)
		}
		_, err := svc.Chat(ctx, Request{SessionID: "maxed", Message: "one too many"})
		require.Error(t, err)

		// The session still exists; its info stays readable.
		info, err := svc.SessionInfo("maxed")
		require.NoError(t, err)
		assert.Equal(t, "maxed", info.SessionID)
		assert.Equal(t, 5, info.MessageCount)
	})
}

func TestSuggestions(t *testing.T) {
	svc, _ := newTestService(t, &vector.MockService{}, &fakeCompleter{})

	assert.NotEmpty(t, svc.Suggestions("en"))
	assert.NotEmpty(t, svc.Suggestions("zh"))
	assert.NotEqual(t, svc.Suggestions("en")[0], svc.Suggestions("zh")[0])
	assert.Equal(t, svc.Suggestions("zh"), svc.Suggestions("unknown"))
}
