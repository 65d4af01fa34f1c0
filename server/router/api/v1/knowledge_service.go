package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pachverse/sitechat/server/internal/errors"
)

// GetKnowledgeStats reports the size of the knowledge index.
// GET /api/v1/knowledge/stats
func (s *APIV1Service) GetKnowledgeStats(c echo.Context) error {
	stats, err := s.ChatService.KnowledgeStats(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"index":    stats,
		"sessions": s.ChatService.SessionStats(),
		"config": map[string]any{
			"top_k":              s.Profile.TopK,
			"similarity_floor":   s.Profile.SimilarityFloor,
			"chunk_token_budget": s.Profile.ChunkTokenBudget,
			"embedding_model":    s.Profile.EmbeddingModel,
		},
	})
}

// ReindexKnowledge drops and rebuilds the knowledge index from the
// configured knowledge directory.
// POST /api/v1/knowledge/reindex
func (s *APIV1Service) ReindexKnowledge(c echo.Context) error {
	if s.Indexer == nil {
		return errorResponse(c, errors.ConfigurationInvalid("knowledge indexing is not configured"))
	}

	result, err := s.Indexer.Reindex(c.Request().Context(), s.Profile.KnowledgeDir)
	if err != nil {
		return errorResponse(c, errors.ProcessingFailed(err))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"documents":  result.Documents,
		"chunks":     result.Chunks,
		"failed":     result.Failed,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})
}
