package vector

import "context"

// MockService is a configurable Service for tests.
type MockService struct {
	// Results are returned from Search after floor filtering.
	Results []RetrievalResult
	// SearchErr, when set, fails every Search call.
	SearchErr error
	// StatsResult is returned from Stats.
	StatsResult Stats

	// SearchCalls records the queries seen.
	SearchCalls []string
}

var _ Service = (*MockService)(nil)

func (m *MockService) Search(_ context.Context, query string, topK int, floor float32) ([]RetrievalResult, error) {
	m.SearchCalls = append(m.SearchCalls, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	var results []RetrievalResult
	for _, r := range m.Results {
		if r.Similarity >= floor {
			results = append(results, r)
		}
		if topK > 0 && len(results) >= topK {
			break
		}
	}
	return results, nil
}

func (m *MockService) Stats(context.Context) (*Stats, error) {
	stats := m.StatsResult
	return &stats, nil
}
