package tastegraph

import (
	"context"

	"github.com/jonathan/group-harmony/internal/trace"
	"github.com/jonathan/group-harmony/internal/types"
)

// InsightsAPI is the insights half of the taste-graph API.
type InsightsAPI interface {
	Insights(ctx context.Context, q InsightsQuery) ([]types.Candidate, error)
}

// API is the full taste-graph surface the pipeline uses. *Client implements it.
type API interface {
	Searcher
	InsightsAPI
}

// Fetcher retrieves ranked candidates for resolved entity IDs.
type Fetcher struct {
	api  InsightsAPI
	take int
}

// NewFetcher creates a Fetcher. take is clamped to the supported range.
func NewFetcher(api InsightsAPI, take int) *Fetcher {
	return &Fetcher{api: api, take: clampTake(take)}
}

// Fetch returns candidates for the given IDs. Errors are recorded in the
// request trace and produce an empty, non-nil list.
func (f *Fetcher) Fetch(ctx context.Context, category types.Category, ids []string, filters *types.Filters) []types.Candidate {
	tr := trace.FromContext(ctx)

	q, notes := BuildQuery(category, ids, filters, f.take)
	for _, n := range notes {
		tr.Infof("insights", "%s", n)
	}
	tr.Debugf("insights", "query type=%s entities=%d filters=%v take=%d", q.EntityType, len(q.EntityIDs), q.FilterKeys(), q.Take)

	candidates, err := f.api.Insights(ctx, q)
	if err != nil {
		tr.Errorf("insights", "insights call failed: %v", err)
		return []types.Candidate{}
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}
	tr.Infof("insights", "received %d %s candidates", len(candidates), category)
	return candidates
}
