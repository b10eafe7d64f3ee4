package tastegraph

import (
	"context"
	"strings"

	"github.com/jonathan/group-harmony/internal/trace"
	"github.com/jonathan/group-harmony/internal/types"
	"golang.org/x/sync/errgroup"
)

// DefaultResolveCap bounds how many interests are searched per category.
const DefaultResolveCap = 3

// Searcher is the search half of the taste-graph API.
type Searcher interface {
	Search(ctx context.Context, query string, category types.Category) (map[string]any, error)
}

// idExtractor pulls an entity ID out of one search hit.
type idExtractor func(hit map[string]any) string

// idExtractors are tried in order; the first non-empty value wins.
// New response shapes are added here.
var idExtractors = []idExtractor{
	func(hit map[string]any) string { return stringField(hit, "entity_id") },
	func(hit map[string]any) string {
		if nested, ok := hit["qloo"].(map[string]any); ok {
			return stringField(nested, "id")
		}
		return ""
	},
	func(hit map[string]any) string { return stringField(hit, "id") },
}

// hitLocators find the list of hits inside a search response, in order.
var hitLocators = []func(body map[string]any) []any{
	func(body map[string]any) []any { return asList(body["results"]) },
	func(body map[string]any) []any {
		if nested, ok := body["results"].(map[string]any); ok {
			return asList(nested["entities"])
		}
		return nil
	},
	func(body map[string]any) []any { return asList(body["entities"]) },
}

// ExtractEntityID returns the ID of the first hit in a search response, or "".
func ExtractEntityID(body map[string]any) string {
	for _, locate := range hitLocators {
		hits := locate(body)
		if len(hits) == 0 {
			continue
		}
		hit, ok := hits[0].(map[string]any)
		if !ok {
			return ""
		}
		for _, extract := range idExtractors {
			if id := extract(hit); id != "" {
				return id
			}
		}
		return ""
	}
	return ""
}

// Resolver maps free-text interests to taste-graph entity IDs.
type Resolver struct {
	searcher    Searcher
	limit       int
	concurrency int
}

// NewResolver creates a Resolver that searches at most limit interests per
// call. limit <= 0 uses DefaultResolveCap.
func NewResolver(searcher Searcher, limit int) *Resolver {
	if limit <= 0 {
		limit = DefaultResolveCap
	}
	return &Resolver{searcher: searcher, limit: limit, concurrency: limit}
}

// Resolve searches the first limit interests concurrently and returns one ID
// per resolved interest in input order, without duplicates. Failures are
// recorded in the request trace and skipped; Resolve never fails as a whole.
func (r *Resolver) Resolve(ctx context.Context, interests []string, category types.Category) []string {
	tr := trace.FromContext(ctx)

	queries := make([]string, 0, min(len(interests), r.limit))
	for _, interest := range interests {
		if len(queries) == r.limit {
			break
		}
		if q := strings.TrimSpace(interest); q != "" {
			queries = append(queries, q)
		}
	}
	if len(interests) > len(queries) {
		tr.Debugf("resolve", "searching %d of %d %s interests", len(queries), len(interests), category)
	}

	slots := make([]string, len(queries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, q := range queries {
		g.Go(func() error {
			body, err := r.searcher.Search(gCtx, q, category)
			if err != nil {
				tr.Warnf("resolve", "search for %q failed: %v", q, err)
				return nil
			}
			id := ExtractEntityID(body)
			if id == "" {
				tr.Infof("resolve", "no entity found for %q", q)
				return nil
			}
			tr.Infof("resolve", "resolved %q to %s", q, id)
			slots[i] = id
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{}, len(slots))
	ids := make([]string, 0, len(slots))
	for _, id := range slots {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}
