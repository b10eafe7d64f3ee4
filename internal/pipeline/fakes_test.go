package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jonathan/group-harmony/internal/db"
	"github.com/jonathan/group-harmony/internal/llm"
	"github.com/jonathan/group-harmony/internal/tastegraph"
	"github.com/jonathan/group-harmony/internal/types"
)

type fakeStore struct {
	groups   map[string][]string
	users    map[string]types.UserProfile
	groupErr error
	userErr  error
}

func (s *fakeStore) GetGroupMembers(_ context.Context, groupID string) ([]string, error) {
	if s.groupErr != nil {
		return nil, s.groupErr
	}
	members, ok := s.groups[groupID]
	if !ok {
		return nil, &db.ErrGroupNotFound{GroupID: groupID}
	}
	if len(members) == 0 {
		return nil, &db.ErrEmptyGroup{GroupID: groupID}
	}
	return members, nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*types.UserProfile, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	p, ok := s.users[email]
	if !ok {
		return nil, &db.ErrUserNotFound{Email: email}
	}
	return &p, nil
}

// fakeAPI resolves every query to "id:<query>" unless listed in misses.
type fakeAPI struct {
	mu          sync.Mutex
	searches    []string
	insights    atomic.Int32
	misses      map[string]bool
	insightsErr error
	candidates  []types.Candidate
	lastQuery   tastegraph.InsightsQuery
}

func (a *fakeAPI) Search(_ context.Context, query string, _ types.Category) (map[string]any, error) {
	a.mu.Lock()
	a.searches = append(a.searches, query)
	a.mu.Unlock()
	if a.misses[query] {
		return map[string]any{"results": []any{}}, nil
	}
	return map[string]any{"results": []any{map[string]any{"entity_id": "id:" + query}}}, nil
}

func (a *fakeAPI) Insights(_ context.Context, q tastegraph.InsightsQuery) ([]types.Candidate, error) {
	a.insights.Add(1)
	a.mu.Lock()
	a.lastQuery = q
	a.mu.Unlock()
	if a.insightsErr != nil {
		return nil, a.insightsErr
	}
	return a.candidates, nil
}

func (a *fakeAPI) searchCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.searches)
}

type fakeLLM struct {
	reply string
	err   error
	calls atomic.Int32
}

func (f *fakeLLM) GenerateContent(context.Context, string, llm.ModelTier) (string, error) {
	f.calls.Add(1)
	return f.reply, f.err
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.GenerateContent(ctx, prompt, tier)
}

func (f *fakeLLM) GetModel(llm.ModelTier) string { return "fake" }

func (f *fakeLLM) Close() error { return nil }

var errStoreDown = errors.New("connection reset")

func newFixture() (*fakeStore, *fakeAPI, *fakeLLM) {
	store := &fakeStore{
		groups: map[string][]string{
			"G1":    {"ana@example.com", "bo@example.com", "ghost@example.com"},
			"EMPTY": {},
			"GHOST": {"ghost@example.com"},
		},
		users: map[string]types.UserProfile{
			"ana@example.com": {Email: "ana@example.com", Name: "Ana", Interests: types.InterestLists{
				"musicArtists":       {{Name: "Daft Punk"}, {Name: "Air"}},
				"movies":             {{Name: "Heat"}},
				"travelDestinations": {{Name: "Kyoto"}},
			}},
			"bo@example.com": {Email: "bo@example.com", Name: "Bo", Interests: types.InterestLists{
				"musicArtists":    {{Name: "daft punk"}, {Name: "Justice"}, {Name: "Phoenix"}},
				"favoriteArtists": {{Name: "Cassius"}},
			}},
		},
	}
	api := &fakeAPI{candidates: []types.Candidate{{"name": "Sébastien Tellier"}, {"name": "Kavinsky"}}}
	gen := &fakeLLM{reply: `{"recommendation":"French touch night","alternative":"Indie rock","harmonyScore":84,"vibeAnalysis":"Shared French house roots."}`}
	return store, api, gen
}
