package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/group-harmony/internal/db"
	"github.com/jonathan/group-harmony/internal/narrative"
	"github.com/jonathan/group-harmony/internal/pipeline"
	"github.com/jonathan/group-harmony/internal/server/ratelimit"
	"github.com/jonathan/group-harmony/internal/tastegraph"
	"github.com/jonathan/group-harmony/internal/trace"
	"github.com/jonathan/group-harmony/internal/types"
)

type fakeRunner struct {
	run    func(ctx context.Context, req types.RecommendationRequest) (*pipeline.Result, error)
	gotCtx context.Context
	gotReq types.RecommendationRequest
}

func (f *fakeRunner) Run(ctx context.Context, req types.RecommendationRequest) (*pipeline.Result, error) {
	f.gotCtx = ctx
	f.gotReq = req
	return f.run(ctx, req)
}

func okRunner() *fakeRunner {
	return &fakeRunner{run: func(ctx context.Context, req types.RecommendationRequest) (*pipeline.Result, error) {
		tr := trace.FromContext(ctx)
		tr.Infof("request", "group %s", req.GroupID)
		return &pipeline.Result{Recommendation: &types.RecommendationResponse{
			GroupID:         req.GroupID,
			Type:            types.CategoryMusic,
			Interests:       []string{"Daft Punk"},
			EntityIDs:       []string{"E1"},
			Recommendations: []types.Candidate{{"name": "Justice"}},
			Narrative:       types.Narrative{Recommendation: "Dance night", HarmonyScore: 80},
			DebugLog:        tr.Lines(),
		}}, nil
	}}
}

func failingRunner(err error) *fakeRunner {
	return &fakeRunner{run: func(ctx context.Context, _ types.RecommendationRequest) (*pipeline.Result, error) {
		trace.FromContext(ctx).Infof("members", "looked up group")
		return nil, err
	}}
}

func newTestServer(t *testing.T, runner Runner, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		RateLimit: &ratelimit.Config{Enabled: false},
		Getenv:    func(string) string { return "" },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s := New(cfg, runner)
	t.Cleanup(s.Close)
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.DebugLog, "debugLog must always be present")
	return body
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, okRunner())

	w := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, okRunner())
	do(s, http.MethodGet, "/health", "")

	w := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "harmony_http_requests_total")
}

func TestRecommendations_Success(t *testing.T) {
	for _, path := range []string{"/api/recommendations", "/api/recommend"} {
		t.Run(path, func(t *testing.T) {
			runner := okRunner()
			s := newTestServer(t, runner)

			w := do(s, http.MethodPost, path, `{"groupId":"ABC123","type":"music"}`)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp types.RecommendationResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "ABC123", resp.GroupID)
			assert.Equal(t, types.CategoryMusic, resp.Type)
			assert.Equal(t, []string{"E1"}, resp.EntityIDs)
			assert.Equal(t, 80, resp.Narrative.HarmonyScore)
			assert.Contains(t, resp.DebugLog, "[request] group ABC123")
			assert.Equal(t, "music", runner.gotReq.Type)
		})
	}
}

func TestRecommendations_DetachedFromClientCancel(t *testing.T) {
	runner := okRunner()
	s := newTestServer(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/recommendations", strings.NewReader(`{"groupId":"G","type":"music"}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, runner.gotCtx)
	assert.NoError(t, runner.gotCtx.Err())
}

func TestRecommendations_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, okRunner())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := do(s, method, "/api/recommendations", "")
		require.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		body := decodeError(t, w)
		assert.Equal(t, MsgMethodNotAllowed, body.Error)
	}
}

func TestCORSPreflight(t *testing.T) {
	runner := okRunner()
	s := newTestServer(t, runner)

	w := do(s, http.MethodOptions, "/api/recommendations", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Nil(t, runner.gotCtx, "preflight must not reach the pipeline")
}

func TestRecommendations_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: MsgMissingBody},
		{name: "malformed", body: `{"groupId":`, want: MsgInvalidJSON},
		{name: "wrong type", body: `{"groupId": 7}`, want: MsgInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := okRunner()
			s := newTestServer(t, runner)

			w := do(s, http.MethodPost, "/api/recommendations", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.want, body.Error)
			assert.Contains(t, body.DebugLog, "[request] "+tt.want)
			assert.Nil(t, runner.gotCtx)
		})
	}
}

func TestRecommendations_PipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "validation", err: &pipeline.ValidationError{Message: pipeline.MsgInvalidType}, wantStatus: http.StatusBadRequest, wantError: pipeline.MsgInvalidType},
		{name: "not found", err: &pipeline.NotFoundError{Message: pipeline.MsgGroupNotFound}, wantStatus: http.StatusNotFound, wantError: pipeline.MsgGroupNotFound},
		{name: "unexpected", err: errors.New("load member 2: connection reset"), wantStatus: http.StatusInternalServerError, wantError: "load member 2: connection reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, failingRunner(tt.err))

			w := do(s, http.MethodPost, "/api/recommendations", `{"groupId":"G","type":"music"}`)
			require.Equal(t, tt.wantStatus, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Contains(t, body.DebugLog, "[members] looked up group")
			assert.Empty(t, body.Stack)
		})
	}
}

func TestRecommendations_PanicStackOnlyInDevelopment(t *testing.T) {
	panicky := &fakeRunner{run: func(context.Context, types.RecommendationRequest) (*pipeline.Result, error) {
		panic("nil map write")
	}}

	prod := newTestServer(t, panicky)
	w := do(prod, http.MethodPost, "/api/recommendations", `{"groupId":"G","type":"music"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, MsgInternal+": nil map write", body.Error)
	assert.Empty(t, body.Stack)
	assert.Contains(t, body.DebugLog, "[server] panic: nil map write")

	dev := newTestServer(t, panicky, func(c *Config) { c.Development = true })
	w = do(dev, http.MethodPost, "/api/recommendations", `{"groupId":"G","type":"music"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body = decodeError(t, w)
	assert.Contains(t, body.Stack, "goroutine")
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t, okRunner())

	w := do(s, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestTestEndpoint(t *testing.T) {
	env := map[string]string{"QLOO_API_KEY": "secret", "APP_ENV": "development"}
	s := newTestServer(t, okRunner(), func(c *Config) {
		c.Getenv = func(k string) string { return env[k] }
	})
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	req := httptest.NewRequest(http.MethodGet, "/api/test?x=1", nil)
	req.Header.Set("X-Probe", "yes")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "API is working!", resp.Message)
	assert.Equal(t, "2026-03-01T09:30:00Z", resp.Timestamp)
	assert.Equal(t, "Present", resp.Environment["QLOO_API_KEY"])
	assert.Equal(t, "Missing", resp.Environment["GEMINI_API_KEY"])
	assert.Equal(t, "development", resp.Environment["APP_ENV"])
	assert.Equal(t, http.MethodGet, resp.Request.Method)
	assert.Equal(t, "/api/test?x=1", resp.Request.URL)
	assert.Equal(t, "yes", resp.Request.Headers.Get("X-Probe"))
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, okRunner(), func(c *Config) {
		c.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  100,
			DefaultWindow: time.Minute,
			EndpointConfigs: []ratelimit.EndpointConfig{
				{Path: "/api/recommendations", Method: http.MethodPost, Limit: 1, Window: time.Hour, Burst: 1},
			},
		}
	})

	w := do(s, http.MethodPost, "/api/recommendations", `{"groupId":"G","type":"music"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(s, http.MethodPost, "/api/recommendations", `{"groupId":"G","type":"music"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "error")
	assert.Contains(t, body, "debugLog")

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", "").Code)
	}
}

// memStore is a minimal preference store for end-to-end runs.
type memStore struct {
	groups map[string][]string
	users  map[string]types.UserProfile
}

func (m *memStore) GetGroupMembers(_ context.Context, groupID string) ([]string, error) {
	members, ok := m.groups[groupID]
	if !ok {
		return nil, &db.ErrGroupNotFound{GroupID: groupID}
	}
	return members, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*types.UserProfile, error) {
	p, ok := m.users[email]
	if !ok {
		return nil, &db.ErrUserNotFound{Email: email}
	}
	return &p, nil
}

func TestRecommendations_EndToEnd(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			_, _ = w.Write([]byte(`{"results":[{"entity_id":"E-` + r.URL.Query().Get("query") + `"}]}`))
		case "/v2/insights":
			_, _ = w.Write([]byte(`{"results":{"entities":[{"name":"Heat"},{"name":"Ronin"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer graph.Close()

	store := &memStore{
		groups: map[string][]string{"G1": {"ana@example.com"}},
		users: map[string]types.UserProfile{
			"ana@example.com": {Email: "ana@example.com", Interests: types.InterestLists{
				"movies": {{Name: "Thief"}},
			}},
		},
	}
	orch := pipeline.New(store, tastegraph.NewClient(tastegraph.Options{BaseURL: graph.URL}), nil, pipeline.Options{})
	s := newTestServer(t, orch)

	w := do(s, http.MethodPost, "/api/recommendations", `{"groupId":"G1","type":"movie"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.RecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Thief"}, resp.Interests)
	assert.Equal(t, []string{"E-Thief"}, resp.EntityIDs)
	require.Len(t, resp.Recommendations, 2)
	assert.Equal(t, "Heat", resp.Recommendations[0].Name())
	assert.Equal(t, narrative.DefaultHarmonyScore, resp.Narrative.HarmonyScore)
	assert.NotEmpty(t, resp.DebugLog)

	w = do(s, http.MethodPost, "/api/recommendations", `{"groupId":"NOPE","type":"movie"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, pipeline.MsgGroupNotFound, decodeError(t, w).Error)

	w = do(s, http.MethodPost, "/api/recommendations", `{"groupId":"G1","type":"opera"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pipeline.MsgInvalidType, decodeError(t, w).Error)
}
