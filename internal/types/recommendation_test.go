//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func TestRecommendationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request RecommendationRequest
		wantErr bool
		field   string
	}{
		{
			name:    "minimal single category",
			request: RecommendationRequest{GroupID: "ABC123", Type: "music"},
		},
		{
			name:    "itinerary with days",
			request: RecommendationRequest{GroupID: "ABC123", Type: "itinerary", Days: 5, Destination: "Kyoto"},
		},
		{
			name:    "missing group",
			request: RecommendationRequest{Type: "music"},
			wantErr: true,
			field:   "groupId",
		},
		{
			name:    "too many days",
			request: RecommendationRequest{GroupID: "ABC123", Type: "itinerary", Days: 15},
			wantErr: true,
			field:   "days",
		},
		{
			name:    "negative days",
			request: RecommendationRequest{GroupID: "ABC123", Type: "itinerary", Days: -1},
			wantErr: true,
			field:   "days",
		},
		{
			name: "popularity out of range",
			request: RecommendationRequest{GroupID: "ABC123", Type: "movie",
				Filters: &Filters{PopularityMin: floatPtr(1.5)}},
			wantErr: true,
			field:   "popularityMin",
		},
		{
			name: "bad country code",
			request: RecommendationRequest{GroupID: "ABC123", Type: "travel",
				Filters: &Filters{Country: "USA"}},
			wantErr: true,
			field:   "country",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestRecommendationRequest_Normalize(t *testing.T) {
	r := RecommendationRequest{
		GroupID:     "  ABC123 ",
		Type:        " Music",
		Destination: " Lisbon ",
		Categories:  []string{" Movie", "TRAVEL "},
	}
	r.Normalize()

	assert.Equal(t, "ABC123", r.GroupID)
	assert.Equal(t, "music", r.Type)
	assert.Equal(t, "Lisbon", r.Destination)
	assert.Equal(t, []string{"movie", "travel"}, r.Categories)
}

func TestFilters_IsZero(t *testing.T) {
	var nilFilters *Filters
	assert.True(t, nilFilters.IsZero())
	assert.True(t, (&Filters{}).IsZero())
	assert.False(t, (&Filters{Tags: []string{"x"}}).IsZero())
	assert.False(t, (&Filters{PopularityMax: floatPtr(0.5)}).IsZero())
}

func TestRecommendationResponse_JSONKeys(t *testing.T) {
	resp := RecommendationResponse{
		GroupID:         "G1",
		Type:            CategoryMusic,
		Interests:       []string{"Air"},
		EntityIDs:       []string{"E1"},
		Recommendations: []Candidate{{"name": "Justice"}},
		Narrative:       Narrative{Recommendation: "r", Alternative: "a", HarmonyScore: 60, VibeAnalysis: "v"},
		DebugLog:        []string{"[resolve] ok"},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"groupId", "type", "interests", "entityIds", "qlooRecommendations", "gemini", "debugLog"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "allCategoryResults")
	assert.Equal(t, float64(60), m["gemini"].(map[string]any)["harmonyScore"])
}

func TestCandidate_Name(t *testing.T) {
	assert.Equal(t, "Air", Candidate{"name": "Air"}.Name())
	assert.Equal(t, "", Candidate{"name": 12}.Name())
	assert.Equal(t, "", Candidate{}.Name())
}

func TestItineraryDay_JSONShapes(t *testing.T) {
	data, err := json.Marshal([]ItineraryDay{{Day: 1}, {Error: "bad reply", Raw: "sorry"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"day":1,"activities":[],"description":""},{"error":"bad reply","raw":"sorry"}]`, string(data))
}

func TestItineraryDay_ActivityShapes(t *testing.T) {
	var d ItineraryDay
	require.NoError(t, json.Unmarshal([]byte(`{"day":2,"activities":["Market",{"time":"8pm","name":"Izakaya"},{"title":"Onsen"},{"time":"noon"},7]}`), &d))

	assert.Equal(t, 2, d.Day)
	assert.Equal(t, []string{"Market", "8pm: Izakaya", "Onsen"}, d.Activities)

	var empty ItineraryDay
	require.NoError(t, json.Unmarshal([]byte(`{"day":1}`), &empty))
	assert.NotNil(t, empty.Activities)
}
