package types

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Filters are optional facet filters forwarded to the taste-graph insights query.
// Which facets apply depends on the category; see tastegraph.Fetcher.
type Filters struct {
	PopularityMin *float64 `json:"popularityMin,omitempty" validate:"omitempty,gte=0,lte=1"`
	PopularityMax *float64 `json:"popularityMax,omitempty" validate:"omitempty,gte=0,lte=1"`
	YearMin       *int     `json:"yearMin,omitempty" validate:"omitempty,gte=1000,lte=3000"`
	YearMax       *int     `json:"yearMax,omitempty" validate:"omitempty,gte=1000,lte=3000"`
	Country       string   `json:"country,omitempty" validate:"omitempty,len=2,alpha"`
	Tags          []string `json:"tags,omitempty" validate:"omitempty,dive,required"`
}

// IsZero reports whether no facet is set.
func (f *Filters) IsZero() bool {
	return f == nil || (f.PopularityMin == nil && f.PopularityMax == nil &&
		f.YearMin == nil && f.YearMax == nil && f.Country == "" && len(f.Tags) == 0)
}

// RecommendationRequest is the body accepted by the recommendations endpoint.
type RecommendationRequest struct {
	GroupID     string   `json:"groupId" validate:"required"`
	Type        string   `json:"type,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Destination string   `json:"destination,omitempty" validate:"max=200"`
	Days        int      `json:"days,omitempty" validate:"omitempty,min=1,max=14"`
	Filters     *Filters `json:"filters,omitempty"`
}

// Normalize trims identifiers and lower-cases mode fields in place.
func (r *RecommendationRequest) Normalize() {
	r.GroupID = strings.TrimSpace(r.GroupID)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	r.Destination = strings.TrimSpace(r.Destination)
	for i, c := range r.Categories {
		r.Categories[i] = strings.ToLower(strings.TrimSpace(c))
	}
}

// Validate validates the RecommendationRequest using the validator.
// Field names in validation errors are the JSON names.
func (r *RecommendationRequest) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	return validate.Struct(r)
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// Candidate is one opaque entity returned by the taste-graph insights endpoint.
type Candidate map[string]any

// Name returns the candidate's display name, if the payload has one.
func (c Candidate) Name() string {
	if name, ok := c["name"].(string); ok {
		return name
	}
	return ""
}

// Narrative is the structured result parsed from the text generator's reply.
type Narrative struct {
	Recommendation string `json:"recommendation"`
	Alternative    string `json:"alternative"`
	HarmonyScore   int    `json:"harmonyScore"`
	VibeAnalysis   string `json:"vibeAnalysis"`
}

// ItineraryDay is one day of a generated trip plan.
// Error and Raw are only set on the single element returned when the reply could not be parsed.
type ItineraryDay struct {
	Day         int      `json:"day"`
	Activities  []string `json:"activities"`
	Description string   `json:"description"`
	Error       string   `json:"error,omitempty"`
	Raw         string   `json:"raw,omitempty"`
}

// MarshalJSON writes {day, activities, description} for a planned day and
// {error, raw} for the failure element.
func (d ItineraryDay) MarshalJSON() ([]byte, error) {
	if d.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
			Raw   string `json:"raw,omitempty"`
		}{d.Error, d.Raw})
	}
	activities := d.Activities
	if activities == nil {
		activities = []string{}
	}
	return json.Marshal(struct {
		Day         int      `json:"day"`
		Activities  []string `json:"activities"`
		Description string   `json:"description"`
	}{d.Day, activities, d.Description})
}

// UnmarshalJSON reads activities given as strings or as objects such as
// {"time": "9am", "name": "..."}. Entries with no usable text are skipped.
func (d *ItineraryDay) UnmarshalJSON(data []byte) error {
	var raw struct {
		Day         int               `json:"day"`
		Activities  []json.RawMessage `json:"activities"`
		Description string            `json:"description"`
		Error       string            `json:"error"`
		Raw         string            `json:"raw"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = ItineraryDay{
		Day:         raw.Day,
		Activities:  make([]string, 0, len(raw.Activities)),
		Description: raw.Description,
		Error:       raw.Error,
		Raw:         raw.Raw,
	}
	for _, a := range raw.Activities {
		if text := activityText(a); text != "" {
			d.Activities = append(d.Activities, text)
		}
	}
	return nil
}

func activityText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	var text string
	for _, key := range []string{"name", "activity", "title", "description"} {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			text = strings.TrimSpace(v)
			break
		}
	}
	if text == "" {
		return ""
	}
	if at, ok := obj["time"].(string); ok && strings.TrimSpace(at) != "" {
		return strings.TrimSpace(at) + ": " + text
	}
	return text
}

// CategoryResult holds the per-category output of a multi-category request.
type CategoryResult struct {
	Category        Category    `json:"category"`
	Interests       []string    `json:"interests"`
	EntityIDs       []string    `json:"entityIds"`
	Recommendations []Candidate `json:"recommendations"`
}

// RecommendationResponse is the success body for single- and multi-category requests.
// JSON keys match what existing clients read.
type RecommendationResponse struct {
	GroupID            string           `json:"groupId"`
	Type               Category         `json:"type,omitempty"`
	Categories         []Category       `json:"categories,omitempty"`
	Interests          []string         `json:"interests,omitempty"`
	EntityIDs          []string         `json:"entityIds,omitempty"`
	AllCategoryResults []CategoryResult `json:"allCategoryResults,omitempty"`
	Recommendations    []Candidate      `json:"qlooRecommendations"`
	Narrative          Narrative        `json:"gemini"`
	DebugLog           []string         `json:"debugLog"`
}

// ItineraryResponse is the success body for itinerary requests.
type ItineraryResponse struct {
	GroupID     string         `json:"groupId"`
	Type        string         `json:"type"`
	Destination string         `json:"destination,omitempty"`
	Days        int            `json:"days"`
	Interests   []string       `json:"interests"`
	Itinerary   []ItineraryDay `json:"itinerary"`
	DebugLog    []string       `json:"debugLog"`
}
