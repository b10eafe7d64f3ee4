package tastegraph

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/group-harmony/internal/types"
)

// Result count bounds for insights queries.
const (
	DefaultTake = 5
	minTake     = 3
	maxTake     = 5
)

// InsightsQuery is a fully resolved insights request.
// Filter keys are the API's dotted names without the "filter." prefix.
type InsightsQuery struct {
	EntityType string
	EntityIDs  []string
	Filter     map[string]string
	Take       int
}

// Values renders the query as GET parameters.
func (q InsightsQuery) Values() url.Values {
	v := url.Values{}
	v.Set("filter.type", q.EntityType)
	if len(q.EntityIDs) > 0 {
		v.Set("signal.interests.entities", strings.Join(q.EntityIDs, ","))
	}
	for k, val := range q.Filter {
		v.Set("filter."+k, val)
	}
	v.Set("take", strconv.Itoa(q.Take))
	return v
}

// Body renders the query as the structured POST body.
func (q InsightsQuery) Body() map[string]any {
	filter := map[string]any{"type": q.EntityType}
	for k, val := range q.Filter {
		filter[k] = val
	}
	return map[string]any{
		"filter": filter,
		"signal": map[string]any{
			"interests": map[string]any{"entities": q.EntityIDs},
		},
		"take": q.Take,
	}
}

// FilterKeys returns the filter keys in sorted order.
func (q InsightsQuery) FilterKeys() []string {
	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildQuery maps a category, resolved IDs and facet filters onto an insights
// query. Facets that do not apply to the category are dropped and described
// in the returned notes.
//
//   - popularity range applies to every category
//   - year range maps to release_year for movie, tv and music, publication_year
//     for book, and is ignored for places
//   - country applies to restaurant and travel only
//   - tags apply to every category
func BuildQuery(category types.Category, ids []string, f *types.Filters, take int) (InsightsQuery, []string) {
	q := InsightsQuery{
		EntityType: category.EntityType(),
		EntityIDs:  ids,
		Filter:     map[string]string{},
		Take:       clampTake(take),
	}
	if f.IsZero() {
		return q, nil
	}

	var notes []string

	if f.PopularityMin != nil {
		q.Filter["popularity.min"] = formatFloat(*f.PopularityMin)
	}
	if f.PopularityMax != nil {
		q.Filter["popularity.max"] = formatFloat(*f.PopularityMax)
	}

	if f.YearMin != nil || f.YearMax != nil {
		if field := yearField(category); field != "" {
			if f.YearMin != nil {
				q.Filter[field+".min"] = strconv.Itoa(*f.YearMin)
			}
			if f.YearMax != nil {
				q.Filter[field+".max"] = strconv.Itoa(*f.YearMax)
			}
		} else {
			notes = append(notes, "year filter ignored for category "+category.String())
		}
	}

	if f.Country != "" {
		if category.IsPlace() {
			q.Filter["geocode.country_code"] = strings.ToUpper(f.Country)
		} else {
			notes = append(notes, "country filter ignored for category "+category.String())
		}
	}

	if len(f.Tags) > 0 {
		q.Filter["tags"] = strings.Join(f.Tags, ",")
	}

	return q, notes
}

func yearField(category types.Category) string {
	switch category {
	case types.CategoryMovie, types.CategoryTV, types.CategoryMusic:
		return "release_year"
	case types.CategoryBook:
		return "publication_year"
	default:
		return ""
	}
}

func clampTake(take int) int {
	if take <= 0 {
		return DefaultTake
	}
	return max(minTake, min(maxTake, take))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
