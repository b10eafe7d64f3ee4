package narrative

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/group-harmony/internal/llm"
	"github.com/jonathan/group-harmony/internal/types"
)

// ItineraryParseError is the error text carried by the fallback itinerary element.
const ItineraryParseError = "Could not parse itinerary from generated reply"

// ParseItinerary decodes a day-by-day plan. The reply may be a bare JSON
// array, fenced, surrounded by prose, or wrapped as {"itinerary": [...]}.
// When nothing decodes, a single element carrying the error and raw text is
// returned. The second value reports whether parsing succeeded.
func ParseItinerary(text string) ([]types.ItineraryDay, bool) {
	candidates := []string{
		llm.OuterSpan(text, '[', ']'),
		llm.CleanJSONBlock(text),
	}
	for _, c := range candidates {
		if days, ok := decodeDays(c); ok {
			return days, true
		}
	}

	var wrapped struct {
		Itinerary json.RawMessage `json:"itinerary"`
		Days      json.RawMessage `json:"days"`
	}
	if span := llm.OuterSpan(text, '{', '}'); span != "" && json.Unmarshal([]byte(span), &wrapped) == nil {
		for _, inner := range []json.RawMessage{wrapped.Itinerary, wrapped.Days} {
			if days, ok := decodeDays(string(inner)); ok {
				return days, true
			}
		}
	}

	return []types.ItineraryDay{{Error: ItineraryParseError, Raw: text}}, false
}

func decodeDays(text string) ([]types.ItineraryDay, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}

	var days []types.ItineraryDay
	if err := json.Unmarshal([]byte(text), &days); err != nil || len(days) == 0 {
		return nil, false
	}
	for i := range days {
		if days[i].Day <= 0 {
			days[i].Day = i + 1
		}
	}
	return days, true
}
