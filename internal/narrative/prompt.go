package narrative

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/group-harmony/internal/prompts"
	"github.com/jonathan/group-harmony/internal/types"
)

// DefaultMaxCandidates caps how many candidates are summarized in a prompt.
const DefaultMaxCandidates = 10

const maxCandidateTags = 3

// BuildPrompt renders the narrative prompt for label, which is a category
// name or types.MultiCategoryLabel.
func BuildPrompt(label string, members []types.MemberSnapshot, candidates []types.Candidate, maxCandidates int) (string, error) {
	framing, err := prompts.Get(prompts.NarrativeFile, "framing-"+label)
	if err != nil {
		framing = prompts.MustGet(prompts.NarrativeFile, "framing-"+types.MultiCategoryLabel)
	}
	example, err := prompts.Get(prompts.NarrativeFile, "example-"+label)
	if err != nil {
		example = prompts.MustGet(prompts.NarrativeFile, "example-"+types.MultiCategoryLabel)
	}

	membersJSON, err := json.MarshalIndent(members, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode member snapshot: %w", err)
	}
	candidatesJSON, err := json.MarshalIndent(SummarizeCandidates(candidates, maxCandidates), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	return prompts.Render(prompts.NarrativeFile, "group-narrative", map[string]string{
		"Category":   label,
		"Framing":    framing,
		"Members":    string(membersJSON),
		"Candidates": string(candidatesJSON),
		"Example":    example,
	})
}

// CandidateSummary is the name-focused view of a candidate sent to the model.
type CandidateSummary struct {
	Name       string   `json:"name"`
	Type       string   `json:"type,omitempty"`
	Popularity *float64 `json:"popularity,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// SummarizeCandidates keeps the first limit candidates that have a name.
func SummarizeCandidates(candidates []types.Candidate, limit int) []CandidateSummary {
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}

	out := make([]CandidateSummary, 0, min(len(candidates), limit))
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		name := strings.TrimSpace(c.Name())
		if name == "" {
			continue
		}
		s := CandidateSummary{Name: name}
		if t, ok := c["subtype"].(string); ok {
			s.Type = t
		} else if t, ok := c["type"].(string); ok {
			s.Type = t
		}
		if p, ok := c["popularity"].(float64); ok {
			s.Popularity = &p
		}
		s.Tags = tagNames(c["tags"])
		out = append(out, s)
	}
	return out
}

func tagNames(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, item := range list {
		if len(names) == maxCandidateTags {
			break
		}
		switch t := item.(type) {
		case string:
			names = append(names, t)
		case map[string]any:
			if n, ok := t["name"].(string); ok && n != "" {
				names = append(names, n)
			}
		}
	}
	return names
}

// BuildItineraryPrompt renders the day-plan prompt.
func BuildItineraryPrompt(destination string, days int, interests []string) (string, error) {
	clause := ""
	if destination != "" {
		clause = " to " + destination
	}
	return prompts.Render(prompts.ItineraryFile, "day-plan", map[string]string{
		"Days":              strconv.Itoa(days),
		"DestinationClause": clause,
		"Interests":         strings.Join(interests, ", "),
	})
}
