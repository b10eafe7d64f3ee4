package narrative

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/group-harmony/internal/llm"
	"github.com/jonathan/group-harmony/internal/types"
)

// Strategy names the parse tier that produced a narrative.
type Strategy string

// Parse tiers, in the order they are tried.
const (
	StrategyBraces    Strategy = "braces"
	StrategyWhole     Strategy = "whole"
	StrategyHeuristic Strategy = "heuristic"
	StrategyDefault   Strategy = "default"
)

// DefaultHarmonyScore is used whenever the reply has no usable score.
const DefaultHarmonyScore = 50

// Fallback field values.
const (
	DefaultRecommendation = "Plan a shared experience that blends everyone's favourites."
	DefaultAlternative    = "Take turns choosing from the suggested options."
	DefaultVibeAnalysis   = "The group has enough in common for a great time together."
)

// ParseResult is the outcome of Parse.
type ParseResult struct {
	Narrative types.Narrative
	Strategy  Strategy
	// Attempts describes why earlier tiers were skipped.
	Attempts []string
	// Object is the JSON object text decoded by the braces or whole tier.
	Object string
}

// Default returns the static fallback narrative.
func Default() types.Narrative {
	return types.Narrative{
		Recommendation: DefaultRecommendation,
		Alternative:    DefaultAlternative,
		HarmonyScore:   DefaultHarmonyScore,
		VibeAnalysis:   DefaultVibeAnalysis,
	}
}

// Parse turns a free-form model reply into a Narrative. It never fails:
// each tier is tried in turn and the last one always succeeds.
func Parse(text string) ParseResult {
	var res ParseResult

	if span := llm.OuterSpan(text, '{', '}'); span == "" {
		res.Attempts = append(res.Attempts, "braces: no {...} span")
	} else if n, err := fromObject(span); err != nil {
		res.Attempts = append(res.Attempts, "braces: "+err.Error())
	} else {
		res.Narrative, res.Strategy, res.Object = n, StrategyBraces, span
		return res
	}

	whole := llm.CleanJSONBlock(text)
	if n, err := fromObject(whole); err != nil {
		res.Attempts = append(res.Attempts, "whole: "+err.Error())
	} else {
		res.Narrative, res.Strategy, res.Object = n, StrategyWhole, whole
		return res
	}

	if n, ok := heuristic(text); ok {
		res.Narrative, res.Strategy = n, StrategyHeuristic
		return res
	}
	res.Attempts = append(res.Attempts, "heuristic: no recognizable fields")

	res.Narrative, res.Strategy = Default(), StrategyDefault
	return res
}

// fields accumulates whatever a tier could recover before defaults are applied.
type fields struct {
	recommendation string
	alternative    string
	vibe           string
	score          *int
}

func (f fields) empty() bool {
	return f.recommendation == "" && f.alternative == "" && f.vibe == "" && f.score == nil
}

func (f fields) narrative() types.Narrative {
	n := Default()
	if f.recommendation != "" {
		n.Recommendation = f.recommendation
	}
	if f.alternative != "" {
		n.Alternative = f.alternative
	}
	if f.vibe != "" {
		n.VibeAnalysis = f.vibe
	}
	if f.score != nil {
		n.HarmonyScore = *f.score
	}
	return n
}

// fromObject decodes a JSON object in either the current or the legacy
// {summary, harmonyScore, reasoning} shape.
func fromObject(text string) (types.Narrative, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return types.Narrative{}, fmt.Errorf("invalid JSON object: %w", err)
	}

	var f fields
	f.recommendation = firstString(obj, "recommendation", "summary")
	f.alternative = firstString(obj, "alternative")
	f.vibe = firstString(obj, "vibeAnalysis", "reasoning")
	if raw, ok := obj["harmonyScore"]; ok {
		f.score = scoreFrom(raw)
	}
	if f.empty() {
		return types.Narrative{}, fmt.Errorf("object has no narrative keys")
	}
	return f.narrative(), nil
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// scoreFrom converts a numeric or numeric-string score to an integer in [0,100].
func scoreFrom(v any) *int {
	switch x := v.(type) {
	case float64:
		return clampScore(x)
	case string:
		if m := numberRe.FindString(x); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return clampScore(f)
			}
		}
	}
	return nil
}

func clampScore(f float64) *int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	s := int(math.Round(math.Max(0, math.Min(100, f))))
	return &s
}

var (
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

	// fragmentRe matches "key": value pairs, including a final string cut off mid-way.
	fragmentRe = regexp.MustCompile(`"(recommendation|summary|alternative|harmonyScore|vibeAnalysis|reasoning)"\s*:\s*(?:"((?:[^"\\]|\\.)*)"?|(-?\d+(?:\.\d+)?))`)
)

// marker ties a line prefix to the field it fills.
type marker struct {
	emoji    string
	keywords []string
	field    string
}

var markers = []marker{
	{emoji: "🎯", keywords: []string{"recommendation"}, field: "recommendation"},
	{emoji: "🔄", keywords: []string{"alternative"}, field: "alternative"},
	{emoji: "💯", keywords: []string{"harmony", "score"}, field: "score"},
	{emoji: "✨", keywords: []string{"vibe", "why"}, field: "vibe"},
}

// heuristic recovers fields from truncated JSON fragments and from
// emoji or keyword labelled lines.
func heuristic(text string) (types.Narrative, bool) {
	var f fields

	for _, m := range fragmentRe.FindAllStringSubmatch(text, -1) {
		key, str, num := m[1], unescape(m[2]), m[3]
		switch key {
		case "recommendation", "summary":
			setOnce(&f.recommendation, str)
		case "alternative":
			setOnce(&f.alternative, str)
		case "vibeAnalysis", "reasoning":
			setOnce(&f.vibe, str)
		case "harmonyScore":
			if f.score != nil {
				break
			}
			if num != "" {
				f.score = scoreFrom(num)
			} else {
				f.score = scoreFrom(str)
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		field, value := classifyLine(line)
		switch field {
		case "recommendation":
			setOnce(&f.recommendation, value)
		case "alternative":
			setOnce(&f.alternative, value)
		case "vibe":
			setOnce(&f.vibe, value)
		case "score":
			if f.score == nil {
				f.score = scoreFrom(value)
			}
		}
	}

	if f.empty() {
		return types.Narrative{}, false
	}
	return f.narrative(), true
}

// classifyLine returns the field a labelled line fills and its value.
func classifyLine(line string) (string, string) {
	trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•#> "))
	if trimmed == "" || strings.HasPrefix(trimmed, `"`) {
		return "", ""
	}
	lower := strings.ToLower(trimmed)

	for _, m := range markers {
		if strings.HasPrefix(trimmed, m.emoji) {
			return m.field, labelValue(strings.TrimPrefix(trimmed, m.emoji))
		}
		for _, kw := range m.keywords {
			if strings.HasPrefix(lower, kw) {
				return m.field, labelValue(trimmed[len(kw):])
			}
		}
	}
	return "", ""
}

// labelValue strips the rest of a label ("Analysis:", "**", ": ") from value.
func labelValue(s string) string {
	if i := strings.Index(s, ":"); i >= 0 && i < 30 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_"))
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}

func unescape(s string) string {
	if s == "" {
		return ""
	}
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
