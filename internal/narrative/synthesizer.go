// Package narrative turns group tastes and taste-graph candidates into a
// generated recommendation narrative or a day-by-day itinerary.
package narrative

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonathan/group-harmony/internal/aggregate"
	"github.com/jonathan/group-harmony/internal/llm"
	"github.com/jonathan/group-harmony/internal/metrics"
	"github.com/jonathan/group-harmony/internal/schemas"
	"github.com/jonathan/group-harmony/internal/trace"
	"github.com/jonathan/group-harmony/internal/types"
)

// DefaultItineraryDays is used when a request does not name a trip length.
const DefaultItineraryDays = 3

const maxTracedReply = 2000

// Options tunes a Synthesizer.
type Options struct {
	Tier          llm.ModelTier
	Timeout       time.Duration
	MaxCandidates int
	SnapshotItems int
}

// Synthesizer calls the text generator and parses its replies.
// A nil client is allowed: every call then degrades to the fallback output.
type Synthesizer struct {
	client llm.Client
	opts   Options
}

// NewSynthesizer creates a Synthesizer with defaults for unset options.
func NewSynthesizer(client llm.Client, opts Options) *Synthesizer {
	if opts.Tier == "" {
		opts.Tier = llm.TierStandard
	}
	if opts.Timeout <= 0 {
		opts.Timeout = llm.DefaultTimeout
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.SnapshotItems <= 0 {
		opts.SnapshotItems = aggregate.DefaultSnapshotItems
	}
	return &Synthesizer{client: client, opts: opts}
}

// Synthesize produces the group narrative for label. It always returns a
// complete narrative; generation and parse failures are recorded in the trace.
func (s *Synthesizer) Synthesize(ctx context.Context, label string, profiles []types.UserProfile, candidates []types.Candidate) types.Narrative {
	tr := trace.FromContext(ctx)

	prompt, err := BuildPrompt(label, aggregate.Snapshot(profiles, s.opts.SnapshotItems), candidates, s.opts.MaxCandidates)
	if err != nil {
		tr.Errorf("narrative", "failed to build prompt: %v", err)
		return s.fallback()
	}
	tr.Debugf("narrative", "prompt for %s: %d chars, %d candidates", label, len(prompt), min(len(candidates), s.opts.MaxCandidates))

	reply, err := s.generate(ctx, prompt, false)
	if err != nil {
		tr.Errorf("narrative", "generation failed: %v", err)
		return s.fallback()
	}
	tr.Debugf("narrative", "raw reply: %s", clip(reply))

	res := Parse(reply)
	for _, a := range res.Attempts {
		tr.Debugf("narrative", "parse attempt %s", a)
	}
	metrics.NarrativeParse.WithLabelValues(string(res.Strategy)).Inc()
	tr.Infof("narrative", "parsed reply with %s strategy, harmony score %d", res.Strategy, res.Narrative.HarmonyScore)

	if res.Object != "" {
		var ve *schemas.ValidationError
		if err := schemas.Validate(schemas.Narrative, res.Object); errors.As(err, &ve) {
			for _, msg := range ve.Messages() {
				tr.Warnf("narrative", "schema: %s", msg)
			}
		} else if err != nil {
			tr.Warnf("narrative", "schema check skipped: %v", err)
		}
	}

	return res.Narrative
}

// PlanItinerary produces a day-by-day plan from travel interests. days <= 0
// uses DefaultItineraryDays, and a reply with more days than requested is cut
// to days. A generation or parse failure yields a single element carrying the error.
func (s *Synthesizer) PlanItinerary(ctx context.Context, destination string, days int, interests []string) []types.ItineraryDay {
	tr := trace.FromContext(ctx)
	if days <= 0 {
		days = DefaultItineraryDays
	}

	prompt, err := BuildItineraryPrompt(destination, days, interests)
	if err != nil {
		tr.Errorf("itinerary", "failed to build prompt: %v", err)
		return []types.ItineraryDay{{Error: err.Error()}}
	}

	reply, err := s.generate(ctx, prompt, true)
	if err != nil {
		tr.Errorf("itinerary", "generation failed: %v", err)
		return []types.ItineraryDay{{Error: "generation failed: " + err.Error()}}
	}
	tr.Debugf("itinerary", "raw reply: %s", clip(reply))

	plan, ok := ParseItinerary(reply)
	if !ok {
		metrics.NarrativeParse.WithLabelValues("itinerary_failed").Inc()
		tr.Warnf("itinerary", "reply was not a JSON day list")
		return plan
	}
	metrics.NarrativeParse.WithLabelValues("itinerary").Inc()
	switch {
	case len(plan) > days:
		tr.Warnf("itinerary", "reply planned %d days, keeping the first %d", len(plan), days)
		plan = plan[:days]
	case len(plan) < days:
		tr.Warnf("itinerary", "reply planned %d of %d days", len(plan), days)
	}
	tr.Infof("itinerary", "parsed %d days", len(plan))
	return plan
}

var errNoClient = errors.New("text generator not configured")

// generate calls the model once. asJSON requests a JSON reply body.
func (s *Synthesizer) generate(ctx context.Context, prompt string, asJSON bool) (string, error) {
	if s.client == nil {
		return "", errNoClient
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	started := time.Now()
	call := s.client.GenerateContent
	if asJSON {
		call = s.client.GenerateJSON
	}
	reply, err := call(ctx, prompt, s.opts.Tier)
	switch {
	case err != nil:
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveUpstream(metrics.ServiceGeneration, outcome, started)
		return "", err
	case strings.TrimSpace(reply) == "":
		metrics.ObserveUpstream(metrics.ServiceGeneration, metrics.OutcomeEmpty, started)
		return "", errors.New("empty reply")
	}
	metrics.ObserveUpstream(metrics.ServiceGeneration, metrics.OutcomeSuccess, started)
	return reply, nil
}

func (s *Synthesizer) fallback() types.Narrative {
	metrics.NarrativeParse.WithLabelValues(string(StrategyDefault)).Inc()
	return Default()
}

func clip(s string) string {
	if len(s) <= maxTracedReply {
		return s
	}
	return s[:maxTracedReply] + "...(truncated)"
}
