// Package pipeline orchestrates a group recommendation: membership lookup,
// interest aggregation, entity resolution, candidate retrieval and narrative
// synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/group-harmony/internal/aggregate"
	"github.com/jonathan/group-harmony/internal/db"
	"github.com/jonathan/group-harmony/internal/llm"
	"github.com/jonathan/group-harmony/internal/narrative"
	"github.com/jonathan/group-harmony/internal/tastegraph"
	"github.com/jonathan/group-harmony/internal/trace"
	"github.com/jonathan/group-harmony/internal/types"
)

// DefaultMemberConcurrency bounds parallel profile lookups.
const DefaultMemberConcurrency = 8

// Store is the read side of the preference store. *db.DB implements it.
type Store interface {
	GetGroupMembers(ctx context.Context, groupID string) ([]string, error)
	GetUserByEmail(ctx context.Context, email string) (*types.UserProfile, error)
}

// Options tunes an Orchestrator.
type Options struct {
	ResolveCap        int
	Take              int
	MemberConcurrency int
	Narrative         narrative.Options
}

// Orchestrator runs recommendation requests. It holds no per-request state
// and is safe for concurrent use.
type Orchestrator struct {
	store             Store
	resolver          *tastegraph.Resolver
	fetcher           *tastegraph.Fetcher
	synth             *narrative.Synthesizer
	memberConcurrency int
}

// New wires an Orchestrator. gen may be nil, in which case narratives and
// itineraries fall back to their defaults.
func New(store Store, api tastegraph.API, gen llm.Client, opts Options) *Orchestrator {
	if opts.MemberConcurrency <= 0 {
		opts.MemberConcurrency = DefaultMemberConcurrency
	}
	return &Orchestrator{
		store:             store,
		resolver:          tastegraph.NewResolver(api, opts.ResolveCap),
		fetcher:           tastegraph.NewFetcher(api, opts.Take),
		synth:             narrative.NewSynthesizer(gen, opts.Narrative),
		memberConcurrency: opts.MemberConcurrency,
	}
}

// Result holds the response body for the request's mode. Exactly one field is set.
type Result struct {
	Recommendation *types.RecommendationResponse
	Itinerary      *types.ItineraryResponse
}

// Body returns whichever response is set.
func (r *Result) Body() any {
	if r.Itinerary != nil {
		return r.Itinerary
	}
	return r.Recommendation
}

// Run validates req and executes it. Errors are *ValidationError,
// *NotFoundError, or unexpected failures. Upstream outages never fail a run;
// they are recorded in the request trace, which is started here when ctx
// does not carry one.
func (o *Orchestrator) Run(ctx context.Context, req types.RecommendationRequest) (*Result, error) {
	ctx, tr := trace.Ensure(ctx)

	plan, err := Validate(req)
	if err != nil {
		tr.Warnf("request", "rejected: %v", err)
		return nil, err
	}
	tr.Infof("request", "group %s, mode %s", plan.GroupID, plan.Mode)

	profiles, err := o.loadProfiles(ctx, plan.GroupID)
	if err != nil {
		return nil, err
	}

	switch plan.Mode {
	case ModeItinerary:
		return o.runItinerary(ctx, plan, profiles)
	case ModeMulti:
		return o.runMulti(ctx, plan, profiles)
	default:
		return o.runSingle(ctx, plan, profiles)
	}
}

// loadProfiles fetches every member's profile concurrently, in member order.
// Members without a profile are skipped.
func (o *Orchestrator) loadProfiles(ctx context.Context, groupID string) ([]types.UserProfile, error) {
	tr := trace.FromContext(ctx)

	members, err := o.store.GetGroupMembers(ctx, groupID)
	if err != nil {
		var notFound *db.ErrGroupNotFound
		var empty *db.ErrEmptyGroup
		switch {
		case errors.As(err, &notFound):
			tr.Warnf("group", "group %s not found", groupID)
			return nil, &NotFoundError{Message: MsgGroupNotFound}
		case errors.As(err, &empty):
			tr.Warnf("group", "group %s has no members", groupID)
			return nil, &NotFoundError{Message: MsgEmptyGroup}
		default:
			return nil, fmt.Errorf("failed to load group %s: %w", groupID, err)
		}
	}
	tr.Infof("group", "group has %d members", len(members))

	slots := make([]*types.UserProfile, len(members))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.memberConcurrency)
	for i, email := range members {
		g.Go(func() error {
			p, err := o.store.GetUserByEmail(gCtx, email)
			if err != nil {
				var missing *db.ErrUserNotFound
				if errors.As(err, &missing) {
					tr.Warnf("group", "no profile for member %d", i+1)
					return nil
				}
				return fmt.Errorf("failed to load member %d: %w", i+1, err)
			}
			slots[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	profiles := make([]types.UserProfile, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			profiles = append(profiles, *p)
		}
	}
	if len(profiles) == 0 {
		return nil, &NotFoundError{Message: MsgNoValidUsers}
	}
	tr.Infof("group", "loaded %d of %d member profiles", len(profiles), len(members))
	return profiles, nil
}

// interestsFor aggregates one category, noting when defaults were used.
func interestsFor(tr *trace.Trace, profiles []types.UserProfile, category types.Category) []string {
	merged, recorded := aggregate.Collect(profiles, category)
	if !recorded {
		merged = aggregate.Defaults(category)
		tr.Infof("interests", "no %s interests recorded, using defaults %v", category, merged)
		return merged
	}
	tr.Infof("interests", "%d %s interests", len(merged), category)
	return merged
}

func (o *Orchestrator) runSingle(ctx context.Context, plan *Plan, profiles []types.UserProfile) (*Result, error) {
	tr := trace.FromContext(ctx)

	interests := interestsFor(tr, profiles, plan.Category)
	if len(interests) == 0 {
		return nil, &NotFoundError{Message: MsgNoInterests}
	}

	ids := o.resolver.Resolve(ctx, interests, plan.Category)
	if len(ids) == 0 {
		return nil, &NotFoundError{Message: MsgNoEntities}
	}

	candidates := o.fetcher.Fetch(ctx, plan.Category, ids, plan.Filters)
	story := o.synth.Synthesize(ctx, plan.Category.String(), profiles, candidates)

	return &Result{Recommendation: &types.RecommendationResponse{
		GroupID:         plan.GroupID,
		Type:            plan.Category,
		Interests:       interests,
		EntityIDs:       ids,
		Recommendations: candidates,
		Narrative:       story,
		DebugLog:        tr.Lines(),
	}}, nil
}

func (o *Orchestrator) runMulti(ctx context.Context, plan *Plan, profiles []types.UserProfile) (*Result, error) {
	tr := trace.FromContext(ctx)

	results := make([]types.CategoryResult, 0, len(plan.Categories))
	all := []types.Candidate{}
	resolvedAny := false

	for _, c := range plan.Categories {
		interests := interestsFor(tr, profiles, c)
		res := types.CategoryResult{
			Category:        c,
			Interests:       interests,
			EntityIDs:       []string{},
			Recommendations: []types.Candidate{},
		}
		if len(interests) > 0 {
			res.EntityIDs = o.resolver.Resolve(ctx, interests, c)
		}
		if len(res.EntityIDs) > 0 {
			resolvedAny = true
			res.Recommendations = o.fetcher.Fetch(ctx, c, res.EntityIDs, plan.Filters)
		} else {
			tr.Warnf("resolve", "no %s entities resolved, skipping insights", c)
		}
		all = append(all, res.Recommendations...)
		results = append(results, res)
	}

	if !resolvedAny {
		return nil, &NotFoundError{Message: MsgNoEntities}
	}

	story := o.synth.Synthesize(ctx, plan.Label(), profiles, all)

	return &Result{Recommendation: &types.RecommendationResponse{
		GroupID:            plan.GroupID,
		Categories:         plan.Categories,
		AllCategoryResults: results,
		Recommendations:    all,
		Narrative:          story,
		DebugLog:           tr.Lines(),
	}}, nil
}

func (o *Orchestrator) runItinerary(ctx context.Context, plan *Plan, profiles []types.UserProfile) (*Result, error) {
	tr := trace.FromContext(ctx)

	interests := interestsFor(tr, profiles, types.CategoryTravel)
	days := plan.Days
	if days <= 0 {
		days = narrative.DefaultItineraryDays
	}

	itinerary := o.synth.PlanItinerary(ctx, plan.Destination, days, interests)

	return &Result{Itinerary: &types.ItineraryResponse{
		GroupID:     plan.GroupID,
		Type:        types.ModeItinerary,
		Destination: plan.Destination,
		Days:        days,
		Interests:   interests,
		Itinerary:   itinerary,
		DebugLog:    tr.Lines(),
	}}, nil
}
