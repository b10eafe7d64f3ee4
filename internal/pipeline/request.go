package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/group-harmony/internal/types"
)

// Mode is the kind of output a request asks for.
type Mode string

// Request modes
const (
	ModeSingle    Mode = "single"
	ModeMulti     Mode = "multi"
	ModeItinerary Mode = "itinerary"
)

// Plan is a validated request.
type Plan struct {
	Mode        Mode
	GroupID     string
	Category    types.Category   // single mode
	Categories  []types.Category // multi mode, de-duplicated, in request order
	Destination string
	Days        int
	Filters     *types.Filters
}

// DetectMode classifies a request without validating it.
func DetectMode(req types.RecommendationRequest) Mode {
	switch {
	case strings.EqualFold(strings.TrimSpace(req.Type), types.ModeItinerary):
		return ModeItinerary
	case len(req.Categories) > 0:
		return ModeMulti
	default:
		return ModeSingle
	}
}

// Validate normalizes req and turns it into a Plan. All failures are *ValidationError.
func Validate(req types.RecommendationRequest) (*Plan, error) {
	req.Categories = append([]string(nil), req.Categories...)
	req.Normalize()

	if req.GroupID == "" || (req.Type == "" && len(req.Categories) == 0) {
		return nil, &ValidationError{Message: MsgMissingFields}
	}
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: describeValidation(err)}
	}

	plan := &Plan{
		Mode:        DetectMode(req),
		GroupID:     req.GroupID,
		Destination: req.Destination,
		Days:        req.Days,
		Filters:     req.Filters,
	}

	if req.Type != "" && req.Type != types.ModeItinerary {
		c, err := types.ParseCategory(req.Type)
		if err != nil {
			return nil, &ValidationError{Message: MsgInvalidType}
		}
		plan.Category = c
	}

	if plan.Mode == ModeMulti {
		seen := map[types.Category]struct{}{}
		for _, raw := range req.Categories {
			c, err := types.ParseCategory(raw)
			if err != nil {
				return nil, &ValidationError{Message: invalidCategoryPrefix + raw}
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			plan.Categories = append(plan.Categories, c)
		}
	}

	return plan, nil
}

// Label is the narrative label for a multi-category plan.
func (p *Plan) Label() string {
	if len(p.Categories) == 1 {
		return p.Categories[0].String()
	}
	return types.MultiCategoryLabel
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request: " + err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), rule))
	}
	return "Invalid request field: " + strings.Join(parts, ", ")
}
