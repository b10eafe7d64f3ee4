// Package aggregate merges group members' interest lists into the inputs the pipeline sends downstream.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/jonathan/group-harmony/internal/types"
)

// DefaultSnapshotItems is how many entries per profile field go into a member snapshot.
const DefaultSnapshotItems = 3

// defaults keep the pipeline producing output for groups that have not filled in a category.
var defaults = map[types.Category][]string{
	types.CategoryMusic:      {"pop", "rock", "electronic"},
	types.CategoryMovie:      {"comedy", "drama", "action"},
	types.CategoryRestaurant: {"italian", "mexican"},
	types.CategoryTravel:     {"beach", "city break"},
	types.CategoryBook:       {"fiction", "mystery"},
	types.CategoryTV:         {"comedy", "drama"},
}

// Defaults returns a copy of the fallback interest list for category.
func Defaults(category types.Category) []string {
	d := defaults[category]
	out := make([]string, len(d))
	copy(out, d)
	return out
}

// Collect merges every profile's entries for category into an ordered,
// de-duplicated list. Duplicates are matched case-insensitively and the first
// spelling wins. The second return value reports whether any member had
// recorded interests; callers substitute Defaults when it is false.
func Collect(profiles []types.UserProfile, category types.Category) ([]string, bool) {
	seen := make(map[string]struct{})
	var merged []string

	for _, p := range profiles {
		for _, field := range category.ProfileFields() {
			for _, entry := range p.Interests[field] {
				name := strings.TrimSpace(entry.Name)
				if name == "" {
					continue
				}
				key := strings.ToLower(name)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				merged = append(merged, name)
			}
		}
	}

	return merged, len(merged) > 0
}

// Snapshot builds the per-member view embedded in prompts. Each profile field
// is trimmed to perField entries (DefaultSnapshotItems when perField <= 0).
// Members are labelled by name, or "Member N"; emails are never included.
func Snapshot(profiles []types.UserProfile, perField int) []types.MemberSnapshot {
	if perField <= 0 {
		perField = DefaultSnapshotItems
	}

	out := make([]types.MemberSnapshot, 0, len(profiles))
	for i, p := range profiles {
		label := strings.TrimSpace(p.Name)
		if label == "" {
			label = fmt.Sprintf("Member %d", i+1)
		}

		snap := types.MemberSnapshot{Member: label, Interests: make(map[string][]string)}
		for _, category := range types.AllCategories() {
			var items []string
			for _, field := range category.ProfileFields() {
				for _, entry := range p.Interests[field] {
					if len(items) >= perField {
						break
					}
					if name := strings.TrimSpace(entry.Name); name != "" {
						items = append(items, name)
					}
				}
			}
			if len(items) > 0 {
				snap.Interests[category.String()] = items
			}
		}
		out = append(out, snap)
	}
	return out
}
