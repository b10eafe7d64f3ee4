// Package types provides type definitions for structured data used throughout the group-harmony system.
package types

import (
	"fmt"
	"strings"
)

// Category is a taste category a group can ask recommendations for.
type Category string

// Known categories
const (
	CategoryMusic      Category = "music"
	CategoryMovie      Category = "movie"
	CategoryRestaurant Category = "restaurant"
	CategoryTravel     Category = "travel"
	CategoryBook       Category = "book"
	CategoryTV         Category = "tv"
)

// ModeItinerary is the request type that asks for a day-by-day trip plan instead of a category recommendation.
const ModeItinerary = "itinerary"

// MultiCategoryLabel labels a synthesis call that blends more than one category.
const MultiCategoryLabel = "multi-category"

// categoryInfo describes how a category maps onto profile fields and the taste graph.
type categoryInfo struct {
	entityType string
	// fields lists profile keys that feed this category, current key first.
	fields []string
}

var categories = map[Category]categoryInfo{
	CategoryMusic:      {entityType: "urn:entity:artist", fields: []string{"musicArtists", "musicGenres", "favoriteArtists"}},
	CategoryMovie:      {entityType: "urn:entity:movie", fields: []string{"movies"}},
	CategoryRestaurant: {entityType: "urn:entity:place", fields: []string{"cuisines", "favoriteCuisines"}},
	CategoryTravel:     {entityType: "urn:entity:destination", fields: []string{"travelDestinations", "favoriteDestinations"}},
	CategoryBook:       {entityType: "urn:entity:book", fields: []string{"books", "favoriteBooks"}},
	CategoryTV:         {entityType: "urn:entity:tv_show", fields: []string{"tvShows", "brands"}},
}

// AllCategories returns the known categories in a stable order.
func AllCategories() []Category {
	return []Category{CategoryMusic, CategoryMovie, CategoryRestaurant, CategoryTravel, CategoryBook, CategoryTV}
}

// ParseCategory normalizes s and returns the matching Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// EntityType returns the taste-graph entity URN for the category, or "" if unknown.
func (c Category) EntityType() string {
	return categories[c].entityType
}

// ProfileFields returns the profile keys whose interests belong to this category.
func (c Category) ProfileFields() []string {
	return categories[c].fields
}

// IsPlace reports whether the category resolves to physical places, where country filters apply.
func (c Category) IsPlace() bool {
	return c == CategoryRestaurant || c == CategoryTravel
}

func (c Category) String() string {
	return string(c)
}
