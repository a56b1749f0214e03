// Package filter implements the pure transformation from the full session
// list to the ordered visible subset: conjunctive predicate filters, column
// sorting with a default start-time order, pinned hoisting and saved
// segments.
package filter

import (
	"strings"

	"github.com/virga-tools/virga/internal/core"
)

// Group is one composable set of filter criteria. Categories combine with
// AND; selected values within a category combine with OR. The zero Group
// matches everything.
type Group struct {
	Search         string             `json:"search,omitempty"`
	Providers      []core.Provider    `json:"providers,omitempty"`
	ProfileIDs     []string           `json:"profile_ids,omitempty"`
	Regions        []string           `json:"regions,omitempty"`
	IntegrationIDs []string           `json:"integration_ids,omitempty"`
	Types          []core.SessionType `json:"types,omitempty"`
	PinnedOnly     bool               `json:"pinned_only,omitempty"`
}

// IsZero reports whether the group applies no filtering at all.
func (g Group) IsZero() bool {
	return g.Search == "" && len(g.Providers) == 0 && len(g.ProfileIDs) == 0 &&
		len(g.Regions) == 0 && len(g.IntegrationIDs) == 0 && len(g.Types) == 0 &&
		!g.PinnedOnly
}

// Match reports whether a session passes every active category of the group.
// pinned tells whether a session id is pinned, for the pinned-only category.
func (g Group) Match(s core.Session, pinned func(string) bool) bool {
	if g.Search != "" && !matchSearch(s, g.Search) {
		return false
	}
	if len(g.Providers) > 0 && !containsProvider(g.Providers, s.Type.Provider()) {
		return false
	}
	if len(g.ProfileIDs) > 0 && !containsString(g.ProfileIDs, s.ProfileID) {
		return false
	}
	if len(g.Regions) > 0 && !containsString(g.Regions, s.Region) {
		return false
	}
	if len(g.IntegrationIDs) > 0 && !containsString(g.IntegrationIDs, s.IntegrationID) {
		return false
	}
	if len(g.Types) > 0 && !containsType(g.Types, s.Type) {
		return false
	}
	if g.PinnedOnly && (pinned == nil || !pinned(s.ID)) {
		return false
	}
	return true
}

// matchSearch does a case-insensitive substring match over the session's
// name, type, region and type-specific identity fields.
func matchSearch(s core.Session, search string) bool {
	needle := strings.ToLower(search)
	for _, hay := range []string{
		s.Name,
		string(s.Type),
		s.Region,
		s.RoleARN,
		s.RoleSessionName,
		s.TenantID,
		s.SubscriptionID,
	} {
		if hay != "" && strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsProvider(values []core.Provider, v core.Provider) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsType(values []core.SessionType, v core.SessionType) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// Segment is a saved, named snapshot of filter criteria. Applying a segment
// replaces the active filter state entirely; segments never merge.
type Segment struct {
	Name    string `json:"name"`
	Filters Group  `json:"filters"`
}
