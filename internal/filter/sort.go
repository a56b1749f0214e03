package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/virga-tools/virga/internal/core"
)

// Column identifies a sortable session list column.
type Column string

const (
	ColumnName     Column = "name"
	ColumnProvider Column = "provider"
	ColumnType     Column = "type"
	ColumnProfile  Column = "profile"
	ColumnRegion   Column = "region"
)

// Direction is a column sort direction.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionAsc
	DirectionDesc
)

// SortState is the active column sort. The zero value means no column sort
// is active and the default order applies: descending by start time, with
// never-started sessions treated as oldest.
type SortState struct {
	Column    Column
	Direction Direction
}

// Toggle advances the sort state for a click on the given column. Each
// column cycles ascending, descending, then back to the default time order;
// clicking a different column resets the state to that column ascending.
func (st SortState) Toggle(col Column) SortState {
	if st.Column != col || st.Direction == DirectionNone {
		return SortState{Column: col, Direction: DirectionAsc}
	}
	if st.Direction == DirectionAsc {
		return SortState{Column: col, Direction: DirectionDesc}
	}
	return SortState{}
}

// Sort orders sessions in place according to the state. profileNames maps
// profile id to display name for the profile column; a missing id sorts by
// the raw id. The sort is stable so equal keys keep the store's natural
// order.
func (st SortState) Sort(sessions []core.Session, profileNames map[string]string) {
	less := st.less(profileNames)
	sort.SliceStable(sessions, func(i, j int) bool {
		return less(sessions[i], sessions[j])
	})
}

func (st SortState) less(profileNames map[string]string) func(a, b core.Session) bool {
	if st.Direction == DirectionNone {
		return byStartTimeDesc
	}

	key := func(s core.Session) string {
		switch st.Column {
		case ColumnName:
			return s.Name
		case ColumnProvider:
			return string(s.Type.Provider())
		case ColumnType:
			return string(s.Type)
		case ColumnProfile:
			if name, ok := profileNames[s.ProfileID]; ok {
				return name
			}
			return s.ProfileID
		case ColumnRegion:
			return s.Region
		}
		return s.Name
	}

	asc := func(a, b core.Session) bool {
		ka, kb := strings.ToLower(key(a)), strings.ToLower(key(b))
		return ka < kb
	}
	if st.Direction == DirectionAsc {
		return asc
	}
	return func(a, b core.Session) bool { return asc(b, a) }
}

// byStartTimeDesc is the default comparator: most recently started first,
// sessions without a start time treated as started at the epoch.
func byStartTimeDesc(a, b core.Session) bool {
	return startTimeOf(a).After(startTimeOf(b))
}

func startTimeOf(s core.Session) time.Time {
	if s.StartDateTime == nil {
		return time.Time{}
	}
	return *s.StartDateTime
}

// Apply runs the full pipeline: filter by group, order by the sort state,
// then hoist pinned sessions to the front. Hoisting is stable: pinned and
// unpinned sessions each keep the chosen sort order within their group.
func Apply(sessions []core.Session, g Group, st SortState, pinned func(string) bool, profileNames map[string]string) []core.Session {
	var visible []core.Session
	for _, s := range sessions {
		if g.Match(s, pinned) {
			visible = append(visible, s)
		}
	}

	st.Sort(visible, profileNames)

	if pinned == nil {
		return visible
	}
	front := make([]core.Session, 0, len(visible))
	var rest []core.Session
	for _, s := range visible {
		if pinned(s.ID) {
			front = append(front, s)
		} else {
			rest = append(rest, s)
		}
	}
	return append(front, rest...)
}
