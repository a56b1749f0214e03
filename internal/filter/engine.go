package filter

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/repository"
)

// Engine owns the filter, sort and segment state for one view of the
// session list. It subscribes to the store and recomputes the visible list
// in full on every change; filters are not commutative with partial
// updates, so there is no incremental path.
type Engine struct {
	mu       sync.Mutex
	sessions []core.Session
	group    Group
	sortSt   SortState
	segment  string // active segment name, empty when none

	ws     *core.Workspace
	repo   *repository.Repository
	logger zerolog.Logger
}

// NewEngine builds an engine over the given workspace. The caller registers
// it on the store with Subscribe and seeds it with the current session list.
func NewEngine(ws *core.Workspace, repo *repository.Repository, sessions []core.Session, logger zerolog.Logger) *Engine {
	return &Engine{
		sessions: sessions,
		ws:       ws,
		repo:     repo,
		logger:   logger.With().Str("subsystem", "filter").Logger(),
	}
}

// SessionsChanged updates the engine's snapshot of the session list.
func (e *Engine) SessionsChanged(sessions []core.Session) {
	e.mu.Lock()
	e.sessions = sessions
	e.mu.Unlock()
}

// IntegrationsChanged is part of the store observer contract; the visible
// list is recomputed from sessions on demand, so nothing is cached here.
func (e *Engine) IntegrationsChanged([]core.Integration) {}

// SetFilters replaces the active filter criteria. Any active segment stops
// being authoritative once the criteria diverge from it.
func (e *Engine) SetFilters(g Group) {
	e.mu.Lock()
	e.group = g
	e.segment = ""
	e.mu.Unlock()
}

// Filters returns the active filter criteria.
func (e *Engine) Filters() Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.group
}

// ToggleSort advances the three-way sort cycle for a column. Activating one
// column resets any other column's sort.
func (e *Engine) ToggleSort(col Column) SortState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sortSt = e.sortSt.Toggle(col)
	return e.sortSt
}

// Sort returns the active sort state.
func (e *Engine) Sort() SortState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortSt
}

// ActiveSegment returns the name of the applied segment, or "".
func (e *Engine) ActiveSegment() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.segment
}

// ApplySegment loads a saved segment and replaces the whole filter state
// with its snapshot. Nothing from the previous criteria survives.
func (e *Engine) ApplySegment(name string) error {
	row, err := e.repo.GetSegment(name)
	if err != nil {
		return err
	}

	var g Group
	if err := json.Unmarshal(row.FilterJSON, &g); err != nil {
		return fmt.Errorf("decoding segment %q: %w", name, err)
	}

	e.mu.Lock()
	e.group = g
	e.segment = name
	e.mu.Unlock()

	e.logger.Debug().Str("segment", name).Msg("segment applied")
	return nil
}

// SaveSegment persists the current filter criteria under the given name,
// replacing any segment with that name.
func (e *Engine) SaveSegment(name string) error {
	if name == "" {
		return core.NewValidationError("name", "segment name is required")
	}

	e.mu.Lock()
	g := e.group
	e.mu.Unlock()

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding segment: %w", err)
	}
	if err := e.repo.SaveSegment(name, data); err != nil {
		return err
	}

	e.mu.Lock()
	e.segment = name
	e.mu.Unlock()
	return nil
}

// DeleteSegment removes a saved segment. The active filter criteria are
// untouched even when the deleted segment was the applied one.
func (e *Engine) DeleteSegment(name string) error {
	if err := e.repo.DeleteSegment(name); err != nil {
		return err
	}
	e.mu.Lock()
	if e.segment == name {
		e.segment = ""
	}
	e.mu.Unlock()
	return nil
}

// Segments lists the saved segments.
func (e *Engine) Segments() ([]Segment, error) {
	rows, err := e.repo.ListSegments()
	if err != nil {
		return nil, err
	}
	out := make([]Segment, 0, len(rows))
	for _, row := range rows {
		var g Group
		if err := json.Unmarshal(row.FilterJSON, &g); err != nil {
			e.logger.Warn().Str("segment", row.Name).Err(err).Msg("skipping undecodable segment")
			continue
		}
		out = append(out, Segment{Name: row.Name, Filters: g})
	}
	return out, nil
}

// Visible computes the current visible session list from scratch: filter,
// sort, pinned hoisting.
func (e *Engine) Visible() ([]core.Session, error) {
	e.mu.Lock()
	sessions := make([]core.Session, len(e.sessions))
	copy(sessions, e.sessions)
	g := e.group
	st := e.sortSt
	e.mu.Unlock()

	profiles, err := e.repo.ListProfiles()
	if err != nil {
		return nil, err
	}
	profileNames := make(map[string]string, len(profiles))
	for _, p := range profiles {
		profileNames[p.ID] = p.Name
	}

	return Apply(sessions, g, st, e.ws.IsPinned, profileNames), nil
}
