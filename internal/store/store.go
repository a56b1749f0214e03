// Package store holds the in-memory workspace state: the session list and
// the integration list, backed write-through by the metadata database.
// Observers are notified synchronously on the mutating goroutine, after the
// database write has committed, so a subscriber always reads state that is
// already durable.
package store

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/virga-tools/virga/internal/core"
	"github.com/virga-tools/virga/internal/repository"
)

// Observer receives state-change notifications. Calls are synchronous;
// long-running work belongs on the observer's own goroutine.
type Observer interface {
	SessionsChanged(sessions []core.Session)
	IntegrationsChanged(integrations []core.Integration)
}

// Store is the authoritative in-memory view of one workspace's sessions
// and integrations. All reads return copies; mutations go through the
// repository first and update memory only on success.
type Store struct {
	mu           sync.RWMutex
	sessions     []core.Session
	integrations []core.Integration

	repo   *repository.Repository
	logger zerolog.Logger

	obsMu     sync.Mutex
	observers []Observer

	// batchDepth > 0 suppresses per-write notifications; the pending flags
	// record which lists changed so Batch can fire one notification each.
	batchDepth          int
	pendingSessions     bool
	pendingIntegrations bool
}

// New loads the current workspace state from the repository.
func New(repo *repository.Repository, logger zerolog.Logger) (*Store, error) {
	sessions, err := repo.ListSessions()
	if err != nil {
		return nil, err
	}
	integrations, err := repo.ListIntegrations()
	if err != nil {
		return nil, err
	}
	return &Store{
		sessions:     sessions,
		integrations: integrations,
		repo:         repo,
		logger:       logger.With().Str("subsystem", "store").Logger(),
	}, nil
}

// Subscribe registers an observer for subsequent state changes.
func (s *Store) Subscribe(o Observer) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, o)
}

// Sessions returns a copy of the current session list, in persistent order.
func (s *Store) Sessions() []core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Integrations returns a copy of the current integration list.
func (s *Store) Integrations() []core.Integration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Integration, len(s.integrations))
	copy(out, s.integrations)
	return out
}

// GetSession returns the session with the given ID.
func (s *Store) GetSession(id string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return core.Session{}, core.NewNotFoundError("session", id)
}

// GetIntegration returns the integration with the given ID.
func (s *Store) GetIntegration(id string) (core.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, in := range s.integrations {
		if in.ID == id {
			return in, nil
		}
	}
	return core.Integration{}, core.NewNotFoundError("integration", id)
}

// AddSession persists a new session and appends it to the in-memory list.
func (s *Store) AddSession(sess core.Session) error {
	s.mu.Lock()
	if err := s.repo.AddSession(sess); err != nil {
		s.mu.Unlock()
		return err
	}
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()

	s.notifySessions()
	return nil
}

// UpdateSession persists the changed session and replaces it in memory.
func (s *Store) UpdateSession(sess core.Session) error {
	s.mu.Lock()
	idx := -1
	for i, existing := range s.sessions {
		if existing.ID == sess.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.NewNotFoundError("session", sess.ID)
	}
	if err := s.repo.UpdateSession(sess); err != nil {
		s.mu.Unlock()
		return err
	}
	s.sessions[idx] = sess
	s.mu.Unlock()

	s.notifySessions()
	return nil
}

// RemoveSession deletes a session from the database and from memory.
func (s *Store) RemoveSession(id string) error {
	s.mu.Lock()
	idx := -1
	for i, existing := range s.sessions {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.NewNotFoundError("session", id)
	}
	if err := s.repo.DeleteSession(id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	s.mu.Unlock()

	s.notifySessions()
	return nil
}

// AddIntegration persists a new integration and appends it in memory.
func (s *Store) AddIntegration(in core.Integration) error {
	s.mu.Lock()
	if err := s.repo.AddIntegration(in); err != nil {
		s.mu.Unlock()
		return err
	}
	s.integrations = append(s.integrations, in)
	s.mu.Unlock()

	s.notifyIntegrations()
	return nil
}

// UpdateIntegration persists the changed integration and replaces it in memory.
func (s *Store) UpdateIntegration(in core.Integration) error {
	s.mu.Lock()
	idx := -1
	for i, existing := range s.integrations {
		if existing.ID == in.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.NewNotFoundError("integration", in.ID)
	}
	if err := s.repo.UpdateIntegration(in); err != nil {
		s.mu.Unlock()
		return err
	}
	s.integrations[idx] = in
	s.mu.Unlock()

	s.notifyIntegrations()
	return nil
}

// RemoveIntegration deletes an integration from the database and from memory.
func (s *Store) RemoveIntegration(id string) error {
	s.mu.Lock()
	idx := -1
	for i, existing := range s.integrations {
		if existing.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.NewNotFoundError("integration", id)
	}
	if err := s.repo.DeleteIntegration(id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.integrations = append(s.integrations[:idx], s.integrations[idx+1:]...)
	s.mu.Unlock()

	s.notifyIntegrations()
	return nil
}

// Batch runs fn with per-write notifications suppressed, then fires at most
// one SessionsChanged and one IntegrationsChanged reflecting the final state.
// On error the in-memory lists still reflect the writes that succeeded, and
// the batched notification fires so observers converge on that state.
func (s *Store) Batch(fn func() error) error {
	s.obsMu.Lock()
	s.batchDepth++
	s.obsMu.Unlock()

	err := fn()

	s.obsMu.Lock()
	s.batchDepth--
	fireSessions := s.batchDepth == 0 && s.pendingSessions
	fireIntegrations := s.batchDepth == 0 && s.pendingIntegrations
	if s.batchDepth == 0 {
		s.pendingSessions = false
		s.pendingIntegrations = false
	}
	s.obsMu.Unlock()

	if fireSessions {
		s.emitSessions()
	}
	if fireIntegrations {
		s.emitIntegrations()
	}
	return err
}

func (s *Store) notifySessions() {
	s.obsMu.Lock()
	if s.batchDepth > 0 {
		s.pendingSessions = true
		s.obsMu.Unlock()
		return
	}
	s.obsMu.Unlock()
	s.emitSessions()
}

func (s *Store) notifyIntegrations() {
	s.obsMu.Lock()
	if s.batchDepth > 0 {
		s.pendingIntegrations = true
		s.obsMu.Unlock()
		return
	}
	s.obsMu.Unlock()
	s.emitIntegrations()
}

func (s *Store) emitSessions() {
	snapshot := s.Sessions()
	s.obsMu.Lock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()
	for _, o := range observers {
		o.SessionsChanged(snapshot)
	}
}

func (s *Store) emitIntegrations() {
	snapshot := s.Integrations()
	s.obsMu.Lock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()
	for _, o := range observers {
		o.IntegrationsChanged(snapshot)
	}
}

// Reload replaces the in-memory state from the repository and notifies.
// Used when another process has written the workspace database.
func (s *Store) Reload() error {
	sessions, err := s.repo.ListSessions()
	if err != nil {
		return err
	}
	integrations, err := s.repo.ListIntegrations()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions = sessions
	s.integrations = integrations
	s.mu.Unlock()

	s.notifySessions()
	s.notifyIntegrations()
	return nil
}
