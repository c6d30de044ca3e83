package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for ids with no live or archived session
var ErrSessionNotFound = errors.New("session not found")

const saveTimeout = 5 * time.Second

// Archive persists transcripts and serialises turns across replicas
type Archive interface {
	Save(ctx context.Context, id string, messages []Message) error
	// Load returns ErrSessionNotFound when nothing is archived under id
	Load(ctx context.Context, id string) ([]Message, error)
	Delete(ctx context.Context, id string) error
	// Lock blocks until the session lock is held or ctx is done
	Lock(ctx context.Context, id string) (func(), error)
	Ping(ctx context.Context) error
}

// Session is a live conversation plus its turn lock
type Session struct {
	id    string
	mu    sync.RWMutex
	state *State
	turn  chan struct{}
}

func newSession(state *State) *Session {
	return &Session{id: state.ID(), state: state, turn: make(chan struct{}, 1)}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// State returns the current history
func (s *Session) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) replace(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Manager tracks live sessions. At most one turn runs per session at a time.
type Manager struct {
	systemPrompt string
	archive      Archive
	logger       *zap.Logger
	sessions     map[string]*Session
	mu           sync.RWMutex // Protects concurrent access to sessions map
}

// NewManager creates a session manager. archive may be nil, in which case
// sessions live only in this process.
func NewManager(systemPrompt string, archive Archive, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		systemPrompt: systemPrompt,
		archive:      archive,
		logger:       logger,
		sessions:     make(map[string]*Session),
	}
}

// Create starts a new session seeded with the system prompt
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	session := newSession(NewState(uuid.NewString(), m.systemPrompt))

	if m.archive != nil {
		if err := m.archive.Save(ctx, session.id, session.State().Snapshot()); err != nil {
			return nil, fmt.Errorf("failed to archive session: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[session.id] = session
	m.mu.Unlock()

	m.logger.Info("session_created", zap.String("session_id", session.id))
	return session, nil
}

// Get returns the live session for id, restoring it from the archive when
// this process has not seen it yet
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	// Try read lock first for fast path
	m.mu.RLock()
	if session, ok := m.sessions[id]; ok {
		m.mu.RUnlock()
		return session, nil
	}
	m.mu.RUnlock()

	if m.archive == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	messages, err := m.archive.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine might have restored it)
	if session, ok := m.sessions[id]; ok {
		return session, nil
	}

	session := newSession(Restore(id, messages))
	m.sessions[id] = session
	m.logger.Info("session_restored",
		zap.String("session_id", id),
		zap.Int("message_count", len(messages)),
	)
	return session, nil
}

// Acquire waits for the turn lock of session id. The returned release func
// archives the transcript and frees the lock; it must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	session, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	select {
	case session.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("failed to acquire session lock: %w", ctx.Err())
	}

	if m.archive == nil {
		return session, func() { <-session.turn }, nil
	}

	unlockRemote, err := m.archive.Lock(ctx, id)
	if err != nil {
		<-session.turn
		return nil, nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}

	// another replica may have advanced the conversation
	if messages, err := m.archive.Load(ctx, id); err == nil && len(messages) > session.State().Len() {
		session.replace(Restore(id, messages))
	}

	release := func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := m.archive.Save(saveCtx, id, session.State().Snapshot()); err != nil {
			m.logger.Warn("failed_to_archive_session",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
		unlockRemote()
		<-session.turn
	}
	return session, release, nil
}

// Delete forgets session id here and in the archive
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.archive != nil {
		if err := m.archive.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete archived session: %w", err)
		}
		return nil
	}
	if !live {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Sweep drops live sessions idle for longer than maxIdle. Archived
// transcripts remain and are restored on next use.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, session := range m.sessions {
		if session.State().LastActivity().Before(cutoff) && len(session.turn) == 0 {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("sessions_swept", zap.Int("count", removed))
	}
	return removed
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Ping checks the archive, if any
func (m *Manager) Ping(ctx context.Context) error {
	if m.archive == nil {
		return nil
	}
	return m.archive.Ping(ctx)
}
