package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/automation-creator/internal/host"
	"github.com/nerrad567/automation-creator/internal/submission"
)

// Manager holds the open sessions of a panel.
//
// Every session shares the host connection and policy given to NewManager.
// State changes of all sessions are forwarded to the function set with
// OnStateChange.
type Manager struct {
	conn      host.Connection
	questions []string
	policy    submission.Policy
	recorder  submission.Recorder
	logger    Logger

	mu       sync.RWMutex
	sessions map[string]*managed

	onChange func(State)
}

type managed struct {
	ctrl        *Controller
	unsubscribe func()
}

// NewManager creates an empty manager.
func NewManager(conn host.Connection, questions []string, policy submission.Policy, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		conn:      conn,
		questions: questions,
		policy:    policy,
		logger:    logger,
		sessions:  make(map[string]*managed),
	}
}

// SetRecorder installs submission telemetry for sessions created afterwards.
func (m *Manager) SetRecorder(r submission.Recorder) {
	m.recorder = r
}

// OnStateChange sets the function every session's state changes are sent to.
// Must be called before sessions are created.
func (m *Manager) OnStateChange(fn func(State)) {
	m.onChange = fn
}

// Create opens a new session in the given mode.
func (m *Manager) Create(mode Mode) (*Controller, error) {
	orch := submission.New(m.conn, m.policy, m.logger)
	if m.recorder != nil {
		orch.SetRecorder(m.recorder)
	}

	ctrl, err := New(m.conn, Options{
		Mode:      mode,
		Questions: m.questions,
		Submitter: orch,
		Logger:    m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	entry := &managed{ctrl: ctrl, unsubscribe: func() {}}
	if m.onChange != nil {
		entry.unsubscribe = ctrl.Subscribe(m.onChange)
	}

	m.mu.Lock()
	m.sessions[ctrl.ID()] = entry
	m.mu.Unlock()

	m.logger.Debug("session created", "session_id", ctrl.ID(), "mode", string(ctrl.Mode()))
	return ctrl, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry.ctrl, nil
}

// Delete closes a session. A session that is submitting cannot be deleted.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if err := entry.ctrl.Close(); err != nil {
		return err
	}

	entry.unsubscribe()
	delete(m.sessions, id)
	return nil
}

// List returns the state of every session ordered by ID.
func (m *Manager) List() []State {
	m.mu.RLock()
	states := make([]State, 0, len(m.sessions))
	for _, entry := range m.sessions {
		states = append(states, entry.ctrl.State())
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
