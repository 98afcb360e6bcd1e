// Package session holds the in-memory authentication state of the running
// process and fans state changes out to observers. The state is derived from
// the credential store at startup and updated only through the typed
// transition methods, so it can never leave the defined state set.
package session

import (
	"sync"

	"github.com/sejonglabs/sejong/internal/models"
)

// Phase enumerates the authentication phases.
type Phase string

const (
	// PhaseLoading is the initial phase before startup resolution.
	PhaseLoading Phase = "loading"
	// PhaseSignedOut means no usable identity is present.
	PhaseSignedOut Phase = "signed_out"
	// PhaseGuest allows app use without a backend identity.
	PhaseGuest Phase = "guest"
	// PhaseSignedIn means a backend identity's tokens are in use.
	PhaseSignedIn Phase = "signed_in"
)

// State is the current authentication state. UserID is set only when
// Phase == PhaseSignedIn.
type State struct {
	Phase  Phase
	UserID string
}

// Manager owns the session state. It is safe for concurrent use; observers
// receive every transition through buffered subscription channels.
type Manager struct {
	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int
}

// NewManager starts in PhaseLoading.
func NewManager() *Manager {
	return &Manager{
		state: State{Phase: PhaseLoading},
		subs:  make(map[int]chan State),
	}
}

// Current returns a snapshot of the state.
func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe returns a channel receiving every subsequent transition and a
// cancel function releasing the subscription. A slow receiver that falls
// more than the buffer behind loses intermediate states, never the channel.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan State, 16)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Resolve performs the one-time startup transition out of PhaseLoading:
// an active account holding an access token yields PhaseSignedIn, anything
// else yields PhaseSignedOut. Calls after resolution are ignored, matching
// the rule that no transition leads back to Loading.
func (m *Manager) Resolve(active *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseLoading {
		return
	}
	if active != nil && active.AccessToken != "" {
		m.set(State{Phase: PhaseSignedIn, UserID: active.UserID})
		return
	}
	m.set(State{Phase: PhaseSignedOut})
}

// SignedIn transitions to PhaseSignedIn for the given user.
func (m *Manager) SignedIn(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(State{Phase: PhaseSignedIn, UserID: userID})
}

// SignedOut transitions to PhaseSignedOut. Idempotent.
func (m *Manager) SignedOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(State{Phase: PhaseSignedOut})
}

// Guest transitions to PhaseGuest.
func (m *Manager) Guest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(State{Phase: PhaseGuest})
}

// set must be called with mu held.
func (m *Manager) set(s State) {
	if m.state == s {
		return
	}
	m.state = s
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
