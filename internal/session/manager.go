// Package session tracks the authenticated user session and broadcasts
// changes to subscribers. It is the single writer of session state; every
// other component observes it through Current or a subscription channel.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
)

// RefreshFunc re-validates the current credentials against the auth backend
// and returns the authenticated user id, or "" when signed out.
type RefreshFunc func(ctx context.Context) (userID string, err error)

// Manager holds the current session with pub/sub change notification.
type Manager struct {
	mu      sync.RWMutex
	current domain.Session
	refresh RefreshFunc
	log     *slog.Logger

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan domain.Session
}

// NewManager creates a Manager. The session starts in the loading state; the
// caller is expected to Establish, Clear, or Refresh once the auth backend
// answers. refresh may be nil if Refresh is never used.
func NewManager(refresh RefreshFunc, log *slog.Logger) *Manager {
	return &Manager{
		current: domain.Session{AuthLoading: true},
		refresh: refresh,
		log:     log,
		subs:    make(map[int]chan domain.Session),
	}
}

// Current returns the session as last observed.
func (m *Manager) Current() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Establish records a settled, signed-in session and notifies subscribers.
func (m *Manager) Establish(userID string) {
	m.mu.Lock()
	m.current = domain.Session{UserID: userID, AuthLoading: false}
	s := m.current
	m.mu.Unlock()

	m.log.Info("session established", "userID", userID)
	m.broadcast(s)
}

// Clear tears the session down (logout) and notifies subscribers.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.current = domain.Session{}
	s := m.current
	m.mu.Unlock()

	m.log.Info("session cleared")
	m.broadcast(s)
}

// Refresh marks the session as loading, re-validates credentials through the
// injected RefreshFunc, and settles to signed-in or signed-out. A lookup
// error settles to signed-out; the session is never left loading.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.Lock()
	m.current.AuthLoading = true
	s := m.current
	m.mu.Unlock()
	m.broadcast(s)

	userID, err := m.refresh(ctx)
	if err != nil {
		m.log.Warn("session refresh failed", "error", err)
		m.Clear()
		return
	}
	if userID == "" {
		m.Clear()
		return
	}
	m.Establish(userID)
}

// Subscribe returns a channel receiving session changes. bufSize controls
// the channel buffer; slow consumers will have events dropped.
func (m *Manager) Subscribe(bufSize int) (int, <-chan domain.Session) {
	ch := make(chan domain.Session, bufSize)
	m.subsMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = ch
	m.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Manager) Unsubscribe(id int) {
	m.subsMu.Lock()
	if ch, ok := m.subs[id]; ok {
		delete(m.subs, id)
		close(ch)
	}
	m.subsMu.Unlock()
}

// broadcast sends a session change to all subscribers non-blocking.
func (m *Manager) broadcast(s domain.Session) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			// Slow consumer — drop event.
		}
	}
}
