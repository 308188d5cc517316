package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recv(t *testing.T, ch <-chan domain.Session) domain.Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
		return domain.Session{}
	}
}

func TestEstablishAndClear(t *testing.T) {
	m := NewManager(nil, discard())

	if got := m.Current(); !got.AuthLoading {
		t.Fatalf("new manager session = %+v, want AuthLoading", got)
	}

	id, ch := m.Subscribe(4)
	defer m.Unsubscribe(id)

	m.Establish("user-1")
	s := recv(t, ch)
	if !s.SignedIn() || s.UserID != "user-1" {
		t.Errorf("after Establish: %+v, want signed-in user-1", s)
	}

	m.Clear()
	s = recv(t, ch)
	if s.SignedIn() || !s.Settled() {
		t.Errorf("after Clear: %+v, want settled signed-out", s)
	}
}

func TestRefreshSettlesSignedIn(t *testing.T) {
	m := NewManager(func(ctx context.Context) (string, error) {
		return "user-7", nil
	}, discard())

	id, ch := m.Subscribe(4)
	defer m.Unsubscribe(id)

	m.Refresh(context.Background())

	s := recv(t, ch)
	if !s.AuthLoading {
		t.Errorf("first event %+v, want AuthLoading true", s)
	}
	s = recv(t, ch)
	if s.UserID != "user-7" || s.AuthLoading {
		t.Errorf("second event %+v, want settled user-7", s)
	}
}

func TestRefreshErrorSettlesSignedOut(t *testing.T) {
	m := NewManager(func(ctx context.Context) (string, error) {
		return "", errors.New("auth backend unavailable")
	}, discard())

	m.Refresh(context.Background())

	s := m.Current()
	if s.AuthLoading {
		t.Error("session left loading after refresh error")
	}
	if s.SignedIn() {
		t.Error("session signed in after refresh error")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager(nil, discard())
	id, _ := m.Subscribe(0) // zero-buffer channel nobody reads
	defer m.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		m.Establish("user-1")
		m.Clear()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on slow subscriber")
	}
}
