package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/mafia/internal/domain"
)

// fakeClock is a manually advanced clock shared by tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(0, 0)}
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := newFakeClock()
	r := NewRegistry()
	r.now = clock.now
	return r, clock
}

func TestRegistryConnectAssignsLowestFreeID(t *testing.T) {
	r, _ := newTestRegistry()

	for i, name := range []string{"amethyst", "pearl", "garnet"} {
		id, _, err := r.Connect(name)
		if err != nil {
			t.Fatalf("Connect(%s): %v", name, err)
		}
		if id != domain.ClientID(i) {
			t.Fatalf("Connect(%s) id = %d, want %d", name, id, i)
		}
	}

	// Freeing a middle slot makes its id the next one handed out.
	if err := r.Disconnect(1); err != nil {
		t.Fatalf("Disconnect(1): %v", err)
	}
	r.Purge(time.Hour)

	id, _, err := r.Connect("peridot")
	if err != nil {
		t.Fatalf("Connect(peridot): %v", err)
	}
	if id != 1 {
		t.Fatalf("Connect(peridot) id = %d, want 1", id)
	}
}

func TestRegistryConnectRejectsActiveName(t *testing.T) {
	r, _ := newTestRegistry()

	if _, _, err := r.Connect("pearl"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, _, err := r.Connect("pearl"); !errors.Is(err, ErrNameRegistered) {
		t.Fatalf("Connect duplicate = %v, want ErrNameRegistered", err)
	}
}

func TestRegistryReconnectKeepsIDRotatesToken(t *testing.T) {
	r, _ := newTestRegistry()

	id, oldToken, err := r.Connect("pearl")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	r.SendEvent(domain.SetOf(id), &domain.EndGame{})

	if err := r.Disconnect(id); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	newID, newToken, err := r.Connect("pearl")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if newID != id {
		t.Fatalf("reconnect id = %d, want %d", newID, id)
	}
	if newToken == oldToken {
		t.Fatalf("reconnect should rotate the session token")
	}

	// The stale session's queue does not survive the reconnect.
	if got := r.TakeEvents(id); len(got) != 0 {
		t.Fatalf("inbox after reconnect has %d events, want 0", len(got))
	}

	if _, err := r.Auth(oldToken); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("Auth(old token) = %v, want ErrInvalidSessionToken", err)
	}
	if got, err := r.Auth(newToken); err != nil || got != id {
		t.Fatalf("Auth(new token) = %d, %v, want %d, nil", got, err, id)
	}
}

func TestRegistryIDPoolExhaustion(t *testing.T) {
	r, _ := newTestRegistry()

	for i := 0; i < domain.MaxClients; i++ {
		if _, _, err := r.Connect(fmt.Sprintf("client-%d", i)); err != nil {
			t.Fatalf("Connect #%d: %v", i, err)
		}
	}
	if _, _, err := r.Connect("one-too-many"); !errors.Is(err, ErrTooManyClients) {
		t.Fatalf("Connect #%d = %v, want ErrTooManyClients", domain.MaxClients, err)
	}
}

func TestRegistryAuth(t *testing.T) {
	r, _ := newTestRegistry()

	id, token, err := r.Connect("pearl")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	got, err := r.Auth(token)
	if err != nil || got != id {
		t.Fatalf("Auth = %d, %v, want %d, nil", got, err, id)
	}

	if _, err := r.Auth(domain.NewSessionToken()); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("Auth(unknown) = %v, want ErrInvalidSessionToken", err)
	}

	if err := r.Disconnect(id); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := r.Auth(token); !errors.Is(err, ErrClientDisconnected) {
		t.Fatalf("Auth(disconnected) = %v, want ErrClientDisconnected", err)
	}
}

func TestRegistryDisconnectTwice(t *testing.T) {
	r, _ := newTestRegistry()

	id, _, err := r.Connect("pearl")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := r.Disconnect(id); err != nil {
		t.Fatalf("first Disconnect: %v", err)
	}
	if err := r.Disconnect(id); !errors.Is(err, ErrClientDisconnected) {
		t.Fatalf("second Disconnect = %v, want ErrClientDisconnected", err)
	}
	if err := r.Disconnect(42); !errors.Is(err, ErrInvalidClientID) {
		t.Fatalf("Disconnect(unknown) = %v, want ErrInvalidClientID", err)
	}
}

func TestRegistryPurgeInactivity(t *testing.T) {
	r, clock := newTestRegistry()

	idleID, _, err := r.Connect("idle")
	if err != nil {
		t.Fatalf("Connect(idle): %v", err)
	}
	activeID, activeToken, err := r.Connect("active")
	if err != nil {
		t.Fatalf("Connect(active): %v", err)
	}

	clock.advance(5 * time.Minute)
	// Auth refreshes liveness, so only the idle client crosses the limit.
	if _, err := r.Auth(activeToken); err != nil {
		t.Fatalf("Auth(active): %v", err)
	}
	clock.advance(time.Minute)

	lost := r.Purge(5 * time.Minute)
	if len(lost) != 1 || lost[0] != idleID {
		t.Fatalf("Purge lost = %v, want [%d]", lost, idleID)
	}
	if r.AllClientIDs() != domain.SetOf(activeID) {
		t.Fatalf("remaining ids = %v, want [%d]", r.AllClientIDs().IDs(), activeID)
	}
}

func TestRegistryPurgeDisconnectedNotReportedLost(t *testing.T) {
	r, _ := newTestRegistry()

	id, _, err := r.Connect("pearl")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := r.Disconnect(id); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if lost := r.Purge(time.Hour); len(lost) != 0 {
		t.Fatalf("Purge lost = %v, want none", lost)
	}
	if !r.AllClientIDs().Empty() {
		t.Fatalf("registry should be empty after purge")
	}
}

func TestRegistrySendEventSkipsDisconnected(t *testing.T) {
	r, _ := newTestRegistry()

	a, _, _ := r.Connect("a")
	b, _, _ := r.Connect("b")
	if err := r.Disconnect(b); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	ev := &domain.EndGame{}
	r.SendEvent(domain.SetOf(a, b, 9), ev)

	got := r.TakeEvents(a)
	if len(got) != 1 || got[0] != ev {
		t.Fatalf("a inbox = %v, want the sent event", got)
	}
	if got := r.TakeEvents(a); len(got) != 0 {
		t.Fatalf("second drain should be empty, got %d events", len(got))
	}
	if got := r.TakeEvents(b); len(got) != 0 {
		t.Fatalf("disconnected inbox should stay empty, got %d events", len(got))
	}
}

func TestRegistryAllClientInfoAscending(t *testing.T) {
	r, _ := newTestRegistry()

	r.Connect("amethyst")
	r.Connect("pearl")
	r.Connect("garnet")

	infos := r.AllClientInfo()
	want := []string{"amethyst", "pearl", "garnet"}
	if len(infos) != len(want) {
		t.Fatalf("AllClientInfo returned %d entries, want %d", len(infos), len(want))
	}
	for i, info := range infos {
		if info.ID != domain.ClientID(i) || info.Name != want[i] {
			t.Fatalf("info[%d] = %+v, want id %d name %s", i, info, i, want[i])
		}
	}
}
