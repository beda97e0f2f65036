package hub

import (
	"errors"
	"testing"
	"time"
)

// fakeConn records writes and can be told to start failing, standing in
// for a websocket connection.
type fakeConn struct {
	events    []interface{}
	failWrite bool
	closed    int
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.failWrite {
		return errors.New("write failed")
	}
	f.events = append(f.events, v)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.closed++
	return nil
}

func (f *fakeConn) presenceEvents() []PresenceEvent {
	var out []PresenceEvent
	for _, ev := range f.events {
		if p, ok := ev.(PresenceEvent); ok {
			out = append(out, p)
		}
	}
	return out
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	t.Cleanup(h.Close)
	return h
}

func TestRegisterRejectsZeroUserID(t *testing.T) {
	h := newTestHub(t)

	if err := h.Register(0, &fakeConn{}); err == nil {
		t.Fatal("expected error for user id 0")
	}
	if h.Count() != 0 {
		t.Errorf("count = %d, want 0", h.Count())
	}
}

func TestSnapshotIsSortedCopy(t *testing.T) {
	h := newTestHub(t)

	for _, id := range []uint{3, 1, 2} {
		if err := h.Register(id, &fakeConn{}); err != nil {
			t.Fatalf("Register %d: %v", id, err)
		}
	}

	snap := h.Snapshot()
	want := []uint{1, 2, 3}
	if len(snap) != len(want) {
		t.Fatalf("snapshot = %v, want %v", snap, want)
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", snap, want)
		}
	}

	// Mutating the returned slice must not disturb the registry.
	snap[0] = 99
	again := h.Snapshot()
	if again[0] != 1 {
		t.Errorf("snapshot after mutation = %v, registry leaked internal state", again)
	}
}

func TestLastRegistrationWins(t *testing.T) {
	h := newTestHub(t)

	first := &fakeConn{}
	second := &fakeConn{}
	if err := h.Register(7, first); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := h.Register(7, second); err != nil {
		t.Fatalf("second Register: %v", err)
	}

	if h.Count() != 1 {
		t.Errorf("count = %d, want 1", h.Count())
	}
	if first.closed == 0 {
		t.Error("replaced connection was not closed")
	}

	firstEvents := len(second.events)
	if err := h.SendToUser(7, "ping"); err != nil {
		t.Fatalf("SendToUser: %v", err)
	}
	if len(second.events) != firstEvents+1 {
		t.Error("delivery did not land on the replacement connection")
	}
}

func TestUnregisterIgnoresStaleHandle(t *testing.T) {
	h := newTestHub(t)

	stale := &fakeConn{}
	live := &fakeConn{}
	if err := h.Register(7, stale); err != nil {
		t.Fatalf("Register stale: %v", err)
	}
	if err := h.Register(7, live); err != nil {
		t.Fatalf("Register live: %v", err)
	}

	// The replaced connection's deferred unregister fires late; it must
	// not evict the replacement.
	h.Unregister(7, stale)
	if !h.IsOnline(7) {
		t.Fatal("stale unregister evicted the live connection")
	}

	h.Unregister(7, live)
	if h.IsOnline(7) {
		t.Error("live unregister did not evict")
	}
}

func TestSendToUserNotConnected(t *testing.T) {
	h := newTestHub(t)

	if err := h.SendToUser(7, "hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendToUserEvictsOnWriteError(t *testing.T) {
	h := newTestHub(t)

	conn := &fakeConn{}
	if err := h.Register(7, conn); err != nil {
		t.Fatalf("Register: %v", err)
	}

	conn.failWrite = true
	if err := h.SendToUser(7, "hello"); err == nil {
		t.Fatal("expected write error")
	}
	if h.IsOnline(7) {
		t.Error("failed connection should be evicted")
	}
}

func TestSubscribeRequiresConnection(t *testing.T) {
	h := newTestHub(t)

	if err := h.Subscribe(7, 1); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendToGroupReachesOnlySubscribers(t *testing.T) {
	h := newTestHub(t)

	alice := &fakeConn{}
	bob := &fakeConn{}
	carol := &fakeConn{}
	for id, conn := range map[uint]*fakeConn{1: alice, 2: bob, 3: carol} {
		if err := h.Register(id, conn); err != nil {
			t.Fatalf("Register %d: %v", id, err)
		}
	}
	if err := h.Subscribe(1, 10); err != nil {
		t.Fatalf("Subscribe alice: %v", err)
	}
	if err := h.Subscribe(2, 10); err != nil {
		t.Fatalf("Subscribe bob: %v", err)
	}

	baseline := map[*fakeConn]int{alice: len(alice.events), bob: len(bob.events), carol: len(carol.events)}
	h.SendToGroup(10, "announcement")

	if len(alice.events) != baseline[alice]+1 {
		t.Error("subscriber alice missed the group event")
	}
	if len(bob.events) != baseline[bob]+1 {
		t.Error("subscriber bob missed the group event")
	}
	if len(carol.events) != baseline[carol] {
		t.Error("non-subscriber carol received a group event")
	}
}

func TestSubscriptionLapsesWithConnection(t *testing.T) {
	h := newTestHub(t)

	conn := &fakeConn{}
	if err := h.Register(1, conn); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := h.Subscribe(1, 10); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	h.Unregister(1, conn)

	// Reconnecting does not restore the channel subscription.
	fresh := &fakeConn{}
	if err := h.Register(1, fresh); err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	baseline := len(fresh.events)
	h.SendToGroup(10, "announcement")
	if len(fresh.events) != baseline {
		t.Error("subscription survived the connection it belonged to")
	}
}

func TestPresencePublishedOnEveryMutation(t *testing.T) {
	h := newTestHub(t)

	alice := &fakeConn{}
	if err := h.Register(1, alice); err != nil {
		t.Fatalf("Register alice: %v", err)
	}

	bob := &fakeConn{}
	if err := h.Register(2, bob); err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	events := alice.presenceEvents()
	if len(events) < 2 {
		t.Fatalf("alice saw %d presence events, want at least 2", len(events))
	}
	last := events[len(events)-1]
	if len(last.UserIDs) != 2 || last.UserIDs[0] != 1 || last.UserIDs[1] != 2 {
		t.Errorf("presence after second register = %v, want [1 2]", last.UserIDs)
	}

	h.Unregister(2, bob)
	events = alice.presenceEvents()
	last = events[len(events)-1]
	if len(last.UserIDs) != 1 || last.UserIDs[0] != 1 {
		t.Errorf("presence after unregister = %v, want [1]", last.UserIDs)
	}
}

func TestFocusTracking(t *testing.T) {
	h := newTestHub(t)

	if got := h.FocusOf(7); got != (Focus{}) {
		t.Errorf("focus of offline user = %+v, want zero", got)
	}

	conn := &fakeConn{}
	if err := h.Register(7, conn); err != nil {
		t.Fatalf("Register: %v", err)
	}

	h.SetFocus(7, Focus{Kind: FocusUser, ID: 3})
	if !h.FocusOf(7).OnUser(3) {
		t.Error("focus not recorded")
	}
	if h.FocusOf(7).OnUser(4) {
		t.Error("focus matches the wrong peer")
	}

	h.SetFocus(7, Focus{})
	if h.FocusOf(7) != (Focus{}) {
		t.Error("focus not cleared")
	}

	// Focus dies with the connection.
	h.SetFocus(7, Focus{Kind: FocusGroup, ID: 9})
	h.Unregister(7, conn)
	if h.FocusOf(7) != (Focus{}) {
		t.Error("focus survived the connection")
	}
}
