package app_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/connecthub/relay/internal/app"
	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
)

func TestRegisterReportsOnlineTransition(t *testing.T) {
	reg := app.NewRegistry()

	c1 := &fakeConn{}
	if !reg.Register("c1", core.NewSession("u1", c1)) {
		t.Fatal("first connection should bring the identity online")
	}
	if !reg.IsOnline("u1") {
		t.Fatal("u1 should be online")
	}

	c2 := &fakeConn{}
	if reg.Register("c2", core.NewSession("u1", c2)) {
		t.Fatal("second device must not report a fresh online transition")
	}
}

func TestRegisterIdempotentPerConnection(t *testing.T) {
	reg := app.NewRegistry()

	conn := &fakeConn{}
	reg.Register("c1", core.NewSession("u1", conn))
	if reg.Register("c1", core.NewSession("u1", conn)) {
		t.Fatal("re-registering a live handle must be a no-op")
	}
	if got := len(reg.SessionsOf("u1")); got != 1 {
		t.Fatalf("expected 1 session for u1, got %d", got)
	}
}

// TestRapidReconnectKeepsNewConnection covers the reconnect race: the new
// transport session registers before the old one's teardown lands. Handles
// are single-use, so the late unregister of the old handle must leave the
// new connection's state untouched.
func TestRapidReconnectKeepsNewConnection(t *testing.T) {
	reg := app.NewRegistry()
	connect(t, reg, "c-old", "u1")
	connect(t, reg, "c-new", "u1")

	if _, wasLast, ok := reg.Unregister("c-old"); !ok || wasLast {
		t.Fatalf("old handle teardown reported wasLast=%v ok=%v", wasLast, ok)
	}
	if !reg.IsOnline("u1") {
		t.Fatal("reconnected identity went offline")
	}
	if _, ok := reg.SessionOf("c-new"); !ok {
		t.Fatal("new connection's binding lost")
	}

	if _, wasLast, ok := reg.Unregister("c-new"); !ok || !wasLast {
		t.Fatalf("final teardown reported wasLast=%v ok=%v", wasLast, ok)
	}
	if reg.IsOnline("u1") {
		t.Fatal("identity still online with no connections")
	}
}

func TestUnregisterLastConnection(t *testing.T) {
	reg := app.NewRegistry()
	connect(t, reg, "c1", "u1")
	connect(t, reg, "c2", "u1")

	user, wasLast, ok := reg.Unregister("c1")
	if !ok || user != "u1" {
		t.Fatalf("unregister c1 = (%q, %v, %v)", user, wasLast, ok)
	}
	if wasLast {
		t.Fatal("u1 still has a device, wasLast must be false")
	}
	if !reg.IsOnline("u1") {
		t.Fatal("u1 must stay online while a device remains")
	}

	_, wasLast, ok = reg.Unregister("c2")
	if !ok || !wasLast {
		t.Fatalf("final unregister = (wasLast=%v, ok=%v)", wasLast, ok)
	}
	if reg.IsOnline("u1") {
		t.Fatal("u1 must be offline after the last device unregisters")
	}
}

func TestUnregisterTwiceIsNoOp(t *testing.T) {
	reg := app.NewRegistry()
	connect(t, reg, "c1", "u1")

	if _, _, ok := reg.Unregister("c1"); !ok {
		t.Fatal("first unregister should succeed")
	}
	if _, _, ok := reg.Unregister("c1"); ok {
		t.Fatal("second unregister must report ok=false")
	}
}

// TestSnapshotMatchesLiveConnections drives random register/unregister
// interleavings and checks the invariant: the snapshot equals exactly the
// set of identities with at least one live connection.
func TestSnapshotMatchesLiveConnections(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		reg := app.NewRegistry()
		live := make(map[core.ConnID]domain.UserID)
		nextConn := 0

		for step := 0; step < 200; step++ {
			if len(live) == 0 || rng.Intn(2) == 0 {
				id := core.ConnID(fmt.Sprintf("c%d", nextConn))
				nextConn++
				user := domain.UserID(fmt.Sprintf("u%d", rng.Intn(8)))
				reg.Register(id, core.NewSession(user, &fakeConn{}))
				live[id] = user
			} else {
				for id := range live {
					reg.Unregister(id)
					delete(live, id)
					break
				}
			}

			want := make(map[domain.UserID]bool)
			for _, user := range live {
				want[user] = true
			}
			snap := reg.Snapshot()
			if len(snap) != len(want) {
				t.Fatalf("round %d step %d: snapshot has %d users, want %d", round, step, len(snap), len(want))
			}
			for _, user := range snap {
				if !want[user] {
					t.Fatalf("round %d step %d: snapshot contains %q with no live connection", round, step, user)
				}
			}
		}
	}
}

func TestSnapshotIsSorted(t *testing.T) {
	reg := app.NewRegistry()
	for _, u := range []domain.UserID{"zed", "amy", "mia"} {
		connect(t, reg, core.ConnID("c-"+u), u)
	}
	snap := reg.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i-1] >= snap[i] {
			t.Fatalf("snapshot not sorted: %v", snap)
		}
	}
}
