package app_test

import (
	"testing"

	"github.com/connecthub/relay/internal/app"
)

func TestFirstConnectionAnnouncesOnline(t *testing.T) {
	reg, rt := newHarness()
	presence := app.NewPresence(reg, rt)

	watcher := connect(t, reg, "w", "watcher")
	presence.ConnectionRegistered("w", "watcher", true)
	watcher.reset()

	connect(t, reg, "c1", "u1")
	presence.ConnectionRegistered("c1", "u1", true)

	if watcher.countType("userOnline") != 1 {
		t.Fatalf("watcher saw %d userOnline events, want 1", watcher.countType("userOnline"))
	}
	snap, ok := watcher.lastOfType("onlineUsers")
	if !ok {
		t.Fatal("watcher never received the online snapshot")
	}
	users := snap["userIds"].([]any)
	if len(users) != 2 {
		t.Fatalf("snapshot has %d users, want 2", len(users))
	}
}

func TestSecondDeviceDoesNotReannounce(t *testing.T) {
	reg, rt := newHarness()
	presence := app.NewPresence(reg, rt)

	watcher := connect(t, reg, "w", "watcher")
	presence.ConnectionRegistered("w", "watcher", true)

	connect(t, reg, "c1", "u1")
	presence.ConnectionRegistered("c1", "u1", true)
	watcher.reset()

	second := connect(t, reg, "c2", "u1")
	presence.ConnectionRegistered("c2", "u1", false)

	if watcher.countType("userOnline") != 0 {
		t.Fatal("second device must not re-broadcast userOnline")
	}
	if second.countType("onlineUsers") != 1 {
		t.Fatal("the new device should get the snapshot directly")
	}
}

func TestOfflineOnlyAfterLastDevice(t *testing.T) {
	reg, rt := newHarness()
	presence := app.NewPresence(reg, rt)

	watcher := connect(t, reg, "w", "watcher")
	presence.ConnectionRegistered("w", "watcher", true)

	connect(t, reg, "c1", "u1")
	presence.ConnectionRegistered("c1", "u1", true)
	connect(t, reg, "c2", "u1")
	presence.ConnectionRegistered("c2", "u1", false)
	watcher.reset()

	user, wasLast, _ := reg.Unregister("c1")
	presence.ConnectionGone(user, wasLast)
	if watcher.countType("userOffline") != 0 {
		t.Fatal("userOffline emitted while a device remains")
	}

	user, wasLast, _ = reg.Unregister("c2")
	presence.ConnectionGone(user, wasLast)
	if watcher.countType("userOffline") != 1 {
		t.Fatalf("watcher saw %d userOffline events, want 1", watcher.countType("userOffline"))
	}
	snap, _ := watcher.lastOfType("onlineUsers")
	users := snap["userIds"].([]any)
	if len(users) != 1 || users[0] != "watcher" {
		t.Fatalf("post-offline snapshot = %v, want [watcher]", users)
	}
}
