package signal

import (
	"testing"
	"time"
)

func TestLimiterAllowsWithinBudget(t *testing.T) {
	rl := newEventLimiter(3, time.Second)
	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("event %d denied within budget", i)
		}
	}
	if rl.Allow() {
		t.Fatal("event over budget allowed")
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	rl := newEventLimiter(2, 20*time.Millisecond)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("initial budget denied")
	}
	if rl.Allow() {
		t.Fatal("third event allowed inside the window")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow() {
		t.Fatal("budget did not recover after the window passed")
	}
}

func TestLimiterZeroDisables(t *testing.T) {
	rl := newEventLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatal("disabled limiter denied an event")
		}
	}
}
