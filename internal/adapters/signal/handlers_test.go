package signal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/connecthub/relay/internal/config"
	"github.com/connecthub/relay/internal/core"
)

func drainWarnings(c *wsConn) (rateLimited, other int) {
	for len(c.send) > 0 {
		fr := <-c.send
		if strings.Contains(string(fr), "rate limit") {
			rateLimited++
		} else {
			other++
		}
	}
	return rateLimited, other
}

// An unauthenticated socket flooding garbage must burn its rate budget like
// any other sender instead of getting unmetered decode round-trips.
func TestUnauthenticatedFramesAreMetered(t *testing.T) {
	ctl := &Controller{cfg: &config.Config{}}
	c := &wsConn{send: make(chan core.Frame, 16)}
	state := newConnState(2, time.Minute)

	for i := 0; i < 5; i++ {
		if !ctl.handleFrame(context.Background(), "c1", c, state, []byte("not json")) {
			t.Fatal("garbage frame closed the connection")
		}
	}

	rateLimited, other := drainWarnings(c)
	if other != 2 {
		t.Fatalf("%d frames answered before the budget ran out, want 2", other)
	}
	if rateLimited != 3 {
		t.Fatalf("%d frames rate limited, want 3", rateLimited)
	}
}

func TestHandshakeAttemptsAreMetered(t *testing.T) {
	ctl := &Controller{cfg: &config.Config{}}
	c := &wsConn{send: make(chan core.Frame, 16)}
	state := newConnState(1, time.Minute)

	frame := []byte(`{"type":"joinChat","chatId":"42"}`)
	if !ctl.handleFrame(context.Background(), "c1", c, state, frame) {
		t.Fatal("pre-handshake event closed the connection")
	}
	if !ctl.handleFrame(context.Background(), "c1", c, state, frame) {
		t.Fatal("rate-limited frame closed the connection")
	}

	rateLimited, other := drainWarnings(c)
	if other != 1 || rateLimited != 1 {
		t.Fatalf("warnings = %d answered, %d rate limited; want 1 and 1", other, rateLimited)
	}
}
