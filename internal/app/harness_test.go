package app_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/connecthub/relay/internal/app"
	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
)

// fakeConn is an in-memory SignalConnection that records every frame it
// receives. Setting full simulates a saturated outbound buffer.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// events decodes the captured frames into generic maps for assertions.
func (f *fakeConn) events() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) countType(t string) int {
	n := 0
	for _, ev := range f.events() {
		if ev["type"] == t {
			n++
		}
	}
	return n
}

func (f *fakeConn) lastOfType(t string) (map[string]any, bool) {
	var found map[string]any
	ok := false
	for _, ev := range f.events() {
		if ev["type"] == t {
			found, ok = ev, true
		}
	}
	return found, ok
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func newHarness() (*app.Registry, *app.Router) {
	reg := app.NewRegistry()
	return reg, app.NewRouter(reg)
}

// connect registers a fake connection for user and returns its transport.
func connect(t *testing.T, reg *app.Registry, id core.ConnID, user domain.UserID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	reg.Register(id, core.NewSession(user, conn))
	return conn
}
