package hotkeys

import (
	"sync"
	"testing"

	"go.uber.org/zap"
)

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

type emitted struct {
	name    string
	payload any
}

func (f *fakeEmitter) Emit(name string, payload any) {
	f.mu.Lock()
	f.events = append(f.events, emitted{name, payload})
	f.mu.Unlock()
}

func (f *fakeEmitter) byName(name string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.events {
		if e.name == name {
			out = append(out, e.payload)
		}
	}
	return out
}

// testKeys is a tiny synthetic keycode table shared by the fakes.
var testKeys = map[string]uint16{
	"f5": 116, "f6": 117, "f7": 118, "f8": 119,
	"f9": 120, "f10": 121, "f11": 122,
	"p": 25, "s": 39, "shift": 50,
}

func newTestRouter() (*Router, *fakeEmitter) {
	emit := &fakeEmitter{}
	r := New(emit, zap.NewNop())
	r.keyCode = func(key string) uint16 { return testKeys[key] }
	r.keyName = func(code uint16) string {
		for name, c := range testKeys {
			if c == code {
				return name
			}
		}
		return ""
	}
	r.mu.Lock()
	r.rebuildCacheLocked()
	r.mu.Unlock()
	return r, emit
}

// ── matching ────────────────────────────────────────────────────────────────

func TestHook_MatchesDefaultBinding(t *testing.T) {
	r, emit := newTestRouter()

	r.handleRawKeyDown(testKeys["f5"])

	got := emit.byName("global-shortcut")
	if len(got) != 1 || got[0] != string(ActionPauseResume) {
		t.Fatalf("global-shortcut = %v, want [pause_resume]", got)
	}
}

func TestHook_UnboundKeyIsIgnored(t *testing.T) {
	r, emit := newTestRouter()

	r.handleRawKeyDown(testKeys["p"])

	if got := emit.byName("global-shortcut"); len(got) != 0 {
		t.Errorf("unbound key fired %v", got)
	}
}

func TestHook_ModifierOnlyKeyDownsAreFiltered(t *testing.T) {
	r, emit := newTestRouter()
	r.SetRecording(true)

	r.handleRawKeyDown(testKeys["shift"])

	if got := emit.byName("key-captured"); len(got) != 0 {
		t.Errorf("modifier-only press captured: %v", got)
	}
}

// ── rebinding ───────────────────────────────────────────────────────────────

func TestSetBinding_UpdatesCacheWithoutRestart(t *testing.T) {
	r, emit := newTestRouter()

	r.SetBinding(ActionStop, "s")

	r.handleRawKeyDown(testKeys["s"])
	got := emit.byName("global-shortcut")
	if len(got) != 1 || got[0] != string(ActionStop) {
		t.Fatalf("rebound key fired %v, want [stop]", got)
	}

	// The old default for stop no longer fires it.
	r.handleRawKeyDown(testKeys["f6"])
	if got := emit.byName("global-shortcut"); len(got) != 1 {
		t.Errorf("stale binding still live: %v", got)
	}
}

func TestSetBindings_RebindsListedActions(t *testing.T) {
	r, emit := newTestRouter()
	r.SetBindings(map[Action]string{ActionNext: "p"})

	r.handleRawKeyDown(testKeys["p"])
	got := emit.byName("global-shortcut")
	if len(got) != 1 || got[0] != string(ActionNext) {
		t.Fatalf("got %v, want [next]", got)
	}
}

// ── recording mode ──────────────────────────────────────────────────────────

func TestRecording_CapturesInsteadOfDispatching(t *testing.T) {
	r, emit := newTestRouter()
	r.SetRecording(true)

	r.handleRawKeyDown(testKeys["f5"])

	if got := emit.byName("global-shortcut"); len(got) != 0 {
		t.Errorf("recording mode dispatched an action: %v", got)
	}
	captured := emit.byName("key-captured")
	if len(captured) != 1 || captured[0] != "f5" {
		t.Fatalf("key-captured = %v, want [f5]", captured)
	}

	r.SetRecording(false)
	r.handleRawKeyDown(testKeys["f5"])
	if got := emit.byName("global-shortcut"); len(got) != 1 {
		t.Errorf("dispatch did not resume after recording: %v", got)
	}
}

// ── enable/disable ──────────────────────────────────────────────────────────

func TestDisabled_SuppressesDispatch(t *testing.T) {
	r, emit := newTestRouter()
	r.SetEnabled(false)

	r.handleRawKeyDown(testKeys["f5"])
	if got := emit.byName("global-shortcut"); len(got) != 0 {
		t.Errorf("disabled router dispatched %v", got)
	}

	r.SetEnabled(true)
	r.handleRawKeyDown(testKeys["f5"])
	if got := emit.byName("global-shortcut"); len(got) != 1 {
		t.Errorf("re-enabled router dispatched %v", got)
	}
}

func TestBindings_ReturnsCopy(t *testing.T) {
	r, _ := newTestRouter()
	b := r.Bindings()
	b[ActionStop] = "tampered"
	if r.Bindings()[ActionStop] == "tampered" {
		t.Error("Bindings leaked internal map")
	}
}
