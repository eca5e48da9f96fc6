package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"midicompanion/collab"
	"midicompanion/core"
	"midicompanion/events"
	"midicompanion/hotkeys"
	"midicompanion/injector"
	"midicompanion/livemidi"
	"midicompanion/mapper"
	"midicompanion/player"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend satisfies injector.Backend with a scripted window list.
type fakeBackend struct {
	mu      sync.Mutex
	toggles []string
}

func (f *fakeBackend) Supported() bool { return true }

func (f *fakeBackend) Toggle(key string, down bool, _ ...string) error {
	f.mu.Lock()
	f.toggles = append(f.toggles, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) ForegroundWindow() (injector.Window, bool) {
	return injector.Window{PID: 1, Title: "Where Winds Meet"}, true
}

func (f *fakeBackend) ListWindows() []injector.Window {
	return []injector.Window{{PID: 1, Title: "Where Winds Meet"}}
}

type harness struct {
	api     *API
	router  *gin.Engine
	eng     *core.Engine
	backend *fakeBackend
	store   *collab.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	eng := core.NewEngine(zap.NewNop())
	bus := events.NewBus(eng.Log)
	backend := &fakeBackend{}
	keys := injector.New(eng.Injector, backend, eng.Log)
	p := player.New(eng, keys, bus, mapper.KeyFor)
	bridge := livemidi.New(eng, keys, bus, p.Stop)
	bridge.SetPortLister(func() ([]livemidi.Port, error) { return nil, nil })
	hk := hotkeys.New(bus, eng.Log)
	store := collab.NewMemoryStore()

	api := New(eng, p, keys, bridge, hk, bus, store, collab.NopDiscovery{}, collab.StaticVersion("1.0.0"))
	r := gin.New()
	api.Register(r)

	t.Cleanup(p.Stop)
	return &harness{api: api, router: r, eng: eng, backend: backend, store: store}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("could not decode body %q: %v", w.Body, err)
	}
	return out
}

// ── transport ───────────────────────────────────────────────────────────────

func TestStart_WithoutLoadedFile(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/playback/start", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("start without a file = %d, want 400", w.Code)
	}
}

func TestState_DefaultSnapshot(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "GET", "/api/playback/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state = %d, want 200", w.Code)
	}
	resp := decode(t, w)
	if resp["is_playing"] != false || resp["speed"] != 1.0 {
		t.Errorf("unexpected default state: %v", resp)
	}
}

func TestStopAndPause_AreIdempotentWhileStopped(t *testing.T) {
	h := newHarness(t)
	if w := h.do(t, "POST", "/api/playback/stop", nil); w.Code != http.StatusOK {
		t.Errorf("stop while stopped = %d, want 200", w.Code)
	}
	if w := h.do(t, "POST", "/api/playback/pause", nil); w.Code != http.StatusOK {
		t.Errorf("pause while stopped = %d, want 200", w.Code)
	}
}

func TestSetLoop(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/playback/loop", map[string]any{"enabled": true})
	if w.Code != http.StatusOK {
		t.Fatalf("loop = %d, want 200", w.Code)
	}
	if !h.eng.Transport.LoopMode() {
		t.Error("loop mode not set")
	}
}

// ── clamped settings ────────────────────────────────────────────────────────

func TestSetSpeed_Clamps(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		in   float64
		want float64
	}{
		{1.5, 1.5}, {0.1, 0.25}, {5.0, 2.0}, {0.333, 0.33},
	}
	for _, tc := range cases {
		w := h.do(t, "POST", "/api/config/speed", map[string]any{"speed": tc.in})
		if w.Code != http.StatusOK {
			t.Fatalf("speed %f = %d, want 200; body %s", tc.in, w.Code, w.Body)
		}
		if got := decode(t, w)["speed"].(float64); got != tc.want {
			t.Errorf("speed %f clamped to %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestSetOctave_Clamps(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		in   int
		want float64
	}{
		{1, 1}, {-7, -2}, {9, 2}, {0, 0},
	}
	for _, tc := range cases {
		w := h.do(t, "POST", "/api/config/octave", map[string]any{"shift": tc.in})
		if w.Code != http.StatusOK {
			t.Fatalf("octave %d = %d, want 200", tc.in, w.Code)
		}
		if got := decode(t, w)["octave_shift"].(float64); got != tc.want {
			t.Errorf("octave %d clamped to %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetNoteMode_OutOfRangeFallsBackToClosest(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/config/note-mode", map[string]any{"mode": 200})
	if w.Code != http.StatusOK {
		t.Fatalf("note-mode = %d, want 200", w.Code)
	}
	if got := decode(t, w)["name"]; got != "closest" {
		t.Errorf("out-of-range mode mapped to %v, want closest", got)
	}
}

// ── band filter ─────────────────────────────────────────────────────────────

func TestSetBandFilter(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, "POST", "/api/config/band-filter",
		map[string]any{"mode": "split", "slot": 1, "total_players": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("split filter = %d, want 200; body %s", w.Code, w.Body)
	}
	if f := h.eng.Mapper.BandFilter(); f.Mode != core.BandFilterSplit || f.Slot != 1 || f.TotalPlayers != 3 {
		t.Errorf("filter = %+v", f)
	}

	trackID := 2
	w = h.do(t, "POST", "/api/config/band-filter",
		map[string]any{"mode": "track", "track_id": trackID})
	if w.Code != http.StatusOK {
		t.Fatalf("track filter = %d, want 200", w.Code)
	}
	if f := h.eng.Mapper.BandFilter(); f.Mode != core.BandFilterTrack || f.TrackID != 2 {
		t.Errorf("filter = %+v", f)
	}

	w = h.do(t, "POST", "/api/config/band-filter", map[string]any{"mode": "none"})
	if w.Code != http.StatusOK {
		t.Fatalf("clear filter = %d, want 200", w.Code)
	}
	if f := h.eng.Mapper.BandFilter(); f.Mode != core.BandFilterNone {
		t.Errorf("filter not cleared: %+v", f)
	}
}

func TestSetBandFilter_Invalid(t *testing.T) {
	h := newHarness(t)
	cases := []map[string]any{
		{"mode": "split", "slot": 3, "total_players": 3},
		{"mode": "split", "slot": -1, "total_players": 3},
		{"mode": "track"},
		{"mode": "orchestra"},
	}
	for _, body := range cases {
		if w := h.do(t, "POST", "/api/config/band-filter", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %v = %d, want 400", body, w.Code)
		}
	}
}

// ── injector settings ───────────────────────────────────────────────────────

func TestSetKeyBindings(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/config/key-bindings", map[string]any{
		"bindings": []map[string]any{{"row": 0, "col": 0, "key": "y"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("key-bindings = %d, want 200; body %s", w.Code, w.Body)
	}
	if got, ok := h.eng.Injector.Binding(core.KeyBindingPosition{Row: 0, Col: 0}); !ok || got != "y" {
		t.Errorf("binding = %q/%v, want y", got, ok)
	}

	w = h.do(t, "POST", "/api/config/key-bindings", map[string]any{
		"bindings": []map[string]any{{"row": 5, "col": 0, "key": "y"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-range binding = %d, want 400", w.Code)
	}
}

func TestSetWindowKeywordsPersists(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/config/window-keywords",
		map[string]any{"keywords": []string{"moonlight"}})
	if w.Code != http.StatusOK {
		t.Fatalf("keywords = %d, want 200", w.Code)
	}
	if kw := h.eng.Injector.Keywords(); len(kw) != 1 || kw[0] != "moonlight" {
		t.Errorf("keywords = %v", kw)
	}
	if _, ok := h.store.Read("window_keywords"); !ok {
		t.Error("keywords not persisted to the settings store")
	}
}

func TestSetDeliveryBackend(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/config/delivery-backend", map[string]any{"backend": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("backend = %d, want 200", w.Code)
	}
	if h.eng.Injector.Backend() != core.DeliverySimulatedGlobalInput {
		t.Error("backend not switched")
	}
}

// ── window / keys / version ─────────────────────────────────────────────────

func TestWindowStatus(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "GET", "/api/window/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("window status = %d, want 200", w.Code)
	}
	resp := decode(t, w)
	if resp["found"] != true || resp["focused"] != true {
		t.Errorf("status = %v, want found+focused with the game foregrounded", resp)
	}
}

func TestPressKey(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/keys/press", map[string]any{"key": "a"})
	if w.Code != http.StatusOK {
		t.Fatalf("press = %d, want 200", w.Code)
	}
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	if len(h.backend.toggles) != 2 {
		t.Errorf("press dispatched %v, want a down and an up", h.backend.toggles)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "GET", "/api/version", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("version = %d, want 200", w.Code)
	}
	if got := decode(t, w)["latest"]; got != "1.0.0" {
		t.Errorf("latest = %v", got)
	}
}

// ── hotkeys ─────────────────────────────────────────────────────────────────

func TestHotkeyBindingsRoundTrip(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/hotkeys/bindings",
		map[string]any{"bindings": map[string]string{"stop": "f2"}})
	if w.Code != http.StatusOK {
		t.Fatalf("set bindings = %d, want 200; body %s", w.Code, w.Body)
	}

	w = h.do(t, "GET", "/api/hotkeys/bindings", nil)
	resp := decode(t, w)
	bindings := resp["bindings"].(map[string]interface{})
	if bindings["stop"] != "f2" {
		t.Errorf("bindings = %v", bindings)
	}
}

func TestHotkeyBindings_UnknownAction(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/hotkeys/bindings",
		map[string]any{"bindings": map[string]string{"self_destruct": "f2"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action = %d, want 400", w.Code)
	}
}

// ── live input ──────────────────────────────────────────────────────────────

func TestLiveDevices_EmptyList(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "GET", "/api/live/devices", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("devices = %d, want 200", w.Code)
	}
	if got := decode(t, w)["state"]; got != "no_devices" {
		t.Errorf("state = %v, want no_devices", got)
	}
}

func TestLiveStart_NoDevices(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/live/start", map[string]any{"device_index": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("live start without devices = %d, want 400", w.Code)
	}
}

func TestLiveTranspose_Clamps(t *testing.T) {
	h := newHarness(t)
	w := h.do(t, "POST", "/api/live/transpose", map[string]any{"semitones": 40})
	if w.Code != http.StatusOK {
		t.Fatalf("transpose = %d, want 200", w.Code)
	}
	if got := decode(t, w)["transpose"].(float64); got != 12 {
		t.Errorf("transpose clamped to %v, want 12", got)
	}
	if h.eng.Live.Transpose() != 12 {
		t.Errorf("engine transpose = %d", h.eng.Live.Transpose())
	}
}

// base64Body is a convenience for endpoints taking []byte JSON fields.
func base64Body(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
