// Package hotkeys captures OS-level keyboard events for the transport
// controls. Two channels run in parallel: per-action hotkey
// registrations and a low-level keyboard hook matching raw keycodes,
// so a registration conflict with another application cannot silence
// all controls.
package hotkeys

import (
	"sync"
	"sync/atomic"

	hook "github.com/robotn/gohook"
	"go.uber.org/zap"
)

// Action names one transport control the router can fire.
type Action string

const (
	ActionPauseResume Action = "pause_resume"
	ActionStop        Action = "stop"
	ActionPrevious    Action = "previous"
	ActionNext        Action = "next"
	ActionModePrev    Action = "mode_prev"
	ActionModeNext    Action = "mode_next"
	ActionToggleMini  Action = "toggle_mini"
)

// Actions lists every routable action in display order.
var Actions = []Action{
	ActionPauseResume, ActionStop, ActionPrevious, ActionNext,
	ActionModePrev, ActionModeNext, ActionToggleMini,
}

// DefaultBindings seed the binding set before the user customizes it.
var DefaultBindings = map[Action]string{
	ActionPauseResume: "f5",
	ActionStop:        "f6",
	ActionPrevious:    "f7",
	ActionNext:        "f8",
	ActionModePrev:    "f9",
	ActionModeNext:    "f10",
	ActionToggleMini:  "f11",
}

// modifierKeys are filtered out of the raw hook stream: a bare
// modifier press is never an action and never a recordable binding.
var modifierKeys = map[string]bool{
	"shift": true, "ctrl": true, "control": true, "alt": true,
	"cmd": true, "command": true, "lshift": true, "rshift": true,
	"lctrl": true, "rctrl": true, "lalt": true, "ralt": true,
}

// Emitter receives global-shortcut and key-captured events.
type Emitter interface {
	Emit(event string, payload any)
}

// Router owns the binding set, the raw keycode cache, and the hook
// goroutine.
type Router struct {
	emit Emitter
	log  *zap.Logger

	mu       sync.RWMutex
	bindings map[Action]string
	// vkCache maps raw keycodes to actions; rebuilt atomically under
	// the write lock whenever a binding changes, so rebinding needs
	// no hook restart.
	vkCache map[uint16]Action

	recording atomic.Bool
	disabled  atomic.Bool
	running   atomic.Bool

	// keyCode and keyName wrap gohook's keycode tables; swappable in
	// tests, where no OS hook is available.
	keyCode func(string) uint16
	keyName func(uint16) string
}

// New builds a router with the default bindings.
func New(emit Emitter, log *zap.Logger) *Router {
	r := &Router{
		emit:     emit,
		log:      log,
		bindings: make(map[Action]string, len(DefaultBindings)),
		keyCode:  func(key string) uint16 { return hook.Keycode[key] },
		keyName:  hook.RawcodetoKeychar,
	}
	for a, k := range DefaultBindings {
		r.bindings[a] = k
	}
	r.rebuildCacheLocked()
	return r
}

// Bindings returns a copy of the current binding set.
func (r *Router) Bindings() map[Action]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Action]string, len(r.bindings))
	for a, k := range r.bindings {
		out[a] = k
	}
	return out
}

// SetBinding rebinds one action and refreshes the keycode cache in the
// same critical section.
func (r *Router) SetBinding(action Action, key string) {
	r.mu.Lock()
	r.bindings[action] = key
	r.rebuildCacheLocked()
	r.mu.Unlock()
	r.log.Info("hotkey rebound", zap.String("action", string(action)), zap.String("key", key))
}

// SetBindings rebinds every action in the map in one critical section;
// actions not in the map keep their current binding.
func (r *Router) SetBindings(bindings map[Action]string) {
	r.mu.Lock()
	for a, k := range bindings {
		r.bindings[a] = k
	}
	r.rebuildCacheLocked()
	r.mu.Unlock()
}

// rebuildCacheLocked recomputes the keycode->action table. Caller
// holds the write lock.
func (r *Router) rebuildCacheLocked() {
	cache := make(map[uint16]Action, len(r.bindings))
	for action, key := range r.bindings {
		if key == "" {
			continue
		}
		code := r.keyCode(key)
		if code == 0 {
			r.log.Warn("unmappable hotkey binding",
				zap.String("action", string(action)), zap.String("key", key))
			continue
		}
		cache[code] = action
	}
	r.vkCache = cache
}

// SetRecording toggles binding-capture mode: while on, the hook emits
// key-captured with the pressed key's canonical name and suppresses
// action dispatch.
func (r *Router) SetRecording(on bool) { r.recording.Store(on) }

// Recording reports whether capture mode is on.
func (r *Router) Recording() bool { return r.recording.Load() }

// SetEnabled turns action dispatch on or off; recording still works
// while disabled.
func (r *Router) SetEnabled(on bool) { r.disabled.Store(!on) }

// Enabled reports whether action dispatch is on.
func (r *Router) Enabled() bool { return !r.disabled.Load() }

// Start launches the hook goroutine, which owns the OS message loop.
// Safe to call once; subsequent calls are no-ops.
func (r *Router) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	go r.loop()
}

// Stop tears the hook down.
func (r *Router) Stop() {
	if r.running.CompareAndSwap(true, false) {
		hook.End()
	}
}

func (r *Router) loop() {
	// Channel 1: one registration slot per action. A failure to claim
	// a key is logged and non-fatal; channel 2 still serves the same
	// action.
	for action, key := range r.Bindings() {
		if key == "" {
			continue
		}
		a := action
		hook.Register(hook.KeyDown, []string{key}, func(hook.Event) {
			r.dispatch(a, "registered")
		})
	}

	// Channel 2: the low-level hook observing every key-down. An
	// empty key set matches all events of the kind.
	hook.Register(hook.KeyDown, []string{}, func(ev hook.Event) {
		r.handleRawKeyDown(ev.Rawcode)
	})

	s := hook.Start()
	<-hook.Process(s)

	// Process returning while the router is still marked running means
	// the OS ended the hook session, not Stop; restart the loop.
	if r.running.Load() {
		r.log.Warn("hotkey hook session ended, restarting message loop")
		go r.loop()
		return
	}
	r.log.Info("hotkey hook loop ended")
}

// handleRawKeyDown is the channel-2 matcher, factored out of the hook
// callback so it is testable without an OS hook.
func (r *Router) handleRawKeyDown(rawcode uint16) {
	name := r.keyName(rawcode)
	if name == "" || modifierKeys[name] {
		return
	}

	if r.recording.Load() {
		r.emit.Emit("key-captured", name)
		return
	}

	r.mu.RLock()
	action, ok := r.vkCache[rawcode]
	r.mu.RUnlock()
	if ok {
		r.dispatch(action, "hook")
	}
}

func (r *Router) dispatch(action Action, channel string) {
	if r.disabled.Load() || r.recording.Load() {
		return
	}
	r.log.Debug("global shortcut",
		zap.String("action", string(action)), zap.String("channel", channel))
	r.emit.Emit("global-shortcut", string(action))
}
