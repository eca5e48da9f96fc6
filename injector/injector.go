package injector

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"midicompanion/core"
	"midicompanion/mapper"
)

// punctuationBases are the named punctuation aliases the key grammar
// accepts beyond a-z and 0-9.
var punctuationBases = map[string]bool{";": true, ",": true, ".": true, "/": true}

// parsedKey is the result of running a key name through the grammar
// `key := [modifier "+"] base`.
type parsedKey struct {
	mod  string // "" when unmodified
	base string
}

// parseKey validates a key name against the grammar. Parsing is
// case-insensitive; modifier is one of shift/ctrl.
func parseKey(name string) (parsedKey, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	var p parsedKey
	if i := strings.IndexByte(n, '+'); i >= 0 {
		p.mod = n[:i]
		p.base = n[i+1:]
		if p.mod != "shift" && p.mod != "ctrl" {
			return parsedKey{}, false
		}
	} else {
		p.base = n
	}
	if len(p.base) != 1 {
		return parsedKey{}, false
	}
	c := p.base[0]
	if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || punctuationBases[p.base] {
		return p, true
	}
	return parsedKey{}, false
}

// Injector delivers parsed key names through one of two backends:
// posted-window-message semantics (never leaks outside the target
// window) or simulated global input gated by a foreground-focus check.
type Injector struct {
	settings *core.InjectorSettings
	backend  Backend
	locator  *Locator
	log      *zap.Logger

	mu           sync.Mutex
	pressed      map[string]int // delivered base key -> outstanding downs
	modifierRefs map[string]int
}

// New wires an injector over an explicit backend; tests substitute a
// fake, main passes NewPlatformBackend().
func New(settings *core.InjectorSettings, backend Backend, log *zap.Logger) *Injector {
	return &Injector{
		settings:     settings,
		backend:      backend,
		locator:      NewLocator(settings, backend, log),
		log:          log,
		pressed:      make(map[string]int),
		modifierRefs: make(map[string]int),
	}
}

// Locator exposes the window locator for the found/focused queries on
// the command surface.
func (in *Injector) Locator() *Locator { return in.locator }

// rewriteBase routes a base key through the user's per-position
// binding overrides.
func (in *Injector) rewriteBase(base string) string {
	pos, ok := mapper.PositionOfDefaultKey(base)
	if !ok {
		return base
	}
	if custom, ok := in.settings.Binding(pos); ok && custom != "" {
		return strings.ToLower(custom)
	}
	return base
}

// gate decides whether a stroke may be delivered right now. Both
// outcomes are silent; a dropped stroke is not an error.
func (in *Injector) gate() bool {
	switch in.settings.Backend() {
	case core.DeliverySimulatedGlobalInput:
		// Global input reaches whatever is focused, so the focus
		// check runs before every injection.
		fg, ok := in.backend.ForegroundWindow()
		return ok && in.locator.MatchesTarget(fg.Title)
	default:
		// Posted-message semantics: deliver only when the located
		// window is also the foreground one.
		w, ok := in.locator.Find()
		if !ok {
			return false
		}
		fg, ok := in.backend.ForegroundWindow()
		return ok && fg.PID == w.PID
	}
}

// KeyDown presses the named key (with modifier, if any). Unknown key
// names and non-target platforms are silent no-ops.
func (in *Injector) KeyDown(name string) {
	p, ok := parseKey(name)
	if !ok {
		in.log.Debug("unparseable key name", zap.String("key", name))
		return
	}
	p.base = in.rewriteBase(p.base)

	if !in.backend.Supported() || !in.gate() {
		return
	}

	if p.mod == "" {
		if err := in.backend.Toggle(p.base, true); err != nil {
			in.log.Warn("key down failed", zap.String("key", p.base), zap.Error(err))
			return
		}
	} else if in.settings.Backend() == core.DeliverySimulatedGlobalInput {
		// One atomic modifier+key batch.
		if err := in.backend.Toggle(p.base, true, p.mod); err != nil {
			in.log.Warn("key down failed", zap.String("key", p.base), zap.Error(err))
			return
		}
	} else {
		// Posted path: modifier-down, optional settle delay, key-down.
		if err := in.backend.Toggle(p.mod, true); err != nil {
			in.log.Warn("modifier down failed", zap.String("mod", p.mod), zap.Error(err))
			return
		}
		if d := in.settings.ModifierDelayMs(); d > 0 {
			time.Sleep(time.Duration(d) * time.Millisecond)
		}
		if err := in.backend.Toggle(p.base, true); err != nil {
			in.log.Warn("key down failed", zap.String("key", p.base), zap.Error(err))
		}
	}

	in.mu.Lock()
	in.pressed[p.base]++
	if p.mod != "" {
		in.modifierRefs[p.mod]++
	}
	in.mu.Unlock()
}

// KeyUp releases the named key, then its modifier.
func (in *Injector) KeyUp(name string) {
	p, ok := parseKey(name)
	if !ok {
		return
	}
	p.base = in.rewriteBase(p.base)

	if in.backend.Supported() && in.gate() {
		if p.mod != "" && in.settings.Backend() == core.DeliverySimulatedGlobalInput {
			if err := in.backend.Toggle(p.base, false, p.mod); err != nil {
				in.log.Warn("key up failed", zap.String("key", p.base), zap.Error(err))
			}
		} else {
			if err := in.backend.Toggle(p.base, false); err != nil {
				in.log.Warn("key up failed", zap.String("key", p.base), zap.Error(err))
			}
			if p.mod != "" {
				if err := in.backend.Toggle(p.mod, false); err != nil {
					in.log.Warn("modifier up failed", zap.String("mod", p.mod), zap.Error(err))
				}
			}
		}
	}

	in.mu.Lock()
	if in.pressed[p.base] > 0 {
		in.pressed[p.base]--
	}
	if p.mod != "" && in.modifierRefs[p.mod] > 0 {
		in.modifierRefs[p.mod]--
	}
	in.mu.Unlock()
}

// PressKey is the command surface's test hook: an immediate tap.
func (in *Injector) PressKey(name string) {
	in.KeyDown(name)
	in.KeyUp(name)
}

// ReleaseAll issues a key-up for every still-pressed key and zeroes
// the modifier reference counts. With tap semantics the pressed set is
// normally empty; this pass is the scheduler's exit guarantee.
func (in *Injector) ReleaseAll() {
	in.mu.Lock()
	keys := make([]string, 0, len(in.pressed))
	for k, n := range in.pressed {
		for i := 0; i < n; i++ {
			keys = append(keys, k)
		}
	}
	mods := make([]string, 0, len(in.modifierRefs))
	for m, n := range in.modifierRefs {
		if n > 0 {
			mods = append(mods, m)
		}
	}
	in.pressed = make(map[string]int)
	in.modifierRefs = make(map[string]int)
	in.mu.Unlock()

	if !in.backend.Supported() {
		return
	}
	for _, k := range keys {
		_ = in.backend.Toggle(k, false)
	}
	for _, m := range mods {
		_ = in.backend.Toggle(m, false)
	}
}

// IsGameWindowFound answers the command surface's window probe. On
// non-target platforms it reports true so the rest of the pipeline
// stays exercisable.
func (in *Injector) IsGameWindowFound() bool {
	if !in.backend.Supported() {
		return true
	}
	_, ok := in.locator.Find()
	return ok
}

// IsGameFocused reports whether the foreground window is the game.
func (in *Injector) IsGameFocused() bool {
	if !in.backend.Supported() {
		return true
	}
	fg, ok := in.backend.ForegroundWindow()
	return ok && in.locator.MatchesTarget(fg.Title)
}
