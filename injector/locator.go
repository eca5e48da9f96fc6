package injector

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"midicompanion/core"
)

// windowCacheTTL bounds how long a located window handle stays trusted
// before the enumeration is walked afresh.
const windowCacheTTL = 5 * time.Second

// builtinKeywords seed the target-window match. The user-editable list
// in InjectorSettings extends this set at runtime.
var builtinKeywords = []string{
	"where winds meet", "wwm", "wwm.exe",
	"geforce now", "geforcenow", "nvidia geforce",
}

// excludedTitles are case-insensitive substrings that must never
// receive keys: our own overlay, common chat and editor apps, and
// every major browser (whose tab titles may mention the game).
var excludedTitles = []string{
	"midi companion", "midi player", "overlay",
	"discord", "telegram", "slack", "teams",
	"notepad", "visual studio", "vscode",
	"chrome", "firefox", "edge", "opera", "brave", "safari",
}

// Locator finds the game window by title keyword and caches the handle
// for windowCacheTTL.
type Locator struct {
	settings *core.InjectorSettings
	backend  Backend
	log      *zap.Logger

	mu          sync.Mutex
	cached      Window
	hasCached   bool
	lastRefresh time.Time
	// loggedMissing makes the not-found transition log exactly once
	// instead of once per dropped keystroke.
	loggedMissing bool
}

// NewLocator builds a locator over the given backend.
func NewLocator(settings *core.InjectorSettings, backend Backend, log *zap.Logger) *Locator {
	return &Locator{settings: settings, backend: backend, log: log}
}

// MatchesTarget reports whether a window title identifies the game:
// not on the exclusion list, and containing one of the built-in or
// user-added keywords.
func (l *Locator) MatchesTarget(title string) bool {
	t := strings.ToLower(title)
	if t == "" {
		return false
	}
	for _, ex := range excludedTitles {
		if strings.Contains(t, ex) {
			return false
		}
	}
	for _, kw := range builtinKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	for _, kw := range l.settings.Keywords() {
		if strings.Contains(t, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Find returns the target window, consulting the cache first. The
// first enumeration match wins; a search that yields nothing
// invalidates the cache.
func (l *Locator) Find() (Window, bool) {
	if !l.backend.Supported() {
		return Window{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasCached && time.Since(l.lastRefresh) < windowCacheTTL {
		return l.cached, true
	}

	for _, w := range l.backend.ListWindows() {
		if l.MatchesTarget(w.Title) {
			l.cached = w
			l.hasCached = true
			l.lastRefresh = time.Now()
			l.loggedMissing = false
			return w, true
		}
	}

	if l.hasCached || !l.loggedMissing {
		l.log.Warn("target window not found", zap.Strings("keywords", l.settings.Keywords()))
		l.loggedMissing = true
	}
	l.hasCached = false
	return Window{}, false
}

// Invalidate drops the cached handle so the next Find walks the
// enumeration afresh.
func (l *Locator) Invalidate() {
	l.mu.Lock()
	l.hasCached = false
	l.mu.Unlock()
}
