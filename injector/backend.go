// Package injector converts key-name strings into synthetic key
// presses delivered to the game window. All OS-level calls are
// confined to this package's platform backends; callers only see
// strings.
package injector

// Window identifies one top-level OS window during enumeration.
type Window struct {
	PID   int32
	Title string
}

// Backend is the OS surface the injector drives. The windows build
// implements it over robotgo; every other platform gets a stub whose
// Supported reports false, which turns all injector operations into
// silent no-ops while keeping the scheduler running end-to-end.
type Backend interface {
	// Supported reports whether this platform can deliver input at
	// all.
	Supported() bool

	// Toggle presses (down=true) or releases one key. Modifiers
	// passed alongside are delivered in the same batch with no
	// intra-combo delay.
	Toggle(key string, down bool, mods ...string) error

	// ForegroundWindow returns the currently focused window.
	ForegroundWindow() (Window, bool)

	// ListWindows enumerates top-level windows.
	ListWindows() []Window
}
