//go:build !windows

package injector

// stubBackend is the non-target-platform surface: every operation
// no-ops silently and the focus/found queries answer true, which keeps
// the scheduler (and the test suite) running end-to-end.
type stubBackend struct{}

// NewPlatformBackend returns the native input backend for this build.
func NewPlatformBackend() Backend { return stubBackend{} }

func (stubBackend) Supported() bool { return false }

func (stubBackend) Toggle(string, bool, ...string) error { return nil }

func (stubBackend) ForegroundWindow() (Window, bool) { return Window{}, false }

func (stubBackend) ListWindows() []Window { return nil }
