//go:build windows

package injector

import (
	"github.com/go-vgo/robotgo"
)

// robotgoBackend delivers input through robotgo. Key toggles with
// modifiers go out as a single call so the modifier-down and key-down
// land in one input batch.
type robotgoBackend struct{}

// NewPlatformBackend returns the native input backend for this build.
func NewPlatformBackend() Backend { return robotgoBackend{} }

func (robotgoBackend) Supported() bool { return true }

func (robotgoBackend) Toggle(key string, down bool, mods ...string) error {
	state := "down"
	if !down {
		state = "up"
	}
	args := make([]interface{}, 0, len(mods)+1)
	args = append(args, state)
	for _, m := range mods {
		args = append(args, m)
	}
	return robotgo.KeyToggle(key, args...)
}

func (robotgoBackend) ForegroundWindow() (Window, bool) {
	pid := robotgo.GetPid()
	if pid == 0 {
		return Window{}, false
	}
	return Window{PID: pid, Title: robotgo.GetTitle(pid)}, true
}

func (robotgoBackend) ListWindows() []Window {
	pids, err := robotgo.Pids()
	if err != nil {
		return nil
	}
	out := make([]Window, 0, len(pids))
	for _, pid := range pids {
		title := robotgo.GetTitle(pid)
		if title == "" {
			continue
		}
		out = append(out, Window{PID: pid, Title: title})
	}
	return out
}
