// Package livemidi bridges a hardware MIDI controller into the same
// mapper and injector the file player uses. Ports come from gomidi's
// rtmidi driver; each inbound note-on becomes a 30ms tap.
package livemidi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters the rtmidi driver
	"go.uber.org/zap"

	"midicompanion/core"
	"midicompanion/mapper"
)

// ConnectionState is the bridge's lifecycle, reported to the GUI.
type ConnectionState uint8

const (
	StateNoDevices ConnectionState = iota
	StateDevicesAvailable
	StateConnecting
	StateConnected
	StateListening
	StateDisconnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateNoDevices:
		return "no_devices"
	case StateDevicesAvailable:
		return "devices_available"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateDisconnected:
		return "disconnected"
	default:
		return "error"
	}
}

// autoReleaseDelay is how long a live tap stays down before the helper
// goroutine releases it.
const autoReleaseDelay = 30 * time.Millisecond

var (
	ErrInvalidDeviceIndex = errors.New("invalid device index")
	ErrNoDevices          = errors.New("no MIDI input devices available")
)

// Dispatcher matches the injector's key surface.
type Dispatcher interface {
	KeyDown(key string)
	KeyUp(key string)
}

// Emitter matches the event bus.
type Emitter interface {
	Emit(event string, payload any)
}

// Port is the slice of drivers.In the bridge needs; tests substitute
// fakes.
type Port interface {
	String() string
	Open() error
	Close() error
	Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (stopFn func(), err error)
}

// Bridge owns at most one live connection.
type Bridge struct {
	eng  *core.Engine
	keys Dispatcher
	emit Emitter
	log  *zap.Logger

	// stopPlayback halts file playback before live mode starts; the
	// two are exclusive.
	stopPlayback func()

	// listPorts is swappable for tests; the default asks the
	// registered rtmidi driver.
	listPorts func() ([]Port, error)

	mu       sync.Mutex
	ports    []Port
	state    ConnectionState
	active   Port
	stopFn   func()
	deviceID int
}

// New wires the bridge. stopPlayback must not be nil.
func New(eng *core.Engine, keys Dispatcher, emit Emitter, stopPlayback func()) *Bridge {
	return &Bridge{
		eng:          eng,
		keys:         keys,
		emit:         emit,
		log:          eng.Log,
		stopPlayback: stopPlayback,
		listPorts:    systemPorts,
		state:        StateNoDevices,
	}
}

// SetPortLister replaces the port enumeration source. Used by tests
// and by embedders that bring their own driver.
func (b *Bridge) SetPortLister(fn func() ([]Port, error)) {
	b.mu.Lock()
	b.listPorts = fn
	b.mu.Unlock()
}

func systemPorts() ([]Port, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, err
	}
	out := make([]Port, len(ins))
	for i, in := range ins {
		out[i] = in
	}
	return out, nil
}

// Devices refreshes and lists the available MIDI input ports.
func (b *Bridge) Devices() []core.MidiDeviceInfo {
	b.mu.Lock()
	list := b.listPorts
	b.mu.Unlock()

	ports, err := list()
	if err != nil {
		b.log.Warn("MIDI port scan failed", zap.Error(err))
		ports = nil
	}

	b.mu.Lock()
	b.ports = ports
	if b.state == StateNoDevices || b.state == StateDevicesAvailable {
		if len(ports) == 0 {
			b.state = StateNoDevices
		} else {
			b.state = StateDevicesAvailable
		}
	}
	b.mu.Unlock()

	out := make([]core.MidiDeviceInfo, len(ports))
	for i, p := range ports {
		out[i] = core.MidiDeviceInfo{Index: i, Name: p.String()}
	}
	return out
}

// State returns the current lifecycle state.
func (b *Bridge) State() ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// StartListening connects to the device at index and begins routing
// its note-ons into key taps.
//
// Live input hard-wires the Closest mapping policy: the user-selected
// note_mode applies to file playback only. This mirrors the upstream
// behavior; the GUI's note-mode control intentionally has no effect
// here.
func (b *Bridge) StartListening(index int) (string, error) {
	// Exclusive with file playback.
	if b.eng.Transport.IsPlaying() {
		b.stopPlayback()
	}
	_ = b.StopListening()

	b.mu.Lock()
	if len(b.ports) == 0 {
		b.mu.Unlock()
		b.Devices()
		b.mu.Lock()
	}
	if len(b.ports) == 0 {
		b.state = StateNoDevices
		b.mu.Unlock()
		return "", ErrNoDevices
	}
	if index < 0 || index >= len(b.ports) {
		b.mu.Unlock()
		return "", ErrInvalidDeviceIndex
	}
	port := b.ports[index]
	b.state = StateConnecting
	b.deviceID = index
	b.mu.Unlock()

	if err := port.Open(); err != nil {
		b.setState(StateError)
		return "", fmt.Errorf("open MIDI device %q: %w", port.String(), err)
	}
	b.setState(StateConnected)

	stopFn, err := port.Listen(func(msg []byte, _ int32) {
		if !b.eng.Live.IsActive() {
			return
		}
		b.handleMessage(msg)
	}, drivers.ListenConfig{})
	if err != nil {
		_ = port.Close()
		b.setState(StateError)
		return "", fmt.Errorf("listen on MIDI device %q: %w", port.String(), err)
	}

	b.mu.Lock()
	b.active = port
	b.stopFn = stopFn
	b.state = StateListening
	b.mu.Unlock()
	b.eng.Live.SetActive(true)

	name := port.String()
	b.log.Info("live MIDI input connected", zap.String("device", name))
	b.emit.Emit("midi-device-connected", name)
	return name, nil
}

// StopListening tears down the active connection, if any.
func (b *Bridge) StopListening() error {
	b.eng.Live.SetActive(false)

	b.mu.Lock()
	stopFn := b.stopFn
	active := b.active
	b.stopFn = nil
	b.active = nil
	if active != nil {
		if len(b.ports) == 0 {
			b.state = StateNoDevices
		} else {
			b.state = StateDevicesAvailable
		}
	}
	b.mu.Unlock()

	if active == nil {
		return nil
	}
	if stopFn != nil {
		stopFn()
	}
	err := active.Close()
	b.emit.Emit("midi-device-disconnected", nil)
	return err
}

func (b *Bridge) setState(s ConnectionState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// handleMessage routes one raw MIDI message. It must return quickly:
// the driver callback budget is ~100µs, so the only work here is the
// mapper call, the key-down, and spawning the release helper.
func (b *Bridge) handleMessage(msg []byte) {
	if len(msg) < 3 {
		return
	}
	status, note, velocity := msg[0], msg[1], msg[2]

	// Note-on with velocity > 0; note-offs (and velocity-0 note-ons)
	// are ignored since the auto-release covers them.
	if status&0xF0 != 0x90 || velocity == 0 {
		return
	}

	transpose := int(b.eng.Live.Transpose()) + 12*int(b.eng.Mapper.OctaveShift())
	key := mapper.KeyFor(int(note), transpose, core.NoteModeClosest, b.eng.Mapper.KeyMode())

	b.keys.KeyDown(key)
	go func() {
		time.Sleep(autoReleaseDelay)
		b.keys.KeyUp(key)
	}()

	b.emit.Emit("live-note-event", core.LiveNoteEvent{
		MidiNote: note,
		Key:      key,
		NoteName: NoteName(note),
		Velocity: velocity,
	})
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName renders a MIDI note number as e.g. "C4" (60).
func NoteName(note uint8) string {
	octave := int(note)/12 - 1
	return fmt.Sprintf("%s%d", noteNames[note%12], octave)
}
