package core

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DeliveryBackend selects how the Key Injector delivers synthetic
// keystrokes.
type DeliveryBackend uint8

const (
	DeliveryPostedWindowMessage DeliveryBackend = iota
	DeliverySimulatedGlobalInput
)

// KeyBindingPosition names one of the 21 natural-key slots a user can
// rebind (low_0..low_6, mid_0..mid_6, high_0..high_6).
type KeyBindingPosition struct {
	Row int // 0=low, 1=mid, 2=high
	Col int // 0..6
}

// MapperConfig is the live-mutable tuple described in the data model:
// note_mode, key_mode, octave_shift, speed, band_filter, seek_offset.
// Scalars are lock-free atomics; the two composite values sit behind a
// short-lived mutex.
type MapperConfig struct {
	noteMode    atomic.Uint32
	keyMode     atomic.Uint32
	octaveShift atomic.Int32
	speedX100   atomic.Uint32

	mu             sync.Mutex
	bandFilter     BandFilter
	seekOffsetSecs float64
}

func newMapperConfig() *MapperConfig {
	c := &MapperConfig{}
	c.speedX100.Store(100)
	return c
}

func (c *MapperConfig) NoteMode() NoteMode     { return NoteModeFromUint8(uint8(c.noteMode.Load())) }
func (c *MapperConfig) SetNoteMode(m NoteMode) { c.noteMode.Store(uint32(m)) }

func (c *MapperConfig) KeyMode() KeyMode     { return KeyModeFromUint8(uint8(c.keyMode.Load())) }
func (c *MapperConfig) SetKeyMode(m KeyMode) { c.keyMode.Store(uint32(m)) }

func (c *MapperConfig) OctaveShift() int8    { return int8(c.octaveShift.Load()) }
func (c *MapperConfig) SetOctaveShift(v int) { c.octaveShift.Store(int32(ClampOctaveShift(v))) }

func (c *MapperConfig) Speed() float64 { return float64(c.speedX100.Load()) / 100.0 }
func (c *MapperConfig) SetSpeed(v float64) {
	clamped := ClampSpeed(v)
	c.speedX100.Store(uint32(clamped*100 + 0.5))
}

func (c *MapperConfig) BandFilter() BandFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bandFilter
}

func (c *MapperConfig) SetBandFilter(f BandFilter) {
	c.mu.Lock()
	c.bandFilter = f
	c.mu.Unlock()
}

func (c *MapperConfig) ClearBandFilter() {
	c.mu.Lock()
	c.bandFilter = BandFilter{}
	c.mu.Unlock()
}

func (c *MapperConfig) SeekOffsetSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seekOffsetSecs
}

func (c *MapperConfig) SetSeekOffsetSeconds(v float64) {
	c.mu.Lock()
	c.seekOffsetSecs = v
	c.mu.Unlock()
}

// EffectiveTranspose combines a file's heuristic transpose with the
// live octave shift: effective_transpose = file_transpose + 12*octave_shift.
func (c *MapperConfig) EffectiveTranspose(fileTranspose int) int {
	return fileTranspose + 12*int(c.OctaveShift())
}

// Transport holds the scalar transport flags the scheduler and the
// command surface both touch.
type Transport struct {
	isPlaying atomic.Bool
	isPaused  atomic.Bool
	loopMode  atomic.Bool

	mu              sync.Mutex
	currentPosition float64
	totalDuration   float64
	currentFile     string
}

func (t *Transport) IsPlaying() bool    { return t.isPlaying.Load() }
func (t *Transport) SetPlaying(v bool)  { t.isPlaying.Store(v) }
func (t *Transport) IsPaused() bool     { return t.isPaused.Load() }
func (t *Transport) SetPaused(v bool)   { t.isPaused.Store(v) }
func (t *Transport) LoopMode() bool     { return t.loopMode.Load() }
func (t *Transport) SetLoopMode(v bool) { t.loopMode.Store(v) }

func (t *Transport) CurrentPosition() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentPosition
}

func (t *Transport) SetCurrentPosition(v float64) {
	t.mu.Lock()
	t.currentPosition = v
	t.mu.Unlock()
}

func (t *Transport) TotalDuration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalDuration
}

func (t *Transport) SetTotalDuration(v float64) {
	t.mu.Lock()
	t.totalDuration = v
	t.mu.Unlock()
}

func (t *Transport) CurrentFile() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentFile
}

func (t *Transport) SetCurrentFile(v string) {
	t.mu.Lock()
	t.currentFile = v
	t.mu.Unlock()
}

// InjectorSettings holds the Key Injector's live-mutable configuration:
// which delivery backend is active and the delay between a modifier
// key-down and the base key-down it guards.
type InjectorSettings struct {
	backend         atomic.Uint32
	modifierDelayMs atomic.Uint64

	mu       sync.RWMutex
	bindings map[KeyBindingPosition]string
	keywords []string
}

func newInjectorSettings() *InjectorSettings {
	s := &InjectorSettings{bindings: make(map[KeyBindingPosition]string)}
	s.modifierDelayMs.Store(2)
	s.backend.Store(uint32(DeliveryPostedWindowMessage))
	return s
}

func (s *InjectorSettings) Backend() DeliveryBackend     { return DeliveryBackend(s.backend.Load()) }
func (s *InjectorSettings) SetBackend(b DeliveryBackend) { s.backend.Store(uint32(b)) }

func (s *InjectorSettings) ModifierDelayMs() uint64     { return s.modifierDelayMs.Load() }
func (s *InjectorSettings) SetModifierDelayMs(v uint64) { s.modifierDelayMs.Store(v) }

// Binding returns the user-overridden key for a position, or ok=false
// if the position uses its default binding.
func (s *InjectorSettings) Binding(pos KeyBindingPosition) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.bindings[pos]
	return v, ok
}

func (s *InjectorSettings) SetBinding(pos KeyBindingPosition, key string) {
	s.mu.Lock()
	s.bindings[pos] = key
	s.mu.Unlock()
}

func (s *InjectorSettings) Keywords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.keywords))
	copy(out, s.keywords)
	return out
}

func (s *InjectorSettings) SetKeywords(kw []string) {
	s.mu.Lock()
	s.keywords = append([]string(nil), kw...)
	s.mu.Unlock()
}

// LiveInput holds the scalar state touched by the hardware MIDI bridge.
type LiveInput struct {
	isActive  atomic.Bool
	transpose atomic.Int32
}

func (l *LiveInput) IsActive() bool      { return l.isActive.Load() }
func (l *LiveInput) SetActive(v bool)    { l.isActive.Store(v) }
func (l *LiveInput) Transpose() int8     { return int8(l.transpose.Load()) }
func (l *LiveInput) SetTranspose(v int8) { l.transpose.Store(int32(v)) }

// Engine is the core context: the single process-owned value threading
// every subsystem's shared state through the program, constructed once
// in main and passed by reference everywhere. It replaces the several
// free-standing globals the mutable-state design would otherwise need.
type Engine struct {
	Log *zap.Logger

	Mapper    *MapperConfig
	Transport *Transport
	Injector  *InjectorSettings
	Live      *LiveInput

	mu       sync.Mutex
	midiData *MidiData
}

// NewEngine constructs a fresh core context. log must not be nil.
func NewEngine(log *zap.Logger) *Engine {
	return &Engine{
		Log:       log,
		Mapper:    newMapperConfig(),
		Transport: &Transport{},
		Injector:  newInjectorSettings(),
		Live:      &LiveInput{},
	}
}

// MidiData returns the currently loaded song, or nil if none is loaded.
func (e *Engine) MidiData() *MidiData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.midiData
}

// SetMidiData replaces the loaded song as a whole, atomic value —
// MidiData is immutable after construction; reloading replaces it
// wholesale rather than mutating it in place.
func (e *Engine) SetMidiData(d *MidiData) {
	e.mu.Lock()
	e.midiData = d
	e.mu.Unlock()
}
