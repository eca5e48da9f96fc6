// Package models holds the JSON request and response shapes of the
// command surface. Enum-valued fields cross the boundary as integers,
// matching the core's tagged types.
package models

import "midicompanion/core"

// LoadRequest carries a MIDI file to load. Data is standard
// base64-encoded file bytes.
type LoadRequest struct {
	Name string `json:"name"`
	Data []byte `json:"data" binding:"required"`
}

// LoadResponse summarizes the loaded song.
type LoadResponse struct {
	Duration  float64         `json:"duration"`
	BPM       uint16          `json:"bpm"`
	NoteCount uint32          `json:"note_count"`
	Density   float32         `json:"note_density"`
	Transpose int             `json:"transpose"`
	Tracks    []TrackResponse `json:"tracks"`
}

// TrackResponse is one per-track summary for band-mode selection.
type TrackResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	NoteCount uint32 `json:"note_count"`
	Channel   *uint8 `json:"channel,omitempty"`
}

// StateResponse is the PlaybackState projection on the wire.
type StateResponse struct {
	IsPlaying       bool    `json:"is_playing"`
	IsPaused        bool    `json:"is_paused"`
	CurrentPosition float64 `json:"current_position"`
	TotalDuration   float64 `json:"total_duration"`
	CurrentFile     string  `json:"current_file,omitempty"`
	LoopMode        bool    `json:"loop_mode"`
	NoteMode        uint8   `json:"note_mode"`
	KeyMode         uint8   `json:"key_mode"`
	OctaveShift     int8    `json:"octave_shift"`
	Speed           float64 `json:"speed"`
}

// StateFromCore converts the core snapshot to its wire shape.
func StateFromCore(s core.PlaybackState) StateResponse {
	return StateResponse{
		IsPlaying:       s.IsPlaying,
		IsPaused:        s.IsPaused,
		CurrentPosition: s.CurrentPosition,
		TotalDuration:   s.TotalDuration,
		CurrentFile:     s.CurrentFile,
		LoopMode:        s.LoopMode,
		NoteMode:        uint8(s.NoteMode),
		KeyMode:         uint8(s.KeyMode),
		OctaveShift:     s.OctaveShift,
		Speed:           s.Speed,
	}
}

// SeekRequest moves the playhead, in seconds.
type SeekRequest struct {
	Position float64 `json:"position"`
}

// SpeedRequest sets the tempo multiplier (clamped to 0.25..2.0).
type SpeedRequest struct {
	Speed float64 `json:"speed" binding:"required"`
}

// OctaveRequest sets the octave shift (clamped to -2..2).
type OctaveRequest struct {
	Shift int `json:"shift"`
}

// NoteModeRequest selects the mapping policy by numeric tag.
type NoteModeRequest struct {
	Mode uint8 `json:"mode"`
}

// KeyModeRequest selects the 21- or 36-key layout by numeric tag.
type KeyModeRequest struct {
	Mode uint8 `json:"mode"`
}

// LoopRequest toggles loop mode.
type LoopRequest struct {
	Enabled bool `json:"enabled"`
}

// BandFilterRequest configures multiplayer part-splitting. Mode is
// "split", "track", or "none".
type BandFilterRequest struct {
	Mode         string `json:"mode" binding:"required"`
	Slot         int    `json:"slot"`
	TotalPlayers int    `json:"total_players"`
	TrackID      *int   `json:"track_id"`
}

// KeyBindingRequest overrides one of the 21 key positions.
type KeyBindingRequest struct {
	Row int    `json:"row"`
	Col int    `json:"col"`
	Key string `json:"key" binding:"required"`
}

// KeyBindingsRequest sets the listed per-position overrides; positions
// not listed keep their current binding.
type KeyBindingsRequest struct {
	Bindings []KeyBindingRequest `json:"bindings" binding:"required"`
}

// KeywordsRequest replaces the user-editable window keyword list.
type KeywordsRequest struct {
	Keywords []string `json:"keywords" binding:"required"`
}

// ModifierDelayRequest sets the posted-mode modifier settle delay.
type ModifierDelayRequest struct {
	DelayMs uint64 `json:"delay_ms"`
}

// DeliveryBackendRequest selects the injection backend: 0 posted
// window message, 1 simulated global input.
type DeliveryBackendRequest struct {
	Backend uint8 `json:"backend"`
}

// LiveStartRequest connects to a MIDI input device by index.
type LiveStartRequest struct {
	DeviceIndex int `json:"device_index"`
}

// LiveTransposeRequest sets the live-mode transpose in semitones
// (clamped to -12..12).
type LiveTransposeRequest struct {
	Semitones int `json:"semitones"`
}

// HotkeyBindingsRequest rebinds transport actions to keys.
type HotkeyBindingsRequest struct {
	Bindings map[string]string `json:"bindings" binding:"required"`
}

// EnabledRequest is a generic on/off toggle body.
type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// PressKeyRequest is the "press key now" test hook body.
type PressKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

// VerifyRequest asks whether a byte sequence is a plausible MIDI file.
type VerifyRequest struct {
	Data []byte `json:"data" binding:"required"`
}

// VisualizerNoteResponse is one falling-note entry.
type VisualizerNoteResponse struct {
	MidiNote uint8  `json:"midi_note"`
	KeyIndex int    `json:"key_index"`
	TimeMs   uint64 `json:"time_ms"`
	TrackID  int    `json:"track_id"`
}
