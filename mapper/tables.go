// Package mapper implements the pure pitch-to-key mapping function
// described as the Note-Policy Mapper: (midi_note, transpose, note_mode,
// key_mode) -> key_name.
package mapper

import "midicompanion/core"

// rootNote is MIDI note 60 (C4), the mapper's reference pitch.
const rootNote = 60

// lowKeys, midKeys, highKeys are the three rows of the 21-key layout's
// default bindings.
var (
	lowKeys  = [7]string{"z", "x", "c", "v", "b", "n", "m"}
	midKeys  = [7]string{"a", "s", "d", "f", "g", "h", "j"}
	highKeys = [7]string{"q", "w", "e", "r", "t", "y", "u"}
)

// allKeys21 is the 21-key layout flattened low, mid, high.
var allKeys21 = [21]string{
	"z", "x", "c", "v", "b", "n", "m",
	"a", "s", "d", "f", "g", "h", "j",
	"q", "w", "e", "r", "t", "y", "u",
}

// instrumentNotes is the fixed 21-pitch diatonic set the instrument can
// produce: C3..B3, C4..B4, C5..B5.
var instrumentNotes = [21]int{
	48, 50, 52, 53, 55, 57, 59,
	60, 62, 64, 65, 67, 69, 71,
	72, 74, 76, 77, 79, 81, 83,
}

// keyRow picks the default 21-key row for an octave index (0=low,
// 1=mid, 2=high) and a degree index (0..6).
func keyRow(octave, idx int) string {
	switch octave {
	case 0:
		return lowKeys[idx]
	case 1:
		return midKeys[idx]
	default:
		return highKeys[idx]
	}
}

// normalizeIntoRange repeatedly shifts by an octave until the note
// lies within the instrument's natural-pitch range [48, 83].
func normalizeIntoRange(note int) int {
	lo := instrumentNotes[0]
	hi := instrumentNotes[20]
	for note < lo {
		note += 12
	}
	for note > hi {
		note -= 12
	}
	return note
}

// mod12 is Euclidean modulo 12 — always in [0, 11] even for negative
// input, matching the source's `((x % 12) + 12) % 12` idiom.
func mod12(x int) int {
	m := x % 12
	if m < 0 {
		m += 12
	}
	return m
}

// octave36 buckets a target pitch into 0 (<60), 1 ([60,72)), or 2
// (>=72) for 36-key mode.
func octave36(target int) int {
	switch {
	case target < 60:
		return 0
	case target < 72:
		return 1
	default:
		return 2
	}
}

// octaveWide buckets a target pitch using the wider boundaries shared
// by 21-key Wide and 36-key Wide.
func octaveWide(target int) int {
	switch {
	case target < 54:
		return 0
	case target < 66:
		return 1
	default:
		return 2
	}
}

// chromaticDegree folds 12 semitones to 7 natural-key degrees.
func chromaticDegree(semitone int) int {
	switch semitone {
	case 0, 1:
		return 0
	case 2:
		return 1
	case 3, 4:
		return 2
	case 5, 6:
		return 3
	case 7, 8:
		return 4
	case 9:
		return 5
	default: // 10, 11
		return 6
	}
}

// pentatonicDegree folds 12 semitones to the 5 pentatonic degrees
// {do,re,mi,so,la}, expressed as indices into the 7-key row.
func pentatonicDegree(semitone int) int {
	switch semitone {
	case 0, 1:
		return 0
	case 2, 3:
		return 1
	case 4, 5, 6:
		return 2
	case 7, 8:
		return 4
	default: // 9, 10, 11
		return 5
	}
}

// wideDegree is the semitone->degree table used by Wide mode.
func wideDegree(semitone int) int {
	switch semitone {
	case 0:
		return 0
	case 1, 2:
		return 1
	case 3, 4:
		return 2
	case 5:
		return 3
	case 6, 7:
		return 4
	case 8, 9:
		return 5
	default: // 10, 11
		return 6
	}
}

// majorScaleDegree snaps a semitone to the nearest major-scale
// semitone, used by 36-key Quantize.
func majorScaleDegree(semitone int) int {
	switch semitone {
	case 0, 1:
		return 0
	case 2, 3:
		return 2
	case 4:
		return 4
	case 5, 6:
		return 5
	case 7, 8:
		return 7
	case 9, 10:
		return 9
	default: // 11
		return 11
	}
}

// semitone36 maps a (semitone, octave) pair to its 36-key combo
// string. Naturals produce a bare key; accidentals produce a
// shift+/ctrl+ combo. This table must be reproduced exactly.
func semitone36(semitone, octave int) string {
	switch semitone {
	case 0:
		return keyRow(octave, 0) // C
	case 2:
		return keyRow(octave, 1) // D
	case 4:
		return keyRow(octave, 2) // E
	case 5:
		return keyRow(octave, 3) // F
	case 7:
		return keyRow(octave, 4) // G
	case 9:
		return keyRow(octave, 5) // A
	case 11:
		return keyRow(octave, 6) // B
	case 1:
		return "shift+" + keyRow(octave, 0) // C#
	case 3:
		return "ctrl+" + keyRow(octave, 2) // D#/Eb
	case 6:
		return "shift+" + keyRow(octave, 3) // F#
	case 8:
		return "shift+" + keyRow(octave, 4) // G#
	case 10:
		return "ctrl+" + keyRow(octave, 6) // A#/Bb
	default:
		return midKeys[0] // unreachable for semitone in [0,11]; fallback "a"
	}
}

// keyIndex21 returns the 0..20 index a Closest-mapped target lands on,
// used to keep the visualizer's key-index projection (core.VisualizerNote)
// in sync with the key string the mapper actually emits.
func keyIndex21(target int) int {
	normalized := normalizeIntoRange(target)
	bestIdx := 0
	bestDist := abs(instrumentNotes[0] - normalized)
	for i, n := range instrumentNotes {
		d := abs(n - normalized)
		if d < bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	return bestIdx
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// DefaultKeyAt returns the default binding for one of the 21 key
// positions, or ok=false for an out-of-range position.
func DefaultKeyAt(pos core.KeyBindingPosition) (string, bool) {
	if pos.Row < 0 || pos.Row > 2 || pos.Col < 0 || pos.Col > 6 {
		return "", false
	}
	return keyRow(pos.Row, pos.Col), true
}

// PositionOfDefaultKey finds the key position whose default binding is
// the given base key. Used by the injector to route a mapped key name
// through the user's per-position overrides.
func PositionOfDefaultKey(key string) (core.KeyBindingPosition, bool) {
	for i, k := range allKeys21 {
		if k == key {
			return core.KeyBindingPosition{Row: i / 7, Col: i % 7}, true
		}
	}
	return core.KeyBindingPosition{}, false
}
