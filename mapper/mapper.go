package mapper

import "midicompanion/core"

// pyInstrumentNotes and pyKeys are a frozen duplicate of the 21-pitch
// table, kept verbatim as the Python compatibility fallback (NoteMode
// Python) independent of any future change to instrumentNotes.
var pyInstrumentNotes = [21]int{
	48, 50, 52, 53, 55, 57, 59,
	60, 62, 64, 65, 67, 69, 71,
	72, 74, 76, 77, 79, 81, 83,
}

var pyKeys = [21]string{
	"z", "x", "c", "v", "b", "n", "m",
	"a", "s", "d", "f", "g", "h", "j",
	"q", "w", "e", "r", "t", "y", "u",
}

// KeyFor is the pure Note-Policy Mapper: (midi_note, effective_transpose,
// note_mode, key_mode) -> key_name. It never returns an empty string and
// performs no heap allocation beyond the returned string itself, so it
// is safe to call from both the scheduler's hot path and the live-input
// callback.
func KeyFor(note int, transpose int, mode core.NoteMode, layout core.KeyMode) string {
	if layout == core.KeyMode36 {
		return keyFor36(note, transpose, mode)
	}
	return keyFor21(note, transpose, mode)
}

func keyFor21(note, transpose int, mode core.NoteMode) string {
	switch mode {
	case core.NoteModeClosest:
		return closest21(note, transpose)
	case core.NoteModeQuantize:
		// 21-key Quantize is a direct alias of Closest — not yet
		// differentiated upstream, so this delegates rather than
		// duplicating the body.
		return closest21(note, transpose)
	case core.NoteModeTransposeOnly:
		return transposeOnly21(note, transpose)
	case core.NoteModePentatonic:
		return pentatonic21(note, transpose)
	case core.NoteModeChromatic:
		return chromatic21(note, transpose)
	case core.NoteModeRaw:
		return raw21(note)
	case core.NoteModePython:
		return python(note, transpose)
	case core.NoteModeWide:
		return wide21(note, transpose)
	case core.NoteModeSharps:
		// 36-key-only mode; 21-key falls back to Closest.
		return closest21(note, transpose)
	default:
		return closest21(note, transpose)
	}
}

func keyFor36(note, transpose int, mode core.NoteMode) string {
	switch mode {
	case core.NoteModeClosest:
		return closest36(note, transpose)
	case core.NoteModeQuantize:
		return quantize36(note, transpose)
	case core.NoteModeTransposeOnly:
		return closest36(note, transpose) // identical semitone/octave derivation as Closest in 36-key
	case core.NoteModePentatonic:
		return pentatonic36(note, transpose)
	case core.NoteModeChromatic:
		return closest36(note, transpose) // full chromatic mapping, same table as Closest
	case core.NoteModeRaw:
		return raw36(note)
	case core.NoteModePython:
		return python(note, transpose)
	case core.NoteModeWide:
		return wide36(note, transpose)
	case core.NoteModeSharps:
		return sharps36(note, transpose)
	default:
		return closest36(note, transpose)
	}
}

// closest21 normalizes into [48,83] and picks the instrument pitch
// minimizing absolute semitone distance; the first tie wins.
func closest21(note, transpose int) string {
	target := normalizeIntoRange(note + transpose)
	bestIdx := 0
	bestDist := abs(instrumentNotes[0] - target)
	for i, n := range instrumentNotes {
		d := abs(n - target)
		if d < bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	return allKeys21[bestIdx]
}

func transposeOnly21(note, transpose int) string {
	target := note + transpose
	semitone := mod12(target - rootNote)
	octaveOffset := (target - rootNote) / 12
	octave := 1 + octaveOffset
	if octave < 0 {
		octave = 0
	}
	if octave > 2 {
		octave = 2
	}
	keyIdx := semitone * 7 / 12
	return keyRow(octave, keyIdx)
}

func pentatonic21(note, transpose int) string {
	normalized := normalizeIntoRange(note + transpose)
	semitone := mod12(normalized - rootNote)
	octave := octave36(normalized)
	return keyRow(octave, pentatonicDegree(semitone))
}

func chromatic21(note, transpose int) string {
	normalized := normalizeIntoRange(note + transpose)
	semitone := mod12(normalized - rootNote)
	octave := octave36(normalized)
	return keyRow(octave, chromaticDegree(semitone))
}

// raw21 ignores transpose entirely: note mod 21 maps directly to one
// of the 21 keys.
func raw21(note int) string {
	idx := ((note % 21) + 21) % 21
	return allKeys21[idx]
}

func wide21(note, transpose int) string {
	target := note + transpose
	semitone := mod12(target)
	octave := octaveWide(target)
	return keyRow(octave, wideDegree(semitone))
}

// python is an exact replica of the original reference heuristic,
// frozen as a compatibility fallback independent of any future change
// to the live instrumentNotes/allKeys21 tables.
func python(note, transpose int) string {
	lo := pyInstrumentNotes[0]
	hi := pyInstrumentNotes[20]
	target := note + transpose
	for target < lo {
		target += 12
	}
	for target > hi {
		target -= 12
	}
	bestIdx := 0
	bestDist := abs(pyInstrumentNotes[0] - target)
	for i, n := range pyInstrumentNotes {
		d := abs(n - target)
		if d < bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	return pyKeys[bestIdx]
}

func closest36(note, transpose int) string {
	target := note + transpose
	semitone := mod12(target)
	octave := octave36(target)
	return semitone36(semitone, octave)
}

func quantize36(note, transpose int) string {
	target := note + transpose
	semitone := mod12(target)
	octave := octave36(target)
	return semitone36(majorScaleDegree(semitone), octave)
}

func pentatonic36(note, transpose int) string {
	target := note + transpose
	semitone := mod12(target)
	octave := octave36(target)
	var penta int
	switch semitone {
	case 0, 1:
		penta = 0
	case 2, 3:
		penta = 2
	case 4, 5, 6:
		penta = 4
	case 7, 8:
		penta = 7
	default: // 9, 10, 11
		penta = 9
	}
	return semitone36(penta, octave)
}

func raw36(note int) string {
	idx := ((note % 36) + 36) % 36
	octave := idx / 12
	semitone := idx % 12
	return semitone36(semitone, octave)
}

func wide36(note, transpose int) string {
	target := note + transpose
	semitone := mod12(target)
	octave := octaveWide(target)
	return semitone36(semitone, octave)
}

// sharps36 shifts by +1 semitone so natural notes become sharps before
// applying the Closest derivation.
func sharps36(note, transpose int) string {
	target := note + transpose + 1
	semitone := mod12(target)
	octave := octave36(target)
	return semitone36(semitone, octave)
}

// KeyIndex21 returns the 0..20 index the Closest policy would land a
// target pitch on, independent of the 36-key accidental rendering.
// Used to keep a VisualizerNote's numeric key index in agreement with
// the key string the mapper emits for the same (note, transpose) pair.
func KeyIndex21(note, transpose int) int {
	return keyIndex21(note + transpose)
}
