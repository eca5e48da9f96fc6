package midi

import (
	"sort"

	"midicompanion/core"
)

// VisualizerNotes projects a parsed song onto the GUI's falling-note
// visualizer: one entry per note-on, carrying the 0..20 key index the
// Closest mapping lands the note on. The projection is frozen at load
// time; it does not follow live note-mode changes.
func VisualizerNotes(d *core.MidiData) []core.VisualizerNote {
	if d == nil {
		return nil
	}

	notes := make([]core.VisualizerNote, 0, len(d.Events))
	for _, ev := range d.Events {
		if ev.Type != core.EventNoteOn {
			continue
		}
		notes = append(notes, core.VisualizerNote{
			MidiNote: ev.Note,
			KeyIndex: closestKeyIndex(int(ev.Note) + d.Transpose),
			TimeMs:   ev.TimeMs,
			TrackID:  ev.TrackID,
		})
	}

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].TimeMs < notes[j].TimeMs })

	// Drop duplicate presses of the same key within 10 ms; the
	// visualizer cannot render them apart anyway.
	filtered := notes[:0]
	for _, n := range notes {
		dominated := false
		for i := len(filtered) - 1; i >= 0; i-- {
			prev := filtered[i]
			if n.TimeMs-prev.TimeMs >= 10 {
				break
			}
			if prev.KeyIndex == n.KeyIndex {
				dominated = true
				break
			}
		}
		if !dominated {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// closestKeyIndex is the same index derivation the Closest mapping
// uses, kept here so the visualizer projection and the dispatched key
// strings stay in agreement (asserted by tests against the mapper).
func closestKeyIndex(target int) int {
	normalized := normalizeIntoRange(target)
	bestIdx := 0
	bestDist := absInt(instrumentNotes[0] - normalized)
	for i, n := range instrumentNotes {
		if d := absInt(n - normalized); d < bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	return bestIdx
}
