// Package midi parses Standard MIDI Files into the absolute-time,
// tempo-resolved event list the playback scheduler consumes. Chunk
// walking and event decoding are delegated to gomidi's smf package;
// the tempo table, tick-to-millisecond conversion, and the
// best-transpose heuristic are implemented here.
package midi

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"

	"midicompanion/core"
)

const (
	defaultTicksPerQuarter = 480.0
	defaultTempoMicros     = 500_000.0 // 120 BPM
)

// Song bundles everything one parse produces.
type Song struct {
	Data     *core.MidiData
	Metadata *core.MidiMetadata
	Tracks   []core.TrackInfo
}

type tempoChange struct {
	tick   uint64
	micros float64
}

// Parse reads raw SMF bytes and produces the ordered event list, the
// library metadata, and the per-track summaries. It never panics on
// malformed input; every failure path surfaces a *ParseError or one of
// the header sentinel errors.
func Parse(data []byte, log *zap.Logger) (*Song, error) {
	if err := validateHeader(data); err != nil {
		return nil, err
	}
	if err := scanChunks(data); err != nil {
		return nil, err
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Offset: 14, Reason: err.Error()}
	}

	tpq := defaultTicksPerQuarter
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		tpq = float64(mt)
	} else {
		// SMPTE timing. The 480 TPQ fallback will be silently wrong
		// for such files; flagged rather than rejected.
		log.Warn("SMPTE-timed file, falling back to 480 TPQ",
			zap.Any("time_format", s.TimeFormat))
	}

	// Tempo pass: absolute tick position of every tempo meta event,
	// plus the final tick count to compute song end.
	var tempi []tempoChange
	var maxTicks uint64
	var noteCount uint32
	initialTempo := defaultTempoMicros
	foundInitialTempo := false

	for _, track := range s.Tracks {
		var trackTicks uint64
		for _, ev := range track {
			trackTicks += uint64(ev.Delta)

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				micros := 60_000_000.0 / bpm
				if !foundInitialTempo {
					initialTempo = micros
					foundInitialTempo = true
				}
				tempi = append(tempi, tempoChange{tick: trackTicks, micros: micros})
				continue
			}

			var ch, key, vel uint8
			if ev.Message.GetNoteStart(&ch, &key, &vel) {
				noteCount++
			}
		}
		if trackTicks > maxTicks {
			maxTicks = trackTicks
		}
	}
	sort.SliceStable(tempi, func(i, j int) bool { return tempi[i].tick < tempi[j].tick })

	ticksToMs := func(ticks uint64) float64 {
		resultMs := 0.0
		var lastTick uint64
		currentTempo := defaultTempoMicros
		for _, tc := range tempi {
			if tc.tick >= ticks {
				break
			}
			deltaTicks := tc.tick - lastTick
			resultMs += float64(deltaTicks) / tpq * currentTempo / 1000.0
			lastTick = tc.tick
			currentTempo = tc.micros
		}
		deltaTicks := ticks - lastTick
		resultMs += float64(deltaTicks) / tpq * currentTempo / 1000.0
		return resultMs
	}

	// Event pass: note-on/note-off per track with absolute times.
	// gomidi already normalizes note-on with velocity 0 into a note
	// end, matching the wire-format rule.
	var events []core.TimedEvent
	tracks := make([]core.TrackInfo, 0, len(s.Tracks))

	for trackIdx, track := range s.Tracks {
		var trackTicks uint64
		var name string
		var trackNotes uint32
		channels := make(map[uint8]struct{})

		for _, ev := range track {
			trackTicks += uint64(ev.Delta)

			var text string
			if ev.Message.GetMetaTrackName(&text) {
				name = cleanTrackName(text)
				continue
			}
			if ev.Message.GetMetaInstrument(&text) {
				if name == "" {
					name = cleanTrackName(text)
				}
				continue
			}

			var ch, key, vel uint8
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				events = append(events, core.TimedEvent{
					TimeMs:  uint64(ticksToMs(trackTicks)),
					Type:    core.EventNoteOn,
					Note:    key,
					TrackID: trackIdx,
				})
				trackNotes++
				channels[ch] = struct{}{}
			case ev.Message.GetNoteEnd(&ch, &key):
				events = append(events, core.TimedEvent{
					TimeMs:  uint64(ticksToMs(trackTicks)),
					Type:    core.EventNoteOff,
					Note:    key,
					TrackID: trackIdx,
				})
			}
		}

		// Only tracks that carry notes are listed for band mode.
		if trackNotes > 0 {
			if name == "" {
				name = "Track " + itoa(trackIdx+1)
			}
			info := core.TrackInfo{ID: trackIdx, Name: name, NoteCount: trackNotes}
			if len(channels) == 1 {
				for ch := range channels {
					c := ch
					info.Channel = &c
				}
			}
			tracks = append(tracks, info)
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].TimeMs < events[j].TimeMs })

	duration := 0.0
	if len(events) > 0 {
		duration = float64(events[len(events)-1].TimeMs) / 1000.0
	}

	transpose := detectBestTranspose(events)
	log.Info("parsed midi file",
		zap.Int("events", len(events)),
		zap.Int("tracks", len(tracks)),
		zap.Float64("duration_s", duration),
		zap.Int("transpose", transpose))

	metaDuration := ticksToMs(maxTicks) / 1000.0
	bpm := uint16(60_000_000.0/initialTempo + 0.5)
	density := float32(0)
	if metaDuration > 0 {
		density = float32(noteCount) / float32(metaDuration)
	}

	return &Song{
		Data: &core.MidiData{
			Events:    events,
			Duration:  duration,
			Transpose: transpose,
		},
		Metadata: &core.MidiMetadata{
			Duration:    metaDuration,
			BPM:         bpm,
			NoteCount:   noteCount,
			NoteDensity: density,
		},
		Tracks: tracks,
	}, nil
}

// scanChunks verifies that every declared track chunk fits inside the
// buffer, so a truncated file reports the offset of the bad chunk
// instead of a generic decode failure.
func scanChunks(data []byte) error {
	offset := 14
	for offset < len(data) {
		if offset+8 > len(data) {
			return &ParseError{Offset: offset, Reason: "truncated chunk header"}
		}
		length := int(binary.BigEndian.Uint32(data[offset+4 : offset+8]))
		if offset+8+length > len(data) {
			return &ParseError{Offset: offset, Reason: "truncated track chunk"}
		}
		offset += 8 + length
	}
	return nil
}

// instrumentNotes is the 21-pitch diatonic set the instrument can
// produce, duplicated from the mapper so the parser stays a leaf
// package.
var instrumentNotes = [21]int{
	48, 50, 52, 53, 55, 57, 59,
	60, 62, 64, 65, 67, 69, 71,
	72, 74, 76, 77, 79, 81, 83,
}

func normalizeIntoRange(note int) int {
	lo, hi := instrumentNotes[0], instrumentNotes[20]
	for note < lo {
		note += 12
	}
	for note > hi {
		note -= 12
	}
	return note
}

// detectBestTranspose evaluates every integer transpose in [-12, +12]
// and returns the one whose note-ons land closest to the instrument's
// pitch set. Ties break toward the smallest absolute transpose, then
// toward the lower value.
func detectBestTranspose(events []core.TimedEvent) int {
	bestTranspose := 0
	bestScore := int(^uint(0) >> 1)
	haveBest := false

	for transpose := -12; transpose <= 12; transpose++ {
		score := 0
		for _, ev := range events {
			if ev.Type != core.EventNoteOn {
				continue
			}
			normalized := normalizeIntoRange(int(ev.Note) + transpose)
			minDist := int(^uint(0) >> 1)
			for _, instNote := range instrumentNotes {
				if d := absInt(instNote - normalized); d < minDist {
					minDist = d
				}
			}
			score += minDist
		}

		if !haveBest || score < bestScore || (score == bestScore && transposeBeats(transpose, bestTranspose)) {
			bestScore = score
			bestTranspose = transpose
			haveBest = true
		}
	}
	return bestTranspose
}

func transposeBeats(a, b int) bool {
	if absInt(a) != absInt(b) {
		return absInt(a) < absInt(b)
	}
	return a < b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// cleanTrackName keeps only ASCII letters, digits, space and the
// punctuation - _ . ( ) from MIDI meta text; every other character is
// dropped, and the result is trimmed.
func cleanTrackName(raw string) string {
	var b strings.Builder
	for _, c := range raw {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '-', c == '_', c == '.', c == '(', c == ')':
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}
