package midi

import (
	"bytes"
	"encoding/binary"
)

// ── SMF (Standard MIDI File) writer ─────────────────────────────────────────
//
// A minimal event-level SMF writer. Used to construct the built-in demo
// song and the parser's test fixtures without shipping binary assets.

// varLen encodes a MIDI variable-length quantity.
func varLen(v uint32) []byte {
	if v < 0x80 {
		return []byte{byte(v)}
	}
	var buf [4]byte
	n := 0
	for tmp := v; tmp > 0; tmp >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte((v >> (uint(i) * 7)) & 0x7F)
		if i > 0 {
			b |= 0x80
		}
		buf[n-1-i] = b
	}
	return buf[:n]
}

// TrackBuilder accumulates one MTrk event stream. Events are appended
// at absolute ticks; the builder converts to deltas. Ticks must be
// non-decreasing across calls.
type TrackBuilder struct {
	buf      []byte
	lastTick uint32
}

func (t *TrackBuilder) delta(tick uint32) uint32 {
	d := tick - t.lastTick
	t.lastTick = tick
	return d
}

// Tempo appends a tempo meta event (microseconds per quarter note).
func (t *TrackBuilder) Tempo(tick uint32, microsPerQuarter uint32) *TrackBuilder {
	t.buf = append(t.buf, varLen(t.delta(tick))...)
	t.buf = append(t.buf,
		0xFF, 0x51, 0x03,
		byte(microsPerQuarter>>16), byte(microsPerQuarter>>8), byte(microsPerQuarter))
	return t
}

// Name appends a track-name meta event.
func (t *TrackBuilder) Name(tick uint32, name string) *TrackBuilder {
	t.buf = append(t.buf, varLen(t.delta(tick))...)
	t.buf = append(t.buf, 0xFF, 0x03)
	t.buf = append(t.buf, varLen(uint32(len(name)))...)
	t.buf = append(t.buf, name...)
	return t
}

// NoteOn appends a note-on event.
func (t *TrackBuilder) NoteOn(tick uint32, ch, note, vel byte) *TrackBuilder {
	t.buf = append(t.buf, varLen(t.delta(tick))...)
	t.buf = append(t.buf, 0x90|ch, note, vel)
	return t
}

// NoteOff appends a note-off event.
func (t *TrackBuilder) NoteOff(tick uint32, ch, note byte) *TrackBuilder {
	t.buf = append(t.buf, varLen(t.delta(tick))...)
	t.buf = append(t.buf, 0x80|ch, note, 0)
	return t
}

// bytesWithEOT returns the track data with the end-of-track meta
// appended.
func (t *TrackBuilder) bytesWithEOT() []byte {
	return append(append([]byte{}, t.buf...), 0x00, 0xFF, 0x2F, 0x00)
}

// BuildSMF assembles a complete format-0 or format-1 file from the
// given tracks.
func BuildSMF(ticksPerQuarter uint16, tracks ...*TrackBuilder) []byte {
	format := uint16(0)
	if len(tracks) > 1 {
		format = 1
	}

	var buf bytes.Buffer
	// ── MThd ──
	buf.WriteString("MThd")
	binary.Write(&buf, binary.BigEndian, uint32(6)) // header length
	binary.Write(&buf, binary.BigEndian, format)
	binary.Write(&buf, binary.BigEndian, uint16(len(tracks)))
	binary.Write(&buf, binary.BigEndian, ticksPerQuarter)

	// ── MTrk ──
	for _, t := range tracks {
		data := t.bytesWithEOT()
		buf.WriteString("MTrk")
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		buf.Write(data)
	}

	return buf.Bytes()
}

// DemoSong builds the embedded fallback song: a C-major scale across
// the instrument's three octaves at 120 BPM, one eighth note each.
func DemoSong() []byte {
	const tpq = 480
	t := &TrackBuilder{}
	t.Name(0, "Demo Scale")
	t.Tempo(0, 500_000)

	tick := uint32(0)
	for _, note := range []byte{48, 50, 52, 53, 55, 57, 59, 60, 62, 64, 65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83} {
		t.NoteOn(tick, 0, note, 100)
		t.NoteOff(tick+tpq/2, 0, note)
		tick += tpq / 2
	}
	return BuildSMF(tpq, t)
}
