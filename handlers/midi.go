package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"midicompanion/midi"
	"midicompanion/models"
)

// persist writes one mutated setting through the settings store.
// Failures are logged, never surfaced: persistence is best-effort.
func (a *API) persist(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.settings.Write(key, raw); err != nil {
		a.log.Warn("settings write failed", zap.String("key", key), zap.Error(err))
	}
}

// loadSong runs the shared load path for both uploaded and built-in
// songs.
func (a *API) loadSong(c *gin.Context, name string, raw []byte) {
	// Security gate first: executable signatures are rejected before
	// any parsing and the buffer never touches disk.
	if !midi.VerifyMidiData(raw) {
		a.log.Error("rejected non-MIDI upload",
			zap.String("name", name), zap.Int("size", len(raw)))
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a valid MIDI file"})
		return
	}

	song, err := midi.Parse(raw, a.log)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A load replaces the prior song wholesale and rewinds the
	// transport.
	a.player.Stop()
	a.eng.SetMidiData(song.Data)
	a.eng.Transport.SetTotalDuration(song.Data.Duration)
	a.eng.Transport.SetCurrentFile(name)
	a.eng.Transport.SetCurrentPosition(0)
	a.eng.Mapper.SetSeekOffsetSeconds(0)

	a.persist("last_file", name)
	if err := a.discovery.Advertise(name); err != nil {
		a.log.Warn("peer advertise failed", zap.Error(err))
	}

	tracks := make([]models.TrackResponse, len(song.Tracks))
	for i, t := range song.Tracks {
		tracks[i] = models.TrackResponse{
			ID: t.ID, Name: t.Name, NoteCount: t.NoteCount, Channel: t.Channel,
		}
	}
	c.JSON(http.StatusOK, models.LoadResponse{
		Duration:  song.Metadata.Duration,
		BPM:       song.Metadata.BPM,
		NoteCount: song.Metadata.NoteCount,
		Density:   song.Metadata.NoteDensity,
		Transpose: song.Data.Transpose,
		Tracks:    tracks,
	})
}

// Load parses an uploaded MIDI file and makes it the current song.
func (a *API) Load(c *gin.Context) {
	var req models.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := req.Name
	if name == "" {
		name = "untitled.mid"
	}
	a.loadSong(c, name, req.Data)
}

// LoadDemo loads the built-in demo scale.
func (a *API) LoadDemo(c *gin.Context) {
	a.loadSong(c, "demo-scale.mid", midi.DemoSong())
}

// Visualizer returns the falling-note projection of the loaded song.
func (a *API) Visualizer(c *gin.Context) {
	data := a.eng.MidiData()
	if data == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no MIDI file loaded"})
		return
	}
	notes := midi.VisualizerNotes(data)
	out := make([]models.VisualizerNoteResponse, len(notes))
	for i, n := range notes {
		out[i] = models.VisualizerNoteResponse{
			MidiNote: n.MidiNote, KeyIndex: n.KeyIndex, TimeMs: n.TimeMs, TrackID: n.TrackID,
		}
	}
	c.JSON(http.StatusOK, out)
}

// Verify answers the file-transfer collaborator's sanity check without
// loading anything.
func (a *API) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": midi.VerifyMidiData(req.Data)})
}
