// Package handlers exposes the command surface the GUI collaborator
// drives: one route per state mutator, plus the SSE event stream.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"midicompanion/collab"
	"midicompanion/core"
	"midicompanion/events"
	"midicompanion/hotkeys"
	"midicompanion/injector"
	"midicompanion/livemidi"
	"midicompanion/models"
	"midicompanion/player"
)

// API bundles every subsystem a command can touch.
type API struct {
	eng       *core.Engine
	player    *player.Player
	keys      *injector.Injector
	bridge    *livemidi.Bridge
	router    *hotkeys.Router
	bus       *events.Bus
	settings  collab.SettingsStore
	discovery collab.DiscoveryService
	updates   collab.UpdateChecker
	log       *zap.Logger
}

// New wires the command surface.
func New(
	eng *core.Engine,
	p *player.Player,
	keys *injector.Injector,
	bridge *livemidi.Bridge,
	router *hotkeys.Router,
	bus *events.Bus,
	settings collab.SettingsStore,
	discovery collab.DiscoveryService,
	updates collab.UpdateChecker,
) *API {
	return &API{
		eng:       eng,
		player:    p,
		keys:      keys,
		bridge:    bridge,
		router:    router,
		bus:       bus,
		settings:  settings,
		discovery: discovery,
		updates:   updates,
		log:       eng.Log,
	}
}

// Register mounts every route under the given router group.
func (a *API) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/events", a.bus.ServeSSE)

		playback := api.Group("/playback")
		{
			playback.POST("/load", a.Load)
			playback.POST("/load-demo", a.LoadDemo)
			playback.POST("/start", a.Start)
			playback.POST("/stop", a.Stop)
			playback.POST("/pause", a.PauseResume)
			playback.POST("/seek", a.Seek)
			playback.POST("/loop", a.SetLoop)
			playback.GET("/state", a.State)
			playback.GET("/visualizer", a.Visualizer)
		}

		cfg := api.Group("/config")
		{
			cfg.POST("/speed", a.SetSpeed)
			cfg.POST("/octave", a.SetOctave)
			cfg.POST("/note-mode", a.SetNoteMode)
			cfg.POST("/key-mode", a.SetKeyMode)
			cfg.POST("/band-filter", a.SetBandFilter)
			cfg.POST("/key-bindings", a.SetKeyBindings)
			cfg.POST("/window-keywords", a.SetWindowKeywords)
			cfg.POST("/modifier-delay", a.SetModifierDelay)
			cfg.POST("/delivery-backend", a.SetDeliveryBackend)
		}

		live := api.Group("/live")
		{
			live.GET("/devices", a.LiveDevices)
			live.POST("/start", a.LiveStart)
			live.POST("/stop", a.LiveStop)
			live.POST("/transpose", a.LiveTranspose)
		}

		hk := api.Group("/hotkeys")
		{
			hk.GET("/bindings", a.HotkeyBindings)
			hk.POST("/bindings", a.SetHotkeyBindings)
			hk.POST("/enabled", a.SetHotkeysEnabled)
			hk.POST("/recording", a.SetHotkeyRecording)
		}

		api.GET("/window/status", a.WindowStatus)
		api.POST("/keys/press", a.PressKey)
		api.POST("/verify", a.Verify)
		api.GET("/version", a.Version)
	}
}

// ── transport ───────────────────────────────────────────────────────────────

// Start launches playback of the loaded song.
func (a *API) Start(c *gin.Context) {
	if err := a.player.Start(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StateFromCore(a.player.State()))
}

// Stop halts playback. Idempotent.
func (a *API) Stop(c *gin.Context) {
	a.player.Stop()
	c.JSON(http.StatusOK, models.StateFromCore(a.player.State()))
}

// PauseResume flips the paused flag.
func (a *API) PauseResume(c *gin.Context) {
	a.player.TogglePause()
	c.JSON(http.StatusOK, models.StateFromCore(a.player.State()))
}

// Seek repositions the playhead.
func (a *API) Seek(c *gin.Context) {
	var req models.SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.player.Seek(req.Position); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.StateFromCore(a.player.State()))
}

// SetLoop toggles loop mode.
func (a *API) SetLoop(c *gin.Context) {
	var req models.LoopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.eng.Transport.SetLoopMode(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"loop_mode": req.Enabled})
}

// State reports the playback snapshot.
func (a *API) State(c *gin.Context) {
	c.JSON(http.StatusOK, models.StateFromCore(a.player.State()))
}

// ── mapper configuration ────────────────────────────────────────────────────

// SetSpeed sets the tempo multiplier; the value is clamped and echoed
// back.
func (a *API) SetSpeed(c *gin.Context) {
	var req models.SpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.eng.Mapper.SetSpeed(req.Speed)
	a.persist("speed", a.eng.Mapper.Speed())
	c.JSON(http.StatusOK, gin.H{"speed": a.eng.Mapper.Speed()})
}

// SetOctave sets the octave shift; the value is clamped and echoed
// back.
func (a *API) SetOctave(c *gin.Context) {
	var req models.OctaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.eng.Mapper.SetOctaveShift(req.Shift)
	a.persist("octave_shift", a.eng.Mapper.OctaveShift())
	c.JSON(http.StatusOK, gin.H{"octave_shift": a.eng.Mapper.OctaveShift()})
}

// SetNoteMode selects the mapping policy.
func (a *API) SetNoteMode(c *gin.Context) {
	var req models.NoteModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := core.NoteModeFromUint8(req.Mode)
	a.eng.Mapper.SetNoteMode(mode)
	a.persist("note_mode", uint8(mode))
	c.JSON(http.StatusOK, gin.H{"note_mode": uint8(mode), "name": mode.String()})
}

// SetKeyMode selects the key layout.
func (a *API) SetKeyMode(c *gin.Context) {
	var req models.KeyModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := core.KeyModeFromUint8(req.Mode)
	a.eng.Mapper.SetKeyMode(mode)
	a.persist("key_mode", uint8(mode))
	c.JSON(http.StatusOK, gin.H{"key_mode": uint8(mode), "name": mode.String()})
}

// SetBandFilter configures multiplayer part-splitting; mode "none"
// clears it.
func (a *API) SetBandFilter(c *gin.Context) {
	var req models.BandFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Mode {
	case "split":
		if req.TotalPlayers < 1 || req.Slot < 0 || req.Slot >= req.TotalPlayers {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be in [0, total_players)"})
			return
		}
		a.eng.Mapper.SetBandFilter(core.BandFilter{
			Mode: core.BandFilterSplit, Slot: req.Slot, TotalPlayers: req.TotalPlayers,
		})
	case "track":
		if req.TrackID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "track mode requires track_id"})
			return
		}
		a.eng.Mapper.SetBandFilter(core.BandFilter{
			Mode: core.BandFilterTrack, TrackID: *req.TrackID,
		})
	case "none":
		a.eng.Mapper.ClearBandFilter()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be split, track, or none"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

// ── injector configuration ──────────────────────────────────────────────────

// SetKeyBindings sets the listed per-position key overrides; positions
// not listed keep their current binding.
func (a *API) SetKeyBindings(c *gin.Context) {
	var req models.KeyBindingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, b := range req.Bindings {
		if b.Row < 0 || b.Row > 2 || b.Col < 0 || b.Col > 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "binding position out of range"})
			return
		}
		a.eng.Injector.SetBinding(core.KeyBindingPosition{Row: b.Row, Col: b.Col}, b.Key)
	}
	c.JSON(http.StatusOK, gin.H{"bindings": len(req.Bindings)})
}

// SetWindowKeywords replaces the user-editable target-window keyword
// list.
func (a *API) SetWindowKeywords(c *gin.Context) {
	var req models.KeywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.eng.Injector.SetKeywords(req.Keywords)
	a.keys.Locator().Invalidate()
	a.persist("window_keywords", req.Keywords)
	c.JSON(http.StatusOK, gin.H{"keywords": req.Keywords})
}

// SetModifierDelay tunes the posted-mode modifier settle delay.
func (a *API) SetModifierDelay(c *gin.Context) {
	var req models.ModifierDelayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.eng.Injector.SetModifierDelayMs(req.DelayMs)
	c.JSON(http.StatusOK, gin.H{"delay_ms": req.DelayMs})
}

// SetDeliveryBackend switches between posted-window-message and
// simulated-global-input delivery.
func (a *API) SetDeliveryBackend(c *gin.Context) {
	var req models.DeliveryBackendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	backend := core.DeliveryPostedWindowMessage
	if req.Backend == uint8(core.DeliverySimulatedGlobalInput) {
		backend = core.DeliverySimulatedGlobalInput
	}
	a.eng.Injector.SetBackend(backend)
	a.persist("delivery_backend", uint8(backend))
	c.JSON(http.StatusOK, gin.H{"backend": uint8(backend)})
}

// ── window / keys ───────────────────────────────────────────────────────────

// WindowStatus answers the found/focused probes.
func (a *API) WindowStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"found":   a.keys.IsGameWindowFound(),
		"focused": a.keys.IsGameFocused(),
	})
}

// PressKey is the test hook: dispatch one tap right now.
func (a *API) PressKey(c *gin.Context) {
	var req models.PressKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.keys.PressKey(req.Key)
	c.JSON(http.StatusOK, gin.H{"key": req.Key})
}

// Version reports the latest released version from the update checker.
func (a *API) Version(c *gin.Context) {
	v, err := a.updates.LatestVersion(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"latest": v})
}
