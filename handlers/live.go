package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"midicompanion/hotkeys"
	"midicompanion/models"
)

// ── live MIDI input ─────────────────────────────────────────────────────────

// LiveDevices refreshes and lists the available MIDI input devices.
func (a *API) LiveDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"devices": a.bridge.Devices(),
		"state":   a.bridge.State().String(),
	})
}

// LiveStart connects to a device and begins routing its notes. File
// playback, if running, stops first.
func (a *API) LiveStart(c *gin.Context) {
	var req models.LiveStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name, err := a.bridge.StartListening(req.DeviceIndex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "state": a.bridge.State().String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": name, "state": a.bridge.State().String()})
}

// LiveStop disconnects the active device. Idempotent.
func (a *API) LiveStop(c *gin.Context) {
	if err := a.bridge.StopListening(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": a.bridge.State().String()})
}

// LiveTranspose sets the live-mode transpose, clamped to ±12
// semitones.
func (a *API) LiveTranspose(c *gin.Context) {
	var req models.LiveTransposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v := req.Semitones
	if v < -12 {
		v = -12
	}
	if v > 12 {
		v = 12
	}
	a.eng.Live.SetTranspose(int8(v))
	c.JSON(http.StatusOK, gin.H{"transpose": v})
}

// ── hotkeys ─────────────────────────────────────────────────────────────────

// HotkeyBindings lists the current action bindings.
func (a *API) HotkeyBindings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"bindings": a.router.Bindings(),
		"enabled":  a.router.Enabled(),
	})
}

// SetHotkeyBindings rebinds transport actions. Unknown action names
// are rejected so a typo cannot silently create a dead binding.
func (a *API) SetHotkeyBindings(c *gin.Context) {
	var req models.HotkeyBindingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	valid := make(map[hotkeys.Action]bool, len(hotkeys.Actions))
	for _, action := range hotkeys.Actions {
		valid[action] = true
	}
	set := make(map[hotkeys.Action]string, len(req.Bindings))
	for name, key := range req.Bindings {
		action := hotkeys.Action(name)
		if !valid[action] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action: " + name})
			return
		}
		set[action] = key
	}

	a.router.SetBindings(set)
	a.persist("hotkey_bindings", req.Bindings)
	c.JSON(http.StatusOK, gin.H{"bindings": a.router.Bindings()})
}

// SetHotkeysEnabled turns action dispatch on or off.
func (a *API) SetHotkeysEnabled(c *gin.Context) {
	var req models.EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.router.SetEnabled(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": a.router.Enabled()})
}

// SetHotkeyRecording toggles binding-capture mode.
func (a *API) SetHotkeyRecording(c *gin.Context) {
	var req models.EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.router.SetRecording(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"recording": a.router.Recording()})
}
