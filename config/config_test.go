package config

import (
	"testing"

	"midicompanion/core"
)

func TestLoad_Defaults(t *testing.T) {
	s := Load()

	if s.HTTPAddr != ":8080" {
		t.Errorf("http addr = %q, want :8080", s.HTTPAddr)
	}
	if s.CORSOrigins != "*" {
		t.Errorf("cors = %q, want *", s.CORSOrigins)
	}
	if s.DefaultNoteMode != core.NoteModeClosest {
		t.Errorf("note mode = %v, want closest", s.DefaultNoteMode)
	}
	if s.DefaultKeyMode != core.KeyMode21 {
		t.Errorf("key mode = %v, want keys21", s.DefaultKeyMode)
	}
	if s.DefaultDeliveryBackend != core.DeliveryPostedWindowMessage {
		t.Errorf("backend = %v, want posted", s.DefaultDeliveryBackend)
	}
	if s.DefaultModifierDelayMs != 2 {
		t.Errorf("modifier delay = %d, want 2", s.DefaultModifierDelayMs)
	}
	if len(s.TargetWindowKeywords) == 0 {
		t.Error("keyword seed list is empty")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MIDICOMPANION_DEFAULT_NOTE_MODE", "pentatonic")
	t.Setenv("MIDICOMPANION_DEFAULT_KEY_MODE", "keys36")
	t.Setenv("MIDICOMPANION_DEFAULT_DELIVERY_BACKEND", "simulated_global_input")

	s := Load()
	if s.DefaultNoteMode != core.NoteModePentatonic {
		t.Errorf("note mode = %v, want pentatonic", s.DefaultNoteMode)
	}
	if s.DefaultKeyMode != core.KeyMode36 {
		t.Errorf("key mode = %v, want keys36", s.DefaultKeyMode)
	}
	if s.DefaultDeliveryBackend != core.DeliverySimulatedGlobalInput {
		t.Errorf("backend = %v, want global", s.DefaultDeliveryBackend)
	}
}

func TestParseNoteMode_UnknownFallsBack(t *testing.T) {
	if parseNoteMode("xyz") != core.NoteModeClosest {
		t.Error("unknown note mode must fall back to closest")
	}
}
