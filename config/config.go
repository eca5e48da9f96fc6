// Package config loads process-wide defaults once at startup via
// viper. Every value is a default only: the command surface is the
// sole path by which these settings change for the rest of a process's
// lifetime.
package config

import (
	"bytes"
	"strings"

	"github.com/spf13/viper"

	"midicompanion/core"
	"midicompanion/data"
)

// Settings are the defaults read at startup.
type Settings struct {
	CORSOrigins            string
	LogLevel               string
	DefaultNoteMode        core.NoteMode
	DefaultKeyMode         core.KeyMode
	DefaultDeliveryBackend core.DeliveryBackend
	DefaultModifierDelayMs uint64
	TargetWindowKeywords   []string
	HTTPAddr               string
}

// Load reads the embedded defaults, merges an optional config file in
// the working directory over them, and lets MIDICOMPANION_* environment
// variables override both. Load itself never fails; a missing or
// broken config file leaves the other layers in place.
func Load() *Settings {
	v := viper.New()
	v.SetEnvPrefix("MIDICOMPANION")
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	_ = v.ReadConfig(bytes.NewReader(data.DefaultsYAML))

	v.SetConfigName("midicompanion")
	v.AddConfigPath(".")
	_ = v.MergeInConfig() // absent config file is not an error

	return &Settings{
		CORSOrigins:            v.GetString("cors_origins"),
		LogLevel:               v.GetString("log_level"),
		DefaultNoteMode:        parseNoteMode(v.GetString("default_note_mode")),
		DefaultKeyMode:         parseKeyMode(v.GetString("default_key_mode")),
		DefaultDeliveryBackend: parseBackend(v.GetString("default_delivery_backend")),
		DefaultModifierDelayMs: v.GetUint64("default_modifier_delay_ms"),
		TargetWindowKeywords:   splitNonEmpty(v.GetString("target_window_keywords")),
		HTTPAddr:               v.GetString("http_addr"),
	}
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseNoteMode(s string) core.NoteMode {
	switch strings.ToLower(s) {
	case "quantize":
		return core.NoteModeQuantize
	case "transpose_only":
		return core.NoteModeTransposeOnly
	case "pentatonic":
		return core.NoteModePentatonic
	case "chromatic":
		return core.NoteModeChromatic
	case "raw":
		return core.NoteModeRaw
	case "python":
		return core.NoteModePython
	case "wide":
		return core.NoteModeWide
	case "sharps":
		return core.NoteModeSharps
	default:
		return core.NoteModeClosest
	}
}

func parseKeyMode(s string) core.KeyMode {
	if strings.ToLower(s) == "keys36" {
		return core.KeyMode36
	}
	return core.KeyMode21
}

func parseBackend(s string) core.DeliveryBackend {
	if strings.ToLower(s) == "simulated_global_input" {
		return core.DeliverySimulatedGlobalInput
	}
	return core.DeliveryPostedWindowMessage
}
