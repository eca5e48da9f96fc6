package mapper

import (
	"strings"
	"testing"

	"midicompanion/core"
)

func TestKeyFor_ClosestMapping21Key(t *testing.T) {
	cases := []struct {
		name      string
		note      int
		transpose int
		want      string
	}{
		{"C#4 nearest C4", 61, 0, "a"},
		{"F#4 tie resolves to first/lower", 66, 0, "f"},
		{"C2 normalizes up two octaves to C4", 36, 0, "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := KeyFor(tc.note, tc.transpose, core.NoteModeClosest, core.KeyMode21)
			if got != tc.want {
				t.Fatalf("KeyFor(%d,%d) = %q, want %q", tc.note, tc.transpose, got, tc.want)
			}
		})
	}
}

func TestKeyFor_NeverEmpty(t *testing.T) {
	modes := []core.NoteMode{
		core.NoteModeClosest, core.NoteModeQuantize, core.NoteModeTransposeOnly,
		core.NoteModePentatonic, core.NoteModeChromatic, core.NoteModeRaw,
		core.NoteModePython, core.NoteModeWide, core.NoteModeSharps,
	}
	layouts := []core.KeyMode{core.KeyMode21, core.KeyMode36}
	for note := 0; note <= 127; note++ {
		for _, m := range modes {
			for _, l := range layouts {
				for _, transpose := range []int{-12, 0, 12} {
					got := KeyFor(note, transpose, m, l)
					if got == "" {
						t.Fatalf("KeyFor(%d,%d,%v,%v) returned empty string", note, transpose, m, l)
					}
				}
			}
		}
	}
}

func TestKeyFor_21KeyBaseCharacterInLayout(t *testing.T) {
	valid := make(map[byte]bool)
	for _, k := range allKeys21 {
		valid[k[0]] = true
	}
	for note := 0; note <= 127; note++ {
		got := KeyFor(note, 0, core.NoteModeClosest, core.KeyMode21)
		if !valid[got[0]] {
			t.Fatalf("note %d produced key %q outside 21-key layout", note, got)
		}
	}
}

func TestKeyFor_36KeyAccidentalsUseModifierPrefix(t *testing.T) {
	// C#4 (61) with no transpose must land on an accidental combo.
	got := KeyFor(61, 0, core.NoteModeClosest, core.KeyMode36)
	if !strings.HasPrefix(got, "shift+") && !strings.HasPrefix(got, "ctrl+") {
		t.Fatalf("expected modifier-prefixed combo for C#4 in 36-key mode, got %q", got)
	}
}

func TestKeyFor_QuantizeIsClosestAliasIn21Key(t *testing.T) {
	for note := 0; note <= 127; note++ {
		closest := KeyFor(note, 3, core.NoteModeClosest, core.KeyMode21)
		quantize := KeyFor(note, 3, core.NoteModeQuantize, core.KeyMode21)
		if closest != quantize {
			t.Fatalf("note %d: Quantize (%q) should alias Closest (%q) in 21-key mode", note, quantize, closest)
		}
	}
}

func TestKeyFor_SharpsFallsBackToClosestIn21Key(t *testing.T) {
	for note := 0; note <= 127; note++ {
		closest := KeyFor(note, -2, core.NoteModeClosest, core.KeyMode21)
		sharps := KeyFor(note, -2, core.NoteModeSharps, core.KeyMode21)
		if closest != sharps {
			t.Fatalf("note %d: Sharps should fall back to Closest in 21-key mode", note)
		}
	}
}

func TestKeyIndex21MatchesClosestMapping(t *testing.T) {
	for note := 0; note <= 127; note++ {
		for _, transpose := range []int{-12, 0, 5, 12} {
			key := KeyFor(note, transpose, core.NoteModeClosest, core.KeyMode21)
			idx := KeyIndex21(note, transpose)
			if allKeys21[idx] != key {
				t.Fatalf("note=%d transpose=%d: KeyIndex21 gave %q, KeyFor gave %q", note, transpose, allKeys21[idx], key)
			}
		}
	}
}

func TestKeyFor_RawWrapsWithoutPanicking(t *testing.T) {
	for _, note := range []int{0, 20, 21, 41, 127, -5} {
		k21 := KeyFor(note, 0, core.NoteModeRaw, core.KeyMode21)
		k36 := KeyFor(note, 0, core.NoteModeRaw, core.KeyMode36)
		if k21 == "" || k36 == "" {
			t.Fatalf("raw mode returned empty string for note=%d", note)
		}
	}
}
