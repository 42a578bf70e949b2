package trigger

import (
	"errors"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		combo string
		want  Binding
	}{
		{"ctrl+shift+d", Binding{Key: KeyD, Mods: ModControl | ModShift}},
		{"Ctrl+Space", Binding{Key: KeySpace, Mods: ModControl}},
		{"cmd+option+f5", Binding{Key: KeyF5, Mods: ModCommand | ModOption}},
		{"alt+enter", Binding{Key: KeyReturn, Mods: ModOption}},
		{"ctrl+shift", Binding{Key: KeyNone, Mods: ModControl | ModShift}},
		{"capslock+z", Binding{Key: KeyZ, Mods: ModCapsLock}},
		{" ctrl+d ", Binding{Key: KeyD, Mods: ModControl}},
	}
	for _, tc := range tests {
		got, err := ParseCombo(tc.combo)
		if err != nil {
			t.Fatalf("ParseCombo(%q): %v", tc.combo, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCombo(%q) = %+v, want %+v", tc.combo, got, tc.want)
		}
	}
}

func TestParseComboRejectsInvalid(t *testing.T) {
	for _, combo := range []string{
		"",
		"d",           // bare key would swallow ordinary typing
		"ctrl+d+s",    // key not last
		"ctrl+banana", // unknown token
		"space",
	} {
		if _, err := ParseCombo(combo); !errors.Is(err, ErrBindingInvalid) {
			t.Fatalf("ParseCombo(%q): expected ErrBindingInvalid, got %v", combo, err)
		}
	}
}

func TestModifierOnly(t *testing.T) {
	b, err := ParseCombo("ctrl+shift")
	if err != nil {
		t.Fatalf("ParseCombo: %v", err)
	}
	if !b.ModifierOnly() {
		t.Fatalf("ctrl+shift should be modifier-only")
	}
	b2, _ := ParseCombo("ctrl+shift+d")
	if b2.ModifierOnly() {
		t.Fatalf("ctrl+shift+d should not be modifier-only")
	}
}

func TestBindingString(t *testing.T) {
	b, _ := ParseCombo("ctrl+shift+d")
	if got := b.String(); got != "ctrl+shift+d" {
		t.Fatalf("String() = %q", got)
	}
	mo, _ := ParseCombo("cmd+shift")
	if got := mo.String(); got != "shift+cmd" {
		t.Fatalf("modifier-only String() = %q", got)
	}
}

func TestFormatBinding(t *testing.T) {
	b, _ := ParseCombo("ctrl+shift+d")
	if got := FormatBinding(b); got != "⌃⇧D" {
		t.Fatalf("FormatBinding = %q", got)
	}
	mo, _ := ParseCombo("ctrl+option")
	if got := FormatBinding(mo); got != "⌃⌥" {
		t.Fatalf("FormatBinding modifier-only = %q", got)
	}
}
