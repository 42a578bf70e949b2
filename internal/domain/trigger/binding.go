package trigger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrBindingInvalid is returned when a combo string cannot be parsed.
var ErrBindingInvalid = errors.New("trigger: invalid key combination")

// Key is an opaque physical key identifier. Zero means "no standalone key",
// which turns a binding into a modifier-only chord.
type Key uint16

const (
	KeyNone Key = iota
	KeySpace
	KeyTab
	KeyReturn
	KeyEscape
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	// Physical modifier keys, used by modifier-only chords and for
	// classifying raw events.
	KeyControl
	KeyOption
	KeyShift
	KeyCommand
	KeyCapsLock
)

// ModSet is a bitset over the five tracked modifiers. Matching is exact-set:
// a binding requiring control+shift rejects control+shift+command.
type ModSet uint8

const (
	ModControl ModSet = 1 << iota
	ModOption
	ModShift
	ModCommand
	ModCapsLock
)

// Has reports whether every modifier in other is present in m.
func (m ModSet) Has(other ModSet) bool { return m&other == other }

// Count returns the number of modifiers held.
func (m ModSet) Count() int {
	n := 0
	for v := m; v != 0; v &= v - 1 {
		n++
	}
	return n
}

func (m ModSet) String() string {
	var parts []string
	for _, e := range []struct {
		bit  ModSet
		name string
	}{
		{ModControl, "ctrl"},
		{ModOption, "option"},
		{ModShift, "shift"},
		{ModCommand, "cmd"},
		{ModCapsLock, "capslock"},
	} {
		if m&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "+")
}

// Binding is a chord: an optional standalone key plus a required modifier
// set. Key == KeyNone makes it a modifier-only chord.
type Binding struct {
	Key  Key
	Mods ModSet
}

// ModifierOnly reports whether the binding has no standalone key.
func (b Binding) ModifierOnly() bool { return b.Key == KeyNone }

func (b Binding) String() string {
	mods := b.Mods.String()
	if b.ModifierOnly() {
		return mods
	}
	name := keyName(b.Key)
	if mods == "" {
		return name
	}
	return mods + "+" + name
}

var modNames = map[string]ModSet{
	"ctrl":     ModControl,
	"control":  ModControl,
	"option":   ModOption,
	"alt":      ModOption,
	"shift":    ModShift,
	"cmd":      ModCommand,
	"command":  ModCommand,
	"meta":     ModCommand,
	"capslock": ModCapsLock,
}

var keyNames = map[string]Key{
	"space": KeySpace, "tab": KeyTab, "return": KeyReturn, "enter": KeyReturn,
	"escape": KeyEscape, "esc": KeyEscape,
	"a": KeyA, "b": KeyB, "c": KeyC, "d": KeyD, "e": KeyE, "f": KeyF,
	"g": KeyG, "h": KeyH, "i": KeyI, "j": KeyJ, "k": KeyK, "l": KeyL,
	"m": KeyM, "n": KeyN, "o": KeyO, "p": KeyP, "q": KeyQ, "r": KeyR,
	"s": KeyS, "t": KeyT, "u": KeyU, "v": KeyV, "w": KeyW, "x": KeyX,
	"y": KeyY, "z": KeyZ,
	"0": Key0, "1": Key1, "2": Key2, "3": Key3, "4": Key4,
	"5": Key5, "6": Key6, "7": Key7, "8": Key8, "9": Key9,
	"f1": KeyF1, "f2": KeyF2, "f3": KeyF3, "f4": KeyF4, "f5": KeyF5,
	"f6": KeyF6, "f7": KeyF7, "f8": KeyF8, "f9": KeyF9, "f10": KeyF10,
	"f11": KeyF11, "f12": KeyF12,
}

func keyName(k Key) string {
	for name, key := range keyNames {
		if key == k {
			// Prefer canonical aliases.
			if name == "enter" || name == "esc" {
				continue
			}
			return name
		}
	}
	switch k {
	case KeyControl:
		return "ctrl"
	case KeyOption:
		return "option"
	case KeyShift:
		return "shift"
	case KeyCommand:
		return "cmd"
	case KeyCapsLock:
		return "capslock"
	}
	return fmt.Sprintf("key(%d)", k)
}

// modifierBit maps a physical modifier key to its ModSet bit, or 0.
func modifierBit(k Key) ModSet {
	switch k {
	case KeyControl:
		return ModControl
	case KeyOption:
		return ModOption
	case KeyShift:
		return ModShift
	case KeyCommand:
		return ModCommand
	case KeyCapsLock:
		return ModCapsLock
	}
	return 0
}

// ParseCombo parses a combo string like "ctrl+shift+d" or the modifier-only
// form "ctrl+shift" into a Binding. At least one modifier is required; a
// bare key would swallow ordinary typing.
func ParseCombo(combo string) (Binding, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	if len(parts) == 0 || parts[0] == "" {
		return Binding{}, fmt.Errorf("%w: %q", ErrBindingInvalid, combo)
	}

	var b Binding
	seen := map[string]bool{}
	for i, p := range parts {
		if mod, ok := modNames[p]; ok {
			if seen[p] {
				continue
			}
			seen[p] = true
			b.Mods |= mod
			continue
		}
		key, ok := keyNames[p]
		if !ok {
			return Binding{}, fmt.Errorf("%w: unknown token %q in %q", ErrBindingInvalid, p, combo)
		}
		if i != len(parts)-1 {
			return Binding{}, fmt.Errorf("%w: key %q must come last in %q", ErrBindingInvalid, p, combo)
		}
		b.Key = key
	}

	if b.Mods == 0 {
		return Binding{}, fmt.Errorf("%w: %q needs at least one modifier", ErrBindingInvalid, combo)
	}
	return b, nil
}

// FormatBinding converts a binding to a display string with macOS modifier
// symbols, e.g. "ctrl+shift+d" -> "⌃⇧D".
func FormatBinding(b Binding) string {
	symbols := []struct {
		bit ModSet
		sym string
	}{
		{ModControl, "⌃"},
		{ModOption, "⌥"},
		{ModShift, "⇧"},
		{ModCommand, "⌘"},
		{ModCapsLock, "⇪"},
	}
	var out strings.Builder
	for _, s := range symbols {
		if b.Mods&s.bit != 0 {
			out.WriteString(s.sym)
		}
	}
	if !b.ModifierOnly() {
		name := keyName(b.Key)
		if len(name) == 1 {
			name = strings.ToUpper(name)
		} else {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		out.WriteString(name)
	}
	return out.String()
}

// KnownCombos lists parseable key tokens, for the control API.
func KnownCombos() []string {
	out := make([]string, 0, len(keyNames))
	for name := range keyNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
