package trigger

import (
	"testing"

	"voicehold/internal/platform/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir(), Filename: "test.log"})
	if err != nil {
		t.Fatalf("create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

type recordingSink struct {
	starts   int
	stops    int
	rejected int
}

func (s *recordingSink) GestureStart()    { s.starts++ }
func (s *recordingSink) GestureStop()     { s.stops++ }
func (s *recordingSink) GestureRejected() { s.rejected++ }

func mustBinding(t *testing.T, combo string) Binding {
	t.Helper()
	b, err := ParseCombo(combo)
	if err != nil {
		t.Fatalf("ParseCombo(%q): %v", combo, err)
	}
	return b
}

func TestDetectorExactModifierMatch(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift+d"), sink, nil, testLogger(t))

	// Superset must not trigger.
	if got := d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift | ModCommand, Pressed: true}); got != PassThrough {
		t.Fatalf("superset chord should pass through")
	}
	// Subset must not trigger.
	if got := d.Handle(Event{Key: KeyD, Mods: ModControl, Pressed: true}); got != PassThrough {
		t.Fatalf("subset chord should pass through")
	}
	// Wrong key must not trigger.
	if got := d.Handle(Event{Key: KeyC, Mods: ModControl | ModShift, Pressed: true}); got != PassThrough {
		t.Fatalf("wrong key should pass through")
	}
	if sink.starts != 0 {
		t.Fatalf("no gesture should have started, got %d", sink.starts)
	}

	// Exact match triggers and is consumed.
	if got := d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: true}); got != Consume {
		t.Fatalf("exact chord should be consumed")
	}
	if sink.starts != 1 {
		t.Fatalf("expected one Start, got %d", sink.starts)
	}
}

func TestDetectorDebouncesAutoRepeat(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift+d"), sink, nil, testLogger(t))

	down := Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: true}
	d.Handle(down)
	for i := 0; i < 10; i++ {
		if got := d.Handle(down); got != Consume {
			t.Fatalf("auto-repeat event %d should be consumed", i)
		}
	}
	d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: false})

	if sink.starts != 1 || sink.stops != 1 {
		t.Fatalf("held gesture with auto-repeat: starts=%d stops=%d, want 1/1", sink.starts, sink.stops)
	}
}

func TestDetectorStopFiresDespiteModifierChange(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift+c"), sink, nil, testLogger(t))

	d.Handle(Event{Key: KeyC, Mods: ModControl | ModShift, Pressed: true})
	// User released shift a beat before the key.
	if got := d.Handle(Event{Key: KeyC, Mods: ModControl, Pressed: false}); got != Consume {
		t.Fatalf("key-up of the bound key should be consumed")
	}
	if sink.starts != 1 || sink.stops != 1 {
		t.Fatalf("starts=%d stops=%d, want 1/1", sink.starts, sink.stops)
	}
}

func TestDetectorRejectsWhenNotReady(t *testing.T) {
	sink := &recordingSink{}
	ready := false
	d := NewDetector(mustBinding(t, "ctrl+shift+d"), sink, func() bool { return ready }, testLogger(t))

	down := Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: true}
	up := Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: false}

	// The chord is still consumed so it never types into the focused app.
	if got := d.Handle(down); got != Consume {
		t.Fatalf("rejected chord should still be consumed")
	}
	if got := d.Handle(up); got != Consume {
		t.Fatalf("key-up of rejected chord should be consumed")
	}
	if sink.rejected != 1 || sink.starts != 0 || sink.stops != 0 {
		t.Fatalf("rejected=%d starts=%d stops=%d, want 1/0/0", sink.rejected, sink.starts, sink.stops)
	}

	ready = true
	d.Handle(down)
	d.Handle(up)
	if sink.starts != 1 || sink.stops != 1 {
		t.Fatalf("after engine became ready: starts=%d stops=%d, want 1/1", sink.starts, sink.stops)
	}
}

func TestDetectorInactivePassesThrough(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift+d"), sink, nil, testLogger(t))
	d.SetPermissionGranted(false)

	if got := d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: true}); got != PassThrough {
		t.Fatalf("inactive detector must pass everything through")
	}
	if sink.starts != 0 {
		t.Fatalf("inactive detector must not emit signals")
	}
	if d.Active() {
		t.Fatalf("Active() should be false")
	}
}

func TestDetectorPermissionLossMidGestureDropsGesture(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift+d"), sink, nil, testLogger(t))

	d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: true})
	d.SetPermissionGranted(false)
	d.SetPermissionGranted(true)

	// Key-up of the dropped gesture is no longer tracked.
	if got := d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: false}); got != PassThrough {
		t.Fatalf("key-up after permission loss should pass through")
	}
	if sink.stops != 0 {
		t.Fatalf("dropped gesture must not emit Stop")
	}
}

func TestDetectorConfigureAppliesToNextGesture(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift+d"), sink, nil, testLogger(t))

	d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: true})
	d.Configure(mustBinding(t, "ctrl+option+p"))
	// The in-flight gesture still closes against the old binding.
	d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: false})
	if sink.stops != 1 {
		t.Fatalf("in-flight gesture should finish against its starting binding")
	}

	// Old binding no longer matches, new one does.
	if got := d.Handle(Event{Key: KeyD, Mods: ModControl | ModShift, Pressed: true}); got != PassThrough {
		t.Fatalf("old binding should no longer match")
	}
	d.Handle(Event{Key: KeyP, Mods: ModControl | ModOption, Pressed: true})
	if sink.starts != 2 {
		t.Fatalf("new binding should match, starts=%d", sink.starts)
	}
}

func TestDetectorModifierOnlyChord(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift"), sink, nil, testLogger(t))

	// Press ctrl, then shift: peak reaches the target.
	d.Handle(Event{Key: KeyControl, Mods: ModControl, Pressed: true})
	d.Handle(Event{Key: KeyShift, Mods: ModControl | ModShift, Pressed: true})
	if sink.starts != 0 {
		t.Fatalf("gesture must not start while modifiers are still going down")
	}

	// First release commits the gesture.
	if got := d.Handle(Event{Key: KeyShift, Mods: ModControl, Pressed: false}); got != Consume {
		t.Fatalf("committing release should be consumed")
	}
	if sink.starts != 1 {
		t.Fatalf("expected Start on peak recede, got %d", sink.starts)
	}

	// Last release ends it.
	d.Handle(Event{Key: KeyControl, Mods: 0, Pressed: false})
	if sink.stops != 1 {
		t.Fatalf("expected Stop when last modifier released, got %d", sink.stops)
	}
}

func TestDetectorModifierOnlyOvershootByExtraModifier(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift"), sink, nil, testLogger(t))

	// On the way to ctrl+shift+cmd: the peak exceeds the target.
	d.Handle(Event{Key: KeyControl, Mods: ModControl, Pressed: true})
	d.Handle(Event{Key: KeyShift, Mods: ModControl | ModShift, Pressed: true})
	d.Handle(Event{Key: KeyCommand, Mods: ModControl | ModShift | ModCommand, Pressed: true})
	d.Handle(Event{Key: KeyCommand, Mods: ModControl | ModShift, Pressed: false})
	d.Handle(Event{Key: KeyShift, Mods: ModControl, Pressed: false})
	d.Handle(Event{Key: KeyControl, Mods: 0, Pressed: false})

	if sink.starts != 0 || sink.stops != 0 {
		t.Fatalf("overshot sequence must not trigger: starts=%d stops=%d", sink.starts, sink.stops)
	}

	// The sequence state fully resets: a clean chord afterwards works.
	d.Handle(Event{Key: KeyControl, Mods: ModControl, Pressed: true})
	d.Handle(Event{Key: KeyShift, Mods: ModControl | ModShift, Pressed: true})
	d.Handle(Event{Key: KeyShift, Mods: ModControl, Pressed: false})
	d.Handle(Event{Key: KeyControl, Mods: 0, Pressed: false})
	if sink.starts != 1 || sink.stops != 1 {
		t.Fatalf("clean chord after reset: starts=%d stops=%d, want 1/1", sink.starts, sink.stops)
	}
}

func TestDetectorModifierOnlyOvershootByRealKey(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift"), sink, nil, testLogger(t))

	// ctrl+shift held to type a capital: the real key invalidates it.
	d.Handle(Event{Key: KeyControl, Mods: ModControl, Pressed: true})
	d.Handle(Event{Key: KeyShift, Mods: ModControl | ModShift, Pressed: true})
	if got := d.Handle(Event{Key: KeyT, Mods: ModControl | ModShift, Pressed: true}); got != PassThrough {
		t.Fatalf("real keystroke during modifier sequence must pass through")
	}
	d.Handle(Event{Key: KeyT, Mods: ModControl | ModShift, Pressed: false})
	d.Handle(Event{Key: KeyShift, Mods: ModControl, Pressed: false})
	d.Handle(Event{Key: KeyControl, Mods: 0, Pressed: false})

	if sink.starts != 0 {
		t.Fatalf("modifier chord used for typing must not trigger, starts=%d", sink.starts)
	}
}

func TestDetectorModifierOnlyReleasedAtOnce(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(mustBinding(t, "ctrl+shift"), sink, nil, testLogger(t))

	d.Handle(Event{Key: KeyControl, Mods: ModControl, Pressed: true})
	d.Handle(Event{Key: KeyShift, Mods: ModControl | ModShift, Pressed: true})
	// Both keys up between polls: the single release event carries Mods == 0.
	d.Handle(Event{Key: KeyShift, Mods: 0, Pressed: false})

	if sink.starts != 1 || sink.stops != 1 {
		t.Fatalf("all-at-once release must emit a balanced pair: starts=%d stops=%d", sink.starts, sink.stops)
	}
}
