package trigger

import (
	"sync"
	"sync/atomic"

	"voicehold/internal/platform/logging"
)

// Action is the detector's verdict on a single input event. The event
// interceptor sits in the path that decides whether a keystroke reaches
// other applications, so Handle must return in microseconds.
type Action int

const (
	PassThrough Action = iota
	Consume
)

// Event is one raw system input event. Mods is the live modifier set after
// the event has been applied.
type Event struct {
	Key     Key
	Mods    ModSet
	Pressed bool
}

// GestureSink receives Start/Stop/Rejected signals. Implementations must
// not block: the detector calls them from the event-interception path.
// Bootstrap relays them onto a buffered channel, same as the hotkey relay
// in the capture daemon this grew out of.
type GestureSink interface {
	GestureStart()
	GestureStop()
	GestureRejected()
}

// ReadyFunc reports whether a Start signal can currently be honored. It
// must be a plain boolean read; the detector never waits on it.
type ReadyFunc func() bool

// Detector observes the system-wide key event stream, matches events
// against the configured chord, and emits exactly one Start and one Stop
// per physical gesture.
//
// Matching rules:
//   - Start requires the bound key down with the live modifier set exactly
//     equal to the bound set. Supersets and subsets never match.
//   - Stop fires on key-up of the bound key regardless of which modifiers
//     are still held; users release modifiers fractionally early.
//   - Modifier-only chords track the peak modifier set of a press sequence
//     and commit when the peak recedes, so "hold ctrl+shift then let go"
//     triggers but "ctrl+shift on the way to ctrl+shift+cmd" does not.
type Detector struct {
	mu      sync.Mutex
	binding Binding
	sink    GestureSink
	ready   ReadyFunc
	logger  *logging.Logger
	granted atomic.Bool

	// Gesture state. gesture* fields are snapshotted when a gesture begins
	// so a Configure mid-press never affects the in-flight gesture.
	pressed    bool
	started    bool
	gestureKey Key

	// Modifier-only sequence state.
	seqBinding Binding
	seqActive  bool
	peak       ModSet
	overshoot  bool
}

// NewDetector creates a detector with the given initial binding. The sink
// is fixed at construction; there are no ambient listeners.
func NewDetector(binding Binding, sink GestureSink, ready ReadyFunc, logger *logging.Logger) *Detector {
	d := &Detector{
		binding: binding,
		sink:    sink,
		ready:   ready,
		logger:  logger,
	}
	d.granted.Store(true)
	return d
}

// Configure replaces the active binding. Safe at any time; an in-progress
// gesture finishes against the binding it started with, the new one applies
// from the next gesture.
func (d *Detector) Configure(binding Binding) {
	d.mu.Lock()
	d.binding = binding
	d.mu.Unlock()
	d.logger.InfoTag("TRIGGER", "binding replaced: %s", binding)
}

// Binding returns the currently configured binding.
func (d *Detector) Binding() Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binding
}

// SetPermissionGranted flips the detector between active and inactive. When
// inactive every event passes through untouched. An external poller calls
// this when the OS input-monitoring permission changes; losing permission
// mid-gesture drops the gesture.
func (d *Detector) SetPermissionGranted(granted bool) {
	was := d.granted.Swap(granted)
	if was == granted {
		return
	}
	if !granted {
		d.mu.Lock()
		d.resetLocked()
		d.mu.Unlock()
		d.logger.WarnTag("TRIGGER", "input monitoring permission lost, detector inactive")
		return
	}
	d.logger.InfoTag("TRIGGER", "input monitoring permission granted, detector active")
}

// Active reports whether the detector is observing events.
func (d *Detector) Active() bool {
	return d.granted.Load()
}

func (d *Detector) resetLocked() {
	d.pressed = false
	d.started = false
	d.gestureKey = KeyNone
	d.seqActive = false
	d.peak = 0
	d.overshoot = false
}

type signal int

const (
	sigNone signal = iota
	sigStart
	sigStop
	sigRejected
)

// Handle decides Consume/PassThrough for one event and emits Start/Stop
// through the sink as a side effect. It holds only a short lock and never
// performs I/O.
func (d *Detector) Handle(ev Event) Action {
	if !d.granted.Load() {
		return PassThrough
	}

	d.mu.Lock()
	var action Action
	var sigs []signal
	if d.activeBindingLocked().ModifierOnly() {
		action, sigs = d.handleModifierOnlyLocked(ev)
	} else {
		action, sigs = d.handleChordLocked(ev)
	}
	d.mu.Unlock()

	for _, sig := range sigs {
		switch sig {
		case sigStart:
			d.sink.GestureStart()
		case sigStop:
			d.sink.GestureStop()
		case sigRejected:
			d.sink.GestureRejected()
		}
	}
	return action
}

// activeBindingLocked returns the binding governing the current moment: the
// snapshotted one while a gesture or sequence is live, the configured one
// otherwise.
func (d *Detector) activeBindingLocked() Binding {
	if d.pressed || d.seqActive {
		return d.seqBinding
	}
	d.seqBinding = d.binding
	return d.binding
}

func (d *Detector) handleChordLocked(ev Event) (Action, []signal) {
	b := d.activeBindingLocked()

	if ev.Pressed {
		if d.pressed && ev.Key == d.gestureKey {
			// Key auto-repeat inside a held gesture: swallow, no second Start.
			return Consume, nil
		}
		if !d.pressed && ev.Key == b.Key && ev.Mods == b.Mods {
			d.pressed = true
			d.gestureKey = ev.Key
			if d.ready == nil || d.ready() {
				d.started = true
				return Consume, []signal{sigStart}
			}
			// Engine not ready: consume the chord so it doesn't type into the
			// focused app, but signal a rejection instead of starting.
			d.started = false
			return Consume, []signal{sigRejected}
		}
		return PassThrough, nil
	}

	// Key-up. Stop fires for the bound key whatever the modifiers now are.
	if d.pressed && ev.Key == d.gestureKey {
		wasStarted := d.started
		d.pressed = false
		d.started = false
		d.gestureKey = KeyNone
		if wasStarted {
			return Consume, []signal{sigStop}
		}
		return Consume, nil
	}
	return PassThrough, nil
}

func (d *Detector) handleModifierOnlyLocked(ev Event) (Action, []signal) {
	b := d.activeBindingLocked()

	if ev.Pressed {
		if modifierBit(ev.Key) == 0 {
			// A real key during the sequence means the modifiers were held to
			// combine with something else. Invalidate until fully released.
			if d.seqActive {
				d.overshoot = true
			}
			return PassThrough, nil
		}
		if ev.Mods.Count() > 0 {
			d.seqActive = true
			if ev.Mods.Count() > d.peak.Count() {
				d.peak = ev.Mods
			}
		}
		return PassThrough, nil
	}

	// Modifier release.
	if !d.seqActive {
		return PassThrough, nil
	}

	if d.pressed {
		if ev.Mods == 0 {
			// Gesture ends when the last modifier goes up.
			d.resetLocked()
			return Consume, []signal{sigStop}
		}
		return PassThrough, nil
	}

	// Peak begins to recede: commit if the peak was exactly the target.
	if !d.overshoot && d.peak == b.Mods {
		if d.ready == nil || d.ready() {
			d.pressed = true
			d.started = true
			if ev.Mods == 0 {
				// Entire chord released at once: a zero-length gesture still
				// produces a balanced Start/Stop pair.
				d.resetLocked()
				return Consume, []signal{sigStart, sigStop}
			}
			return Consume, []signal{sigStart}
		}
		d.resetLocked()
		return Consume, []signal{sigRejected}
	}

	if ev.Mods == 0 {
		// Sequence over without a commit.
		d.resetLocked()
	}
	return PassThrough, nil
}
