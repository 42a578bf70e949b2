package bootstrap

import (
	"context"

	"voicehold/internal/domain/notify"
	"voicehold/internal/domain/pipeline"
	"voicehold/internal/platform/logging"
)

type gestureSignal int

const (
	gestureStart gestureSignal = iota
	gestureStop
	gestureRejected
)

// gestureRelay decouples the detector's event-interception path from the
// orchestrator. The detector hands signals to a buffered channel and returns
// immediately; the relay goroutine drives the orchestrator one signal at a
// time, which keeps state transitions totally ordered.
type gestureRelay struct {
	signals chan gestureSignal
	orch    *pipeline.Orchestrator
	bus     *notify.Bus
	logger  *logging.Logger
}

func newGestureRelay(orch *pipeline.Orchestrator, bus *notify.Bus, logger *logging.Logger) *gestureRelay {
	return &gestureRelay{
		signals: make(chan gestureSignal, 16),
		orch:    orch,
		bus:     bus,
		logger:  logger,
	}
}

func (r *gestureRelay) GestureStart()    { r.push(gestureStart) }
func (r *gestureRelay) GestureStop()     { r.push(gestureStop) }
func (r *gestureRelay) GestureRejected() { r.push(gestureRejected) }

func (r *gestureRelay) push(sig gestureSignal) {
	select {
	case r.signals <- sig:
	default:
		// A full queue means gestures are arriving faster than the pipeline
		// can even reject them. Dropping is safer than blocking the
		// event-interception path.
		r.logger.WarnTag("TRIGGER", "gesture queue full, signal dropped")
	}
}

// run processes signals until ctx ends.
func (r *gestureRelay) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-r.signals:
			switch sig {
			case gestureStart:
				if err := r.orch.StartRecording(ctx); err != nil {
					r.logger.WarnTag("TRIGGER", "start gesture: %v", err)
				}
			case gestureStop:
				if err := r.orch.StopRecording(ctx); err != nil {
					r.logger.WarnTag("TRIGGER", "stop gesture: %v", err)
				}
			case gestureRejected:
				// The detector consumed the chord but could not honor it;
				// the output boundary still owes the user feedback.
				r.logger.InfoTag("TRIGGER", "gesture rejected, engine not ready")
				r.bus.PublishAsync(notify.EventSessionRejected, notify.SessionEventData{Reason: "engine not ready"})
			}
		}
	}
}
