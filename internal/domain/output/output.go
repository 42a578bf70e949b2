// Package output delivers finished transcriptions. The daemon core stops at
// a Sink boundary; the platform-specific injector (paste synthesis,
// clipboard restore) lives outside this module and plugs in here.
package output

import (
	"context"

	"voicehold/internal/domain/notify"
	"voicehold/internal/platform/logging"
)

// FinalText is one finished transcription ready for delivery.
type FinalText struct {
	SessionID         string
	Text              string
	RawText           string
	Engine            string
	RefinementApplied bool
	// Fallback marks raw text delivered because refinement failed or
	// timed out.
	Fallback     bool
	AudioSeconds float64
	ElapsedMS    int64
}

// Sink receives final text. Implementations must tolerate being called from
// the pipeline goroutine and should return quickly.
type Sink interface {
	Deliver(ctx context.Context, text FinalText) error
}

// LogSink writes final text to the structured log. It is the default sink
// when no injector is attached, and always runs in front of one during
// debugging.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, text FinalText) error {
	if text.Fallback {
		s.logger.WarnTag("OUTPUT", "delivering raw text (refinement fell back): %q", text.Text)
		return nil
	}
	s.logger.InfoTag("OUTPUT", "delivering %d chars from %s", len(text.Text), text.Engine)
	return nil
}

// BusSink publishes final text on the event bus so the history store and
// the control API see it without the pipeline knowing they exist.
type BusSink struct {
	bus *notify.Bus
}

func NewBusSink(bus *notify.Bus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Deliver(ctx context.Context, text FinalText) error {
	s.bus.PublishAsync(notify.EventTextFinal, notify.TextEventData{
		SessionID:         text.SessionID,
		Text:              text.Text,
		RawText:           text.RawText,
		Engine:            text.Engine,
		RefinementApplied: text.RefinementApplied,
		Fallback:          text.Fallback,
		AudioSeconds:      text.AudioSeconds,
		ElapsedMS:         text.ElapsedMS,
	})
	return nil
}

// MultiSink fans delivery out to several sinks. The first error is
// returned; remaining sinks still run.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, text FinalText) error {
	var firstErr error
	for _, s := range m {
		if err := s.Deliver(ctx, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
