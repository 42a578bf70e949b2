// Package pipeline owns the Idle/Recording/Processing state machine and the
// two-stage transcribe-then-refine run that turns a sealed gesture into
// delivered text.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"voicehold/internal/domain/audio"
	"voicehold/internal/domain/notify"
	"voicehold/internal/domain/output"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"
	"voicehold/internal/platform/observability"

	platerr "voicehold/internal/platform/errors"
)

// Recorder is the capture surface the orchestrator drives. audio.Capture
// implements it; tests inject fakes.
type Recorder interface {
	StartRecording(ctx context.Context) error
	StopRecording() ([]float32, error)
	IsRecording() bool
}

// Engines is the transcription surface, satisfied by engine.Router.
type Engines interface {
	Ready() bool
	TranscriberName() string
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Refine(ctx context.Context, text string, instruction string) (string, error)
}

// Orchestrator drives one gesture at a time through capture and the
// two-stage pipeline. Gesture entry points are serialized by the caller (the
// detector relay delivers one signal at a time); the mutex guards against
// control-API calls arriving from other goroutines.
type Orchestrator struct {
	mu    sync.Mutex
	state State
	cfg   config.PipelineConfig

	recorder Recorder
	engines  Engines
	sink     output.Sink
	bus      *notify.Bus
	logger   *logging.Logger

	session      *Session
	recordCancel context.CancelFunc

	processing atomic.Bool
	generation atomic.Uint64
}

// New wires the orchestrator. All collaborators are required except the
// sink, which defaults to a log-only sink when nil.
func New(recorder Recorder, engines Engines, sink output.Sink, bus *notify.Bus, cfg config.PipelineConfig, logger *logging.Logger) *Orchestrator {
	if sink == nil {
		sink = output.NewLogSink(logger)
	}
	return &Orchestrator{
		state:    StateIdle,
		cfg:      cfg,
		recorder: recorder,
		engines:  engines,
		sink:     sink,
		bus:      bus,
		logger:   logger,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Ready reports whether a Start gesture can be honored right now. The
// detector polls this from the event-interception path, so it is a cheap
// boolean read.
func (o *Orchestrator) Ready() bool {
	return o.engines.Ready()
}

// SetPipelineConfig replaces timeouts and flags. Takes effect on the next
// gesture; the running pipeline keeps the values it started with.
func (o *Orchestrator) SetPipelineConfig(cfg config.PipelineConfig) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
	o.logger.InfoTag("PIPELINE", "config replaced: transcribe=%s refine=%s refinement=%v",
		cfg.TranscribeTimeout(), cfg.RefineTimeout(), cfg.RefinementEnabled)
}

// StartRecording begins capture for a new gesture. Idempotent while already
// Recording. A Start during Processing is rejected, not queued.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	const op = "pipeline.Orchestrator.StartRecording"

	o.mu.Lock()
	switch o.state {
	case StateRecording:
		o.mu.Unlock()
		return nil
	case StateProcessing:
		o.mu.Unlock()
		o.logger.WarnTag("PIPELINE", "start rejected: previous gesture still processing")
		o.bus.PublishAsync(notify.EventSessionRejected, notify.SessionEventData{Reason: "busy"})
		return platerr.New(platerr.KindTrigger, op, "pipeline busy")
	}

	if !o.engines.Ready() {
		o.mu.Unlock()
		o.logger.WarnTag("PIPELINE", "start rejected: engine not ready")
		o.bus.PublishAsync(notify.EventSessionRejected, notify.SessionEventData{Reason: "engine not ready"})
		return platerr.New(platerr.KindEngineNotReady, op, "no transcription engine ready")
	}

	sess := newSession()
	recordCtx, cancel := context.WithCancel(ctx)
	if err := o.recorder.StartRecording(recordCtx); err != nil {
		cancel()
		o.mu.Unlock()
		o.bus.PublishAsync(notify.EventPipelineError, notify.ErrorEventData{
			SessionID: sess.ID, Stage: "capture", Message: err.Error(),
		})
		return platerr.Wrap(platerr.KindPermission, op, "start capture", err)
	}
	o.session = sess
	o.recordCancel = cancel
	o.state = StateRecording
	o.mu.Unlock()

	o.logger.InfoTag("PIPELINE", "session %s recording", sess.ID)
	o.bus.PublishAsync(notify.EventSessionStarted, notify.SessionEventData{SessionID: sess.ID})
	return nil
}

// StopRecording seals the buffer and hands the session to the pipeline. A
// Stop while not Recording is a no-op.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	const op = "pipeline.Orchestrator.StopRecording"

	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return nil
	}

	sess := o.session
	o.session = nil
	if o.recordCancel != nil {
		defer o.recordCancel()
		o.recordCancel = nil
	}

	pcm, err := o.recorder.StopRecording()
	if err != nil {
		o.state = StateIdle
		o.mu.Unlock()
		o.bus.PublishAsync(notify.EventPipelineError, notify.ErrorEventData{
			SessionID: sess.ID, Stage: "capture", Message: err.Error(),
		})
		return platerr.Wrap(platerr.KindPermission, op, "stop capture", err)
	}

	if len(pcm) == 0 {
		o.state = StateIdle
		o.mu.Unlock()
		o.logger.InfoTag("PIPELINE", "session %s sealed empty, nothing to transcribe", sess.ID)
		o.bus.PublishAsync(notify.EventSessionCancelled, notify.SessionEventData{SessionID: sess.ID, Reason: "empty"})
		return nil
	}

	sess.Samples = pcm
	sess.SealedAt = time.Now()
	o.state = StateProcessing
	o.mu.Unlock()

	o.logger.InfoTag("PIPELINE", "session %s sealed %.2fs of audio", sess.ID, audio.Duration(pcm))
	go func() {
		if err := o.ProcessSealedAudio(ctx, sess); err != nil {
			o.logger.ErrorTag("PIPELINE", "session %s: %v", sess.ID, err)
		}
	}()
	return nil
}

// SetIdle is the recovery hook: it forces the state machine back to Idle and
// cancels any live capture. The control API exposes it for a stuck daemon.
func (o *Orchestrator) SetIdle() {
	o.mu.Lock()
	if o.recordCancel != nil {
		o.recordCancel()
		o.recordCancel = nil
	}
	if o.state == StateRecording {
		_, _ = o.recorder.StopRecording()
	}
	o.session = nil
	o.state = StateIdle
	o.mu.Unlock()
	o.logger.InfoTag("PIPELINE", "forced idle")
}

func (o *Orchestrator) toIdle() {
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}

// ProcessSealedAudio runs the two-stage pipeline for one sealed session.
// Single-flight: a second concurrent invocation fails immediately. The state
// machine returns to Idle on every path.
func (o *Orchestrator) ProcessSealedAudio(ctx context.Context, sess *Session) error {
	const op = "pipeline.Orchestrator.ProcessSealedAudio"

	if !o.processing.CompareAndSwap(false, true) {
		return platerr.New(platerr.KindTrigger, op, "pipeline already processing")
	}
	defer o.processing.Store(false)

	gen := o.generation.Add(1)
	start := time.Now()

	o.mu.Lock()
	cfg := o.cfg
	o.mu.Unlock()

	ctx, end := observability.StartSpan(ctx, "pipeline", "process")

	// Stage 1: transcription. Timeout or failure aborts the gesture.
	raw, err := raceStage(ctx, cfg.TranscribeTimeout(), func(stageCtx context.Context) (string, error) {
		return o.engines.Transcribe(stageCtx, sess.Samples)
	}, func(text string, lateErr error) {
		o.logger.WarnTag("PIPELINE", "session %s run %d: late transcription result discarded (%d chars, err=%v)",
			sess.ID, gen, len(text), lateErr)
	})
	if err != nil {
		o.toIdle()
		wrapped := platerr.Wrap(platerr.KindTranscription, op, "stage 1", err)
		end(wrapped)
		o.bus.PublishAsync(notify.EventPipelineError, notify.ErrorEventData{
			SessionID: sess.ID, Stage: "transcribe", Message: err.Error(),
		})
		return wrapped
	}

	text := cleanTranscription(raw)
	if text == "" {
		o.toIdle()
		end(nil)
		o.logger.InfoTag("PIPELINE", "session %s produced no speech", sess.ID)
		o.bus.PublishAsync(notify.EventSessionCancelled, notify.SessionEventData{SessionID: sess.ID, Reason: "no speech"})
		return nil
	}

	// Stage 2: refinement. Never a hard dependency; any failure falls back
	// to the raw text.
	final := text
	applied := false
	fellBack := false
	if cfg.RefinementEnabled {
		refined, err := raceStage(ctx, cfg.RefineTimeout(), func(stageCtx context.Context) (string, error) {
			return o.engines.Refine(stageCtx, text, cfg.InstructionPrompt)
		}, func(refined string, lateErr error) {
			o.logger.WarnTag("PIPELINE", "session %s run %d: late refinement result discarded", sess.ID, gen)
		})
		switch {
		case err != nil:
			fellBack = true
			o.logger.WarnTag("PIPELINE", "session %s refinement failed, falling back to raw text: %v", sess.ID, err)
		case cleanTranscription(refined) == "":
			fellBack = true
			o.logger.WarnTag("PIPELINE", "session %s refinement returned nothing, falling back to raw text", sess.ID)
		default:
			final = refined
			applied = true
		}
	}

	elapsed := time.Since(start)
	deliverErr := o.sink.Deliver(ctx, output.FinalText{
		SessionID:         sess.ID,
		Text:              final,
		RawText:           text,
		Engine:            o.engines.TranscriberName(),
		RefinementApplied: applied,
		Fallback:          fellBack,
		AudioSeconds:      audio.Duration(sess.Samples),
		ElapsedMS:         elapsed.Milliseconds(),
	})
	o.toIdle()
	end(deliverErr)

	o.logger.InfoTiming("session %s: %.2fs audio -> %d chars in %s (refined=%v fallback=%v)",
		sess.ID, audio.Duration(sess.Samples), len(final), elapsed.Round(time.Millisecond), applied, fellBack)

	if deliverErr != nil {
		return platerr.Wrap(platerr.KindUnknown, op, "deliver", deliverErr)
	}
	return nil
}
