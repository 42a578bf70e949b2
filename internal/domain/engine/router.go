package engine

import (
	"context"
	"sync"

	"voicehold/internal/platform/logging"
	"voicehold/internal/platform/observability"

	platerr "voicehold/internal/platform/errors"
)

// Router holds the active transcriber and refiner and lets the control API
// swap them at runtime. Calls snapshot the engine under a short lock and run
// against the snapshot, so an in-flight transcription keeps the engine it
// started with while new calls see the replacement immediately.
type Router struct {
	mu          sync.Mutex
	transcriber Transcriber
	refiner     Refiner
	logger      *logging.Logger
}

// NewRouter creates a router with no engines installed. Transcribe and
// Refine fail with KindEngineNotReady until a swap installs one.
func NewRouter(logger *logging.Logger) *Router {
	return &Router{logger: logger}
}

// SwapTranscriber installs a new transcriber and returns the previous one
// for the caller to close. Close on an engine is non-disruptive (see
// Transcriber), so closing right after the swap is safe even with a call
// still in flight.
func (r *Router) SwapTranscriber(t Transcriber) Transcriber {
	r.mu.Lock()
	prev := r.transcriber
	r.transcriber = t
	r.mu.Unlock()
	if t != nil {
		r.logger.InfoTag("ASR", "transcription engine -> %s", t.Name())
	}
	return prev
}

// SwapRefiner installs a new refiner and returns the previous one.
func (r *Router) SwapRefiner(rf Refiner) Refiner {
	r.mu.Lock()
	prev := r.refiner
	r.refiner = rf
	r.mu.Unlock()
	if rf != nil {
		r.logger.InfoTag("REFINE", "refinement engine -> %s", rf.Name())
	}
	return prev
}

// Ready reports whether a transcriber is installed and warmed up. The
// trigger detector polls this before honoring a Start gesture.
func (r *Router) Ready() bool {
	r.mu.Lock()
	t := r.transcriber
	r.mu.Unlock()
	return t != nil && t.Ready()
}

// TranscriberName returns the active transcriber's name, or "".
func (r *Router) TranscriberName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transcriber == nil {
		return ""
	}
	return r.transcriber.Name()
}

// RefinerName returns the active refiner's name, or "".
func (r *Router) RefinerName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refiner == nil {
		return ""
	}
	return r.refiner.Name()
}

// Transcribe runs the active transcriber against a sealed sample sequence.
func (r *Router) Transcribe(ctx context.Context, samples []float32) (string, error) {
	const op = "engine.Router.Transcribe"

	r.mu.Lock()
	t := r.transcriber
	r.mu.Unlock()
	if t == nil {
		return "", platerr.New(platerr.KindEngineNotReady, op, "no transcription engine installed")
	}

	ctx, end := observability.StartSpan(ctx, "engine", "transcribe")
	text, err := t.Transcribe(ctx, samples)
	end(err)
	if err != nil {
		return "", platerr.Wrap(platerr.KindTranscription, op, t.Name(), err)
	}
	return text, nil
}

// Refine runs the active refiner. When none is installed the raw text is
// returned unchanged; absence of a refiner is a configuration, not an error.
func (r *Router) Refine(ctx context.Context, text string, instruction string) (string, error) {
	const op = "engine.Router.Refine"

	r.mu.Lock()
	rf := r.refiner
	r.mu.Unlock()
	if rf == nil {
		return text, nil
	}

	ctx, end := observability.StartSpan(ctx, "engine", "refine")
	refined, err := rf.Refine(ctx, text, instruction)
	end(err)
	if err != nil {
		return "", platerr.Wrap(platerr.KindRefinement, op, rf.Name(), err)
	}
	return refined, nil
}

// Close shuts both engines down.
func (r *Router) Close() error {
	r.mu.Lock()
	t, rf := r.transcriber, r.refiner
	r.transcriber, r.refiner = nil, nil
	r.mu.Unlock()

	var firstErr error
	if t != nil {
		if err := t.Close(); err != nil {
			firstErr = err
		}
	}
	if rf != nil {
		if err := rf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
