package engine

import (
	"context"

	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"

	platerr "voicehold/internal/platform/errors"
)

// Transcriber turns a sealed sample sequence into raw text. Implementations
// own their network clients and must honor ctx cancellation; the router may
// abandon a call whose result no longer matters.
//
// Close stops the engine accepting new work but must let a call already in
// flight run to completion: the engine manager closes the previous engine
// immediately after a swap, while a raced transcription may still be using
// it.
type Transcriber interface {
	Name() string
	Ready() bool
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Close() error
}

// Refiner rewrites raw transcription text under an instruction prompt.
type Refiner interface {
	Name() string
	Refine(ctx context.Context, text string, instruction string) (string, error)
	Close() error
}

// TranscriberFactory builds a transcriber from its provider config block.
type TranscriberFactory func(cfg *config.ASRConfig, logger *logging.Logger) (Transcriber, error)

// RefinerFactory builds a refiner from its provider config block.
type RefinerFactory func(cfg *config.RefineConfig, logger *logging.Logger) (Refiner, error)

var (
	transcriberFactories = make(map[string]TranscriberFactory)
	refinerFactories     = make(map[string]RefinerFactory)
)

// RegisterTranscriber registers a transcriber factory under a provider type.
// Providers call this from init().
func RegisterTranscriber(typ string, factory TranscriberFactory) {
	transcriberFactories[typ] = factory
}

// RegisterRefiner registers a refiner factory under a provider type.
func RegisterRefiner(typ string, factory RefinerFactory) {
	refinerFactories[typ] = factory
}

// NewTranscriber creates a transcriber of the given provider type.
func NewTranscriber(typ string, cfg *config.ASRConfig, logger *logging.Logger) (Transcriber, error) {
	factory, ok := transcriberFactories[typ]
	if !ok {
		return nil, platerr.New(platerr.KindConfig, "engine.NewTranscriber", "unknown transcription provider type: "+typ)
	}
	t, err := factory(cfg, logger)
	if err != nil {
		return nil, platerr.Wrap(platerr.KindEngineNotReady, "engine.NewTranscriber", "create transcriber "+typ, err)
	}
	return t, nil
}

// NewRefiner creates a refiner of the given provider type.
func NewRefiner(typ string, cfg *config.RefineConfig, logger *logging.Logger) (Refiner, error) {
	factory, ok := refinerFactories[typ]
	if !ok {
		return nil, platerr.New(platerr.KindConfig, "engine.NewRefiner", "unknown refinement provider type: "+typ)
	}
	r, err := factory(cfg, logger)
	if err != nil {
		return nil, platerr.Wrap(platerr.KindEngineNotReady, "engine.NewRefiner", "create refiner "+typ, err)
	}
	return r, nil
}

// TranscriberTypes lists the registered transcription provider types.
func TranscriberTypes() []string {
	out := make([]string, 0, len(transcriberFactories))
	for typ := range transcriberFactories {
		out = append(out, typ)
	}
	return out
}

// RefinerTypes lists the registered refinement provider types.
func RefinerTypes() []string {
	out := make([]string, 0, len(refinerFactories))
	for typ := range refinerFactories {
		out = append(out, typ)
	}
	return out
}
