// Package bootstrap is the composition root: it loads configuration, builds
// every component with explicit dependencies, and owns the service
// lifecycle including graceful shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"voicehold/internal/domain/audio"
	"voicehold/internal/domain/engine"
	"voicehold/internal/domain/notify"
	"voicehold/internal/domain/output"
	"voicehold/internal/domain/pipeline"
	"voicehold/internal/domain/trigger"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"
	"voicehold/internal/platform/observability"
	"voicehold/internal/platform/storage"
	httptransport "voicehold/internal/transport/http"

	platerr "voicehold/internal/platform/errors"

	// Provider registration.
	_ "voicehold/internal/domain/engine/openaiasr"
	_ "voicehold/internal/domain/engine/openairefine"
	_ "voicehold/internal/domain/engine/wsasr"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platerr.Kind
	Execute   stepFn
}

type appState struct {
	config     *config.Config
	configPath string
	logger     *logging.Logger
	bus        *notify.Bus
	store      *storage.TranscriptStore
	router     *engine.Router
	engines    *EngineManager
	capture    *audio.Capture
	orch       *pipeline.Orchestrator
	detector   *trigger.Detector
	relay      *gestureRelay
	cues       *output.CuePlayer
}

// Run starts the whole daemon lifecycle: init graph, services, graceful
// shutdown on SIGINT/SIGTERM.
func Run(ctx context.Context) error {
	state := &appState{}

	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		return err
	}

	logger := state.logger
	defer logger.Close()
	defer state.bus.Close()
	if state.store != nil {
		defer state.store.Close()
	}
	defer state.router.Close()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	logger.InfoTag("BOOT", "voicehold ready: hotkey %s, engine %s",
		state.detector.Binding(), state.router.TranscriberName())

	return waitForShutdown(signalCtx, cancel, logger, group)
}

// InitGraph lists the initialisation steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platerr.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platerr.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "notify:init-bus",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init"},
			Kind:      platerr.KindBootstrap,
			Execute:   initBusStep,
		},
		{
			ID:        "storage:init-history",
			Title:     "Initialise transcript history",
			DependsOn: []string{"notify:init-bus"},
			Kind:      platerr.KindStorage,
			Execute:   initHistoryStep,
		},
		{
			ID:        "engine:init-router",
			Title:     "Initialise engines",
			DependsOn: []string{"logging:init"},
			Kind:      platerr.KindEngineNotReady,
			Execute:   initEnginesStep,
		},
		{
			ID:        "pipeline:init",
			Title:     "Initialise capture and pipeline",
			DependsOn: []string{"engine:init-router", "notify:init-bus"},
			Kind:      platerr.KindBootstrap,
			Execute:   initPipelineStep,
		},
		{
			ID:        "trigger:init",
			Title:     "Initialise trigger detector",
			DependsOn: []string{"pipeline:init"},
			Kind:      platerr.KindTrigger,
			Execute:   initTriggerStep,
		},
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platerr.New(platerr.KindBootstrap, step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep))
			}
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platerr.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platerr.KindBootstrap
			}
			return platerr.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func loadConfigStep(ctx context.Context, state *appState) error {
	result, err := config.NewLoader("").Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(ctx context.Context, state *appState) error {
	logger, err := logging.New(logging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return err
	}
	state.logger = logger
	observability.Setup(logger.Slog())

	if state.configPath != "" {
		logger.InfoTag("BOOT", "configuration loaded from %s", state.configPath)
	} else {
		logger.InfoTag("BOOT", "no config file found, using defaults")
	}
	return nil
}

func initBusStep(ctx context.Context, state *appState) error {
	state.bus = notify.NewBus(4)
	return nil
}

func initHistoryStep(ctx context.Context, state *appState) error {
	if !state.config.History.Enabled {
		return nil
	}
	store, err := storage.NewTranscriptStore(state.config.History.Path, state.config.History.Limit, state.logger)
	if err != nil {
		return err
	}
	if err := store.Attach(state.bus); err != nil {
		return err
	}
	state.store = store
	return nil
}

func initEnginesStep(ctx context.Context, state *appState) error {
	state.router = engine.NewRouter(state.logger)
	state.engines = NewEngineManager(state.config, state.router, state.logger)

	// A missing engine is not fatal: the daemon runs, the detector rejects
	// Start gestures, and the control API can install an engine later.
	if err := state.engines.SelectTranscriber(state.config.Selected.ASR); err != nil {
		state.logger.WarnTag("BOOT", "transcription engine unavailable, gestures will be rejected: %v", err)
	}
	// Refinement is optional: a missing or broken refiner only disables
	// stage 2, it never stops the daemon.
	if state.config.Pipeline.RefinementEnabled {
		if err := state.engines.SelectRefiner(state.config.Selected.Refine); err != nil {
			state.logger.WarnTag("BOOT", "refiner unavailable, continuing without refinement: %v", err)
		}
	}
	return nil
}

func initPipelineStep(ctx context.Context, state *appState) error {
	ringCapacity := state.config.Audio.SampleRate * state.config.Audio.MaxSeconds
	ring := audio.NewRingBuffer(ringCapacity)
	state.capture = audio.NewCapture(audio.NewNullBackend(), ring, state.logger)

	sink := output.MultiSink{
		output.NewLogSink(state.logger),
		output.NewBusSink(state.bus),
	}
	state.orch = pipeline.New(state.capture, state.router, sink, state.bus, state.config.Pipeline, state.logger)

	if state.config.Cues.Enabled {
		// No playback device is wired in this build; the player stays
		// constructed so an injector can attach one.
		state.cues = output.NewCuePlayer(state.config.Cues.Dir, nil, state.logger)
		if err := state.cues.Attach(state.bus); err != nil {
			return err
		}
	}
	return nil
}

func initTriggerStep(ctx context.Context, state *appState) error {
	binding, err := trigger.ParseCombo(state.config.Hotkey.Combo)
	if err != nil {
		return err
	}
	state.relay = newGestureRelay(state.orch, state.bus, state.logger)
	state.detector = trigger.NewDetector(binding, state.relay, state.orch.Ready, state.logger)
	return nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	g.Go(func() error {
		return state.relay.run(groupCtx)
	})

	if state.config.Web.Enabled {
		if err := startHTTPServer(state, g, groupCtx); err != nil {
			return err
		}
	}
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	router, err := httptransport.Build(httptransport.Options{
		LogLevel: state.config.Log.Level,
		Logger:   state.logger,
	})
	if err != nil {
		return platerr.Wrap(platerr.KindTransport, "http:start-server", "build router", err)
	}

	httptransport.NewHandlers(
		state.orch, state.detector, state.engines, state.store,
		state.config, state.bus, state.logger,
	).Register(router.API)

	addr := net.JoinHostPort(state.config.Web.Host, strconv.Itoa(state.config.Web.Port))
	server := &http.Server{Addr: addr, Handler: router.Engine}

	g.Go(func() error {
		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				state.logger.ErrorTag("HTTP", "shutdown: %v", err)
			}
		}()

		state.logger.InfoTag("HTTP", "control API listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return platerr.Wrap(platerr.KindTransport, "http:serve", "control API", err)
		}
		return nil
	})
	return nil
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger *logging.Logger, g *errgroup.Group) error {
	<-ctx.Done()
	logger.InfoTag("BOOT", "shutdown signal received, stopping services")

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}
