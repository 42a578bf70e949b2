package bootstrap

import (
	"context"
	"testing"
	"time"

	"voicehold/internal/domain/engine"
	"voicehold/internal/domain/notify"
	"voicehold/internal/domain/pipeline"
	"voicehold/internal/domain/trigger"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"

	platerr "voicehold/internal/platform/errors"
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

func TestInitGraphDependenciesAreOrdered(t *testing.T) {
	steps := InitGraph()
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				t.Fatalf("step %s depends on %s which has not run yet", step.ID, dep)
			}
		}
		seen[step.ID] = true
	}
}

func TestEngineManagerRejectsUnknownProvider(t *testing.T) {
	logger := testLogger(t)
	m := NewEngineManager(config.Default(), engine.NewRouter(logger), logger)

	err := m.SelectTranscriber("does-not-exist")
	if !platerr.IsKind(err, platerr.KindConfig) {
		t.Fatalf("expected KindConfig, got %v", err)
	}
	if m.TranscriberName() != "" {
		t.Fatalf("failed select must not change the active name")
	}
}

func TestEngineManagerSelectWiresRouter(t *testing.T) {
	logger := testLogger(t)
	router := engine.NewRouter(logger)

	cfg := config.Default()
	cfg.ASR["local"] = config.ASRConfig{Type: "openai", APIKey: "sk-test", ModelName: "whisper-1"}
	m := NewEngineManager(cfg, router, logger)

	if err := m.SelectTranscriber("local"); err != nil {
		t.Fatalf("SelectTranscriber: %v", err)
	}
	if m.TranscriberName() != "local" {
		t.Fatalf("active name not recorded: %q", m.TranscriberName())
	}
	if !router.Ready() {
		t.Fatalf("router must be ready after select")
	}
}

func TestGestureRelayDropsWhenQueueFull(t *testing.T) {
	logger := testLogger(t)
	// A relay that is never run: the queue fills and further pushes drop
	// instead of blocking.
	r := newGestureRelay(nil, nil, logger)
	for i := 0; i < 100; i++ {
		r.GestureStart()
	}
	if len(r.signals) != cap(r.signals) {
		t.Fatalf("queue should be full, have %d of %d", len(r.signals), cap(r.signals))
	}
}

func TestGestureRelayDrivesOrchestrator(t *testing.T) {
	logger := testLogger(t)
	bus := notify.NewBus(1)
	t.Cleanup(bus.Close)

	router := engine.NewRouter(logger)
	cfg := config.Default()
	cfg.ASR["local"] = config.ASRConfig{Type: "openai", APIKey: "sk-test"}
	m := NewEngineManager(cfg, router, logger)
	if err := m.SelectTranscriber("local"); err != nil {
		t.Fatalf("SelectTranscriber: %v", err)
	}

	rec := &nullRecorder{}
	orch := pipeline.New(rec, router, nil, bus, cfg.Pipeline, logger)
	relay := newGestureRelay(orch, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.run(ctx)

	relay.GestureStart()
	deadline := time.Now().Add(2 * time.Second)
	for orch.State() != pipeline.StateRecording && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if orch.State() != pipeline.StateRecording {
		t.Fatalf("relay never drove the orchestrator into Recording, state=%v", orch.State())
	}
}

func TestDetectorRejectionReachesBus(t *testing.T) {
	logger := testLogger(t)
	bus := notify.NewBus(1)
	t.Cleanup(bus.Close)

	rejections := make(chan notify.SessionEventData, 1)
	if err := bus.Subscribe(notify.EventSessionRejected, func(data notify.SessionEventData) {
		rejections <- data
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// No transcriber installed: the detector's ready probe fails and the
	// chord is consumed without a Start.
	router := engine.NewRouter(logger)
	orch := pipeline.New(&nullRecorder{}, router, nil, bus, config.Default().Pipeline, logger)
	relay := newGestureRelay(orch, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.run(ctx)

	binding, err := trigger.ParseCombo("ctrl+shift+d")
	if err != nil {
		t.Fatalf("ParseCombo: %v", err)
	}
	det := trigger.NewDetector(binding, relay, orch.Ready, logger)

	if act := det.Handle(trigger.Event{Key: trigger.KeyD, Mods: trigger.ModControl | trigger.ModShift, Pressed: true}); act != trigger.Consume {
		t.Fatalf("rejected chord must still be consumed, got %v", act)
	}
	det.Handle(trigger.Event{Key: trigger.KeyD, Pressed: false})

	select {
	case data := <-rejections:
		if data.Reason != "engine not ready" {
			t.Fatalf("unexpected rejection reason %q", data.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("rejection never reached the output boundary bus")
	}
	if orch.State() != pipeline.StateIdle {
		t.Fatalf("rejection must not leave the pipeline in %v", orch.State())
	}
}

type nullRecorder struct{ recording bool }

func (n *nullRecorder) StartRecording(ctx context.Context) error { n.recording = true; return nil }
func (n *nullRecorder) StopRecording() ([]float32, error)        { n.recording = false; return nil, nil }
func (n *nullRecorder) IsRecording() bool                        { return n.recording }
