package bootstrap

import (
	"sync"

	"voicehold/internal/domain/engine"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"

	platerr "voicehold/internal/platform/errors"
)

// EngineManager builds providers from config blocks and installs them on
// the router. It implements the control API's engine-selection surface.
type EngineManager struct {
	mu     sync.Mutex
	cfg    *config.Config
	router *engine.Router
	logger *logging.Logger

	asrName    string
	refineName string
}

func NewEngineManager(cfg *config.Config, router *engine.Router, logger *logging.Logger) *EngineManager {
	return &EngineManager{cfg: cfg, router: router, logger: logger}
}

// SelectTranscriber builds the named provider and swaps it in. The previous
// engine is closed after the swap; its in-flight call, if any, finishes on
// the instance it started with.
func (m *EngineManager) SelectTranscriber(name string) error {
	const op = "bootstrap.EngineManager.SelectTranscriber"

	m.mu.Lock()
	defer m.mu.Unlock()

	block, ok := m.cfg.ASR[name]
	if !ok {
		return platerr.New(platerr.KindConfig, op, "no ASR provider named "+name)
	}
	t, err := engine.NewTranscriber(block.Type, &block, m.logger)
	if err != nil {
		return err
	}

	if prev := m.router.SwapTranscriber(t); prev != nil {
		if err := prev.Close(); err != nil {
			m.logger.WarnTag("ASR", "close previous engine: %v", err)
		}
	}
	m.asrName = name
	return nil
}

// SelectRefiner builds the named refiner and swaps it in.
func (m *EngineManager) SelectRefiner(name string) error {
	const op = "bootstrap.EngineManager.SelectRefiner"

	m.mu.Lock()
	defer m.mu.Unlock()

	block, ok := m.cfg.Refine[name]
	if !ok {
		return platerr.New(platerr.KindConfig, op, "no refinement provider named "+name)
	}
	r, err := engine.NewRefiner(block.Type, &block, m.logger)
	if err != nil {
		return err
	}

	if prev := m.router.SwapRefiner(r); prev != nil {
		if err := prev.Close(); err != nil {
			m.logger.WarnTag("REFINE", "close previous refiner: %v", err)
		}
	}
	m.refineName = name
	return nil
}

// TranscriberName returns the selected ASR provider's config name.
func (m *EngineManager) TranscriberName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asrName
}

// RefinerName returns the selected refinement provider's config name.
func (m *EngineManager) RefinerName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refineName
}
