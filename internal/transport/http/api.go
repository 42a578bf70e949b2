package httptransport

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"voicehold/internal/domain/notify"
	"voicehold/internal/domain/pipeline"
	"voicehold/internal/domain/trigger"
	"voicehold/internal/platform/config"
	"voicehold/internal/platform/logging"
	"voicehold/internal/platform/storage"
)

// Pipeline is the orchestrator surface the API exposes.
type Pipeline interface {
	State() pipeline.State
	SetIdle()
	SetPipelineConfig(cfg config.PipelineConfig)
}

// Engines selects active providers by name. Implemented in bootstrap where
// provider construction lives.
type Engines interface {
	SelectTranscriber(name string) error
	SelectRefiner(name string) error
	TranscriberName() string
	RefinerName() string
}

// Handlers owns the control-API endpoints. mu serializes writes to the
// shared config; gin serves requests from concurrent goroutines.
type Handlers struct {
	mu       sync.Mutex
	pipeline Pipeline
	detector *trigger.Detector
	engines  Engines
	store    *storage.TranscriptStore
	cfg      *config.Config
	bus      *notify.Bus
	logger   *logging.Logger
	started  time.Time
}

// NewHandlers wires the endpoints. store may be nil when history is
// disabled.
func NewHandlers(p Pipeline, d *trigger.Detector, e Engines, store *storage.TranscriptStore, cfg *config.Config, bus *notify.Bus, logger *logging.Logger) *Handlers {
	return &Handlers{
		pipeline: p,
		detector: d,
		engines:  e,
		store:    store,
		cfg:      cfg,
		bus:      bus,
		logger:   logger,
		started:  time.Now(),
	}
}

// Register mounts all endpoints on the API group.
func (h *Handlers) Register(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	api.GET("/state", h.getState)
	api.POST("/idle", h.postIdle)
	api.GET("/hotkey", h.getHotkey)
	api.PUT("/hotkey", h.putHotkey)
	api.GET("/engines", h.getEngines)
	api.PUT("/engine", h.putEngine)
	api.PUT("/pipeline", h.putPipeline)
	api.GET("/history", h.getHistory)
}

func (h *Handlers) getStatus(c *gin.Context) {
	cpuPercent := 0.0
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}
	memPercent := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	}

	RespondSuccess(c, http.StatusOK, gin.H{
		"state":           h.pipeline.State().String(),
		"hotkey":          h.detector.Binding().String(),
		"hotkey_display":  trigger.FormatBinding(h.detector.Binding()),
		"detector_active": h.detector.Active(),
		"asr_engine":      h.engines.TranscriberName(),
		"refine_engine":   h.engines.RefinerName(),
		"uptime_seconds":  int(time.Since(h.started).Seconds()),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPercent,
		"mem_percent":     memPercent,
	}, "")
}

func (h *Handlers) getState(c *gin.Context) {
	RespondSuccess(c, http.StatusOK, gin.H{"state": h.pipeline.State().String()}, "")
}

func (h *Handlers) postIdle(c *gin.Context) {
	h.pipeline.SetIdle()
	RespondSuccess(c, http.StatusOK, gin.H{"state": h.pipeline.State().String()}, "forced idle")
}

func (h *Handlers) getHotkey(c *gin.Context) {
	b := h.detector.Binding()
	RespondSuccess(c, http.StatusOK, gin.H{
		"combo":   b.String(),
		"display": trigger.FormatBinding(b),
	}, "")
}

type hotkeyRequest struct {
	Combo string `json:"combo" binding:"required"`
}

func (h *Handlers) putHotkey(c *gin.Context) {
	var req hotkeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "combo is required", nil)
		return
	}

	binding, err := trigger.ParseCombo(req.Combo)
	if err != nil {
		RespondError(c, http.StatusBadRequest, err.Error(), gin.H{"known_keys": trigger.KnownCombos()})
		return
	}

	h.detector.Configure(binding)
	h.bus.PublishAsync(notify.EventHotkeyChanged, binding.String())
	RespondSuccess(c, http.StatusOK, gin.H{
		"combo":   binding.String(),
		"display": trigger.FormatBinding(binding),
	}, "hotkey rebound")
}

func (h *Handlers) getEngines(c *gin.Context) {
	asr := make([]string, 0, len(h.cfg.ASR))
	for name := range h.cfg.ASR {
		asr = append(asr, name)
	}
	refine := make([]string, 0, len(h.cfg.Refine))
	for name := range h.cfg.Refine {
		refine = append(refine, name)
	}
	RespondSuccess(c, http.StatusOK, gin.H{
		"asr":           asr,
		"refine":        refine,
		"active_asr":    h.engines.TranscriberName(),
		"active_refine": h.engines.RefinerName(),
	}, "")
}

type engineRequest struct {
	ASR    string `json:"asr"`
	Refine string `json:"refine"`
}

func (h *Handlers) putEngine(c *gin.Context) {
	var req engineRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.ASR == "" && req.Refine == "") {
		RespondError(c, http.StatusBadRequest, "asr or refine engine name required", nil)
		return
	}

	if req.ASR != "" {
		if err := h.engines.SelectTranscriber(req.ASR); err != nil {
			RespondError(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	if req.Refine != "" {
		if err := h.engines.SelectRefiner(req.Refine); err != nil {
			RespondError(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	h.bus.PublishAsync(notify.EventEngineSwapped, h.engines.TranscriberName())
	RespondSuccess(c, http.StatusOK, gin.H{
		"active_asr":    h.engines.TranscriberName(),
		"active_refine": h.engines.RefinerName(),
	}, "engine swapped")
}

type pipelineRequest struct {
	TranscribeTimeoutMS *int    `json:"transcribe_timeout_ms"`
	RefineTimeoutMS     *int    `json:"refine_timeout_ms"`
	RefinementEnabled   *bool   `json:"refinement_enabled"`
	InstructionPrompt   *string `json:"instruction_prompt"`
}

func (h *Handlers) putPipeline(c *gin.Context) {
	var req pipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid pipeline settings", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cfg := h.cfg.Pipeline
	if req.TranscribeTimeoutMS != nil {
		cfg.TranscribeTimeoutMS = *req.TranscribeTimeoutMS
	}
	if req.RefineTimeoutMS != nil {
		cfg.RefineTimeoutMS = *req.RefineTimeoutMS
	}
	if req.RefinementEnabled != nil {
		cfg.RefinementEnabled = *req.RefinementEnabled
	}
	if req.InstructionPrompt != nil {
		cfg.InstructionPrompt = *req.InstructionPrompt
	}
	if cfg.TranscribeTimeoutMS <= 0 || cfg.RefineTimeoutMS <= 0 {
		RespondError(c, http.StatusBadRequest, "timeouts must be positive", nil)
		return
	}

	h.cfg.Pipeline = cfg
	h.pipeline.SetPipelineConfig(cfg)
	RespondSuccess(c, http.StatusOK, cfg, "pipeline settings applied")
}

func (h *Handlers) getHistory(c *gin.Context) {
	if h.store == nil {
		RespondError(c, http.StatusNotFound, "history is disabled", nil)
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.store.Recent(limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	RespondSuccess(c, http.StatusOK, records, "")
}
