package config

import (
	"os"
	"path/filepath"
)

// Default returns factory defaults. Paths live under ~/.voicehold so the
// daemon is self-contained per user.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".voicehold")

	return &Config{
		Log: LogConfig{
			Level: "info",
			Dir:   filepath.Join(base, "logs"),
			File:  "voicehold.log",
		},
		Hotkey: HotkeyConfig{
			Combo: "ctrl+shift+d",
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			MaxSeconds: 60,
			Format:     "f32le",
		},
		Pipeline: PipelineConfig{
			TranscribeTimeoutMS: 15000,
			RefineTimeoutMS:     30000,
			RefinementEnabled:   false,
			InstructionPrompt: "Clean up this dictated text: fix punctuation and casing, " +
				"remove filler words and stutters, change nothing else.",
		},
		Selected: SelectedConfig{
			ASR:    "openai",
			Refine: "openai",
		},
		ASR: map[string]ASRConfig{
			"openai": {
				Type:      "openai",
				ModelName: "whisper-1",
				Language:  "en",
			},
		},
		Refine: map[string]RefineConfig{
			"openai": {
				Type:        "openai",
				ModelName:   "gpt-4o-mini",
				Temperature: 0.2,
				MaxTokens:   1024,
			},
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(base, "history.db"),
			Limit:   200,
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8731,
		},
		Cues: CueConfig{
			Enabled: false,
			Dir:     filepath.Join(base, "cues"),
		},
	}
}

// fillDefaults overlays factory defaults onto any zero-valued fields after
// a file load, so a sparse config.yaml still yields a runnable config.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = d.Log.Dir
	}
	if cfg.Log.File == "" {
		cfg.Log.File = d.Log.File
	}
	if cfg.Hotkey.Combo == "" {
		cfg.Hotkey.Combo = d.Hotkey.Combo
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = d.Audio.SampleRate
	}
	if cfg.Audio.MaxSeconds <= 0 {
		cfg.Audio.MaxSeconds = d.Audio.MaxSeconds
	}
	if cfg.Audio.Format == "" {
		cfg.Audio.Format = d.Audio.Format
	}
	if cfg.Pipeline.TranscribeTimeoutMS <= 0 {
		cfg.Pipeline.TranscribeTimeoutMS = d.Pipeline.TranscribeTimeoutMS
	}
	if cfg.Pipeline.RefineTimeoutMS <= 0 {
		cfg.Pipeline.RefineTimeoutMS = d.Pipeline.RefineTimeoutMS
	}
	if cfg.Pipeline.InstructionPrompt == "" {
		cfg.Pipeline.InstructionPrompt = d.Pipeline.InstructionPrompt
	}
	if cfg.Selected.ASR == "" {
		cfg.Selected.ASR = d.Selected.ASR
	}
	if cfg.Selected.Refine == "" {
		cfg.Selected.Refine = d.Selected.Refine
	}
	if cfg.ASR == nil {
		cfg.ASR = d.ASR
	}
	if cfg.Refine == nil {
		cfg.Refine = d.Refine
	}
	if cfg.History.Path == "" {
		cfg.History.Path = d.History.Path
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = d.History.Limit
	}
	if cfg.Web.Host == "" {
		cfg.Web.Host = d.Web.Host
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = d.Web.Port
	}
	if cfg.Cues.Dir == "" {
		cfg.Cues.Dir = d.Cues.Dir
	}
}
