package config

import "time"

// Config is the root configuration for the voicehold daemon. Values are
// loaded from config.yaml with environment overrides; every field has a
// working default so the daemon starts with no file at all.
type Config struct {
	Log      LogConfig                `yaml:"log"`
	Hotkey   HotkeyConfig             `yaml:"hotkey"`
	Audio    AudioConfig              `yaml:"audio"`
	Pipeline PipelineConfig           `yaml:"pipeline"`
	Selected SelectedConfig           `yaml:"selected_module"`
	ASR      map[string]ASRConfig     `yaml:"ASR"`
	Refine   map[string]RefineConfig  `yaml:"REFINE"`
	History  HistoryConfig            `yaml:"history"`
	Web      WebConfig                `yaml:"web"`
	Cues     CueConfig                `yaml:"cues"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type HotkeyConfig struct {
	// Combo is the chord string, e.g. "ctrl+shift+c" or the modifier-only
	// form "ctrl+shift".
	Combo string `yaml:"combo"`
}

type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	MaxSeconds int    `yaml:"max_seconds"`
	Format     string `yaml:"format"` // f32le | pcm16
}

type PipelineConfig struct {
	TranscribeTimeoutMS int    `yaml:"transcribe_timeout_ms"`
	RefineTimeoutMS     int    `yaml:"refine_timeout_ms"`
	RefinementEnabled   bool   `yaml:"refinement_enabled"`
	InstructionPrompt   string `yaml:"instruction_prompt"`
}

// TranscribeTimeout returns the Stage-1 ceiling as a duration.
func (p PipelineConfig) TranscribeTimeout() time.Duration {
	return time.Duration(p.TranscribeTimeoutMS) * time.Millisecond
}

// RefineTimeout returns the Stage-2 ceiling as a duration.
func (p PipelineConfig) RefineTimeout() time.Duration {
	return time.Duration(p.RefineTimeoutMS) * time.Millisecond
}

// SelectedConfig names the active provider from each provider map.
type SelectedConfig struct {
	ASR    string `yaml:"ASR"`
	Refine string `yaml:"REFINE"`
}

type ASRConfig struct {
	Type        string                 `yaml:"type"`
	BaseURL     string                 `yaml:"url"`
	APIKey      string                 `yaml:"api_key"`
	ModelName   string                 `yaml:"model_name"`
	Language    string                 `yaml:"language"`
	AppID       string                 `yaml:"appid"`
	AccessToken string                 `yaml:"access_token"`
	Extra       map[string]interface{} `yaml:",inline"`
}

type RefineConfig struct {
	Type        string  `yaml:"type"`
	BaseURL     string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Limit   int    `yaml:"limit"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type CueConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}
