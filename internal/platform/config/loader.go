package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platerr "voicehold/internal/platform/errors"
)

// Loader reads configuration from a yaml file with .env and environment
// overrides layered on top.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader for the given config path. An empty path falls
// back to VOICEHOLD_CONFIG, then ./config.yaml.
func NewLoader(path string) *Loader {
	if path == "" {
		path = os.Getenv("VOICEHOLD_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}
	return &Loader{path: path, useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads the yaml file if present, fills defaults, and applies
// environment overrides. A missing file is not an error.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	origin := l.path
	cfg := &Config{}
	data, err := os.ReadFile(l.path)
	switch {
	case os.IsNotExist(err):
		cfg = Default()
		origin = ""
	case err != nil:
		return nil, platerr.Wrap(platerr.KindConfig, "config.load", "read config file", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platerr.Wrap(platerr.KindConfig, "config.load", "parse config file", err)
		}
		fillDefaults(cfg)
	}

	applyEnvOverrides(cfg)
	return &Result{Config: cfg, Path: origin}, nil
}

// applyEnvOverrides lets operators steer the daemon without editing yaml.
// API keys in particular are expected to arrive via the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOICEHOLD_HOTKEY"); v != "" {
		cfg.Hotkey.Combo = v
	}
	if v := os.Getenv("VOICEHOLD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VOICEHOLD_REFINEMENT"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Pipeline.RefinementEnabled = enabled
		}
	}
	if v := os.Getenv("VOICEHOLD_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for name, asr := range cfg.ASR {
			if asr.Type == "openai" && asr.APIKey == "" {
				asr.APIKey = key
				cfg.ASR[name] = asr
			}
		}
		for name, ref := range cfg.Refine {
			if ref.Type == "openai" && ref.APIKey == "" {
				ref.APIKey = key
				cfg.Refine[name] = ref
			}
		}
	}
}
