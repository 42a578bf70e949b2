package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).WithDotEnv(false)

	res, err := loader.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg := res.Config
	if cfg.Hotkey.Combo == "" {
		t.Fatalf("expected default hotkey combo")
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected 16kHz default, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Pipeline.TranscribeTimeoutMS != 15000 || cfg.Pipeline.RefineTimeoutMS != 30000 {
		t.Fatalf("unexpected default timeouts: %+v", cfg.Pipeline)
	}
}

func TestLoadSparseFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "hotkey:\n  combo: option+space\npipeline:\n  refinement_enabled: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	res, err := NewLoader(path).WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg := res.Config
	if cfg.Hotkey.Combo != "option+space" {
		t.Fatalf("combo not honored: %q", cfg.Hotkey.Combo)
	}
	if !cfg.Pipeline.RefinementEnabled {
		t.Fatalf("refinement flag not honored")
	}
	if cfg.Audio.MaxSeconds != 60 {
		t.Fatalf("sparse file should keep audio defaults, got %d", cfg.Audio.MaxSeconds)
	}
	if cfg.Selected.ASR != "openai" {
		t.Fatalf("expected default ASR selection, got %q", cfg.Selected.ASR)
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("hotkey: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := NewLoader(path).WithDotEnv(false).Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOICEHOLD_HOTKEY", "cmd+shift+v")
	t.Setenv("VOICEHOLD_REFINEMENT", "true")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	res, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).WithDotEnv(false).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg := res.Config
	if cfg.Hotkey.Combo != "cmd+shift+v" {
		t.Fatalf("env hotkey override missing: %q", cfg.Hotkey.Combo)
	}
	if !cfg.Pipeline.RefinementEnabled {
		t.Fatalf("env refinement override missing")
	}
	if cfg.ASR["openai"].APIKey != "sk-test" {
		t.Fatalf("api key not propagated to ASR provider")
	}
	if cfg.Refine["openai"].APIKey != "sk-test" {
		t.Fatalf("api key not propagated to refine provider")
	}
}

func TestTimeoutAccessors(t *testing.T) {
	p := PipelineConfig{TranscribeTimeoutMS: 1500, RefineTimeoutMS: 250}
	if p.TranscribeTimeout().Milliseconds() != 1500 {
		t.Fatalf("transcribe timeout conversion wrong")
	}
	if p.RefineTimeout().Milliseconds() != 250 {
		t.Fatalf("refine timeout conversion wrong")
	}
}
