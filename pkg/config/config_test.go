package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_RetrievalDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retrieval.MaxWorkshops != 2 {
		t.Errorf("MaxWorkshops = %d, want 2", cfg.Retrieval.MaxWorkshops)
	}
	if cfg.Retrieval.ChunksPerWorkshop != 3 {
		t.Errorf("ChunksPerWorkshop = %d, want 3", cfg.Retrieval.ChunksPerWorkshop)
	}
	if cfg.Retrieval.ContentFraction != 0.65 {
		t.Errorf("ContentFraction = %v, want 0.65", cfg.Retrieval.ContentFraction)
	}
	if cfg.OpenAI.Model == "" || cfg.OpenAI.RoutingModel == "" || cfg.OpenAI.EmbeddingModel == "" {
		t.Error("model defaults should not be empty")
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieval.MaxWorkshops != 2 {
		t.Errorf("MaxWorkshops = %d, want default 2", cfg.Retrieval.MaxWorkshops)
	}
}

func TestLoadConfig_FileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"openai": {"model": "gpt-4o", "api_key": "file-key"},
		"retrieval": {"max_workshops": 3}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WORKSHOPBOT_OPENAI_API_KEY", "env-key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q, want file value gpt-4o", cfg.OpenAI.Model)
	}
	if cfg.Retrieval.MaxWorkshops != 3 {
		t.Errorf("MaxWorkshops = %d, want file value 3", cfg.Retrieval.MaxWorkshops)
	}
	if cfg.OpenAI.APIKey != "env-key" {
		t.Errorf("APIKey = %q, env must override file", cfg.OpenAI.APIKey)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Retrieval.ContentFraction != 0.65 {
		t.Errorf("ContentFraction = %v, want default 0.65", cfg.Retrieval.ContentFraction)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.OpenAI.Model = "gpt-4o"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.OpenAI.Model != "gpt-4o" {
		t.Errorf("Model = %q after round trip", loaded.OpenAI.Model)
	}
}

func TestFlexibleStringSlice_AcceptsNumbers(t *testing.T) {
	var f FlexibleStringSlice
	if err := f.UnmarshalJSON([]byte(`["123", 456]`)); err != nil {
		t.Fatal(err)
	}
	if len(f) != 2 || f[0] != "123" || f[1] != "456" {
		t.Fatalf("parsed = %v", f)
	}
}
