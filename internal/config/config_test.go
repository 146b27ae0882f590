package config_test

import (
	"errors"
	"os"
	"testing"

	"github.com/obiente/translate/livewhisper/internal/config"
)

func loader(env map[string]string, files map[string]string) config.Loader {
	return config.Loader{
		Lookup: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
		ReadFile: func(path string) ([]byte, error) {
			if b, ok := files[path]; ok {
				return []byte(b), nil
			}
			return nil, os.ErrNotExist
		},
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := loader(nil, nil).Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Chunking.SampleRate() != 16000 {
		t.Fatalf("expected sample rate 16000, got %d", cfg.Chunking.SampleRate())
	}
	if cfg.Chunking.ChunkDuration() != 5 {
		t.Fatalf("expected chunk duration 5, got %v", cfg.Chunking.ChunkDuration())
	}
	if cfg.Chunking.NumChunks() != 3 {
		t.Fatalf("expected 3 chunks, got %d", cfg.Chunking.NumChunks())
	}
	if cfg.Chunking.ThresholdSamples() != 80000 {
		t.Fatalf("expected threshold 80000, got %d", cfg.Chunking.ThresholdSamples())
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Fatalf("expected capture rate 44100, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Model.Variant != "small" || cfg.Model.Dir != "/models/" {
		t.Fatalf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Translation.Enabled() {
		t.Fatal("translation should be disabled by default")
	}
}

func TestThresholdSamplesRoundsUp(t *testing.T) {
	var ch config.Chunking
	ch.DataStructure.SampleRate = 16000
	ch.Parameters.ChunkSize = 0.33333
	if got := ch.ThresholdSamples(); got != 5334 {
		t.Fatalf("expected 5334 samples for 5333.28, got %d", got)
	}
}

func TestLoadYAML(t *testing.T) {
	files := map[string]string{
		"custom.yaml": `
server:
  addr: ":9000"
chunking:
  data_structure:
    sample_rate: 8000
  chunking_parameters:
    chunk_size: 2.5
    num_chunks: 4
capture:
  backend: arecord
events:
  redis:
    addr: "localhost:6379"
`,
	}
	cfg, err := loader(nil, files).Load("custom.yaml")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Chunking.SampleRate() != 8000 || cfg.Chunking.NumChunks() != 4 {
		t.Fatalf("unexpected chunking %+v", cfg.Chunking)
	}
	if cfg.Chunking.ThresholdSamples() != 20000 {
		t.Fatalf("expected threshold 20000, got %d", cfg.Chunking.ThresholdSamples())
	}
	if cfg.Capture.Backend != "arecord" || cfg.Capture.FrameSize != 1024 {
		t.Fatalf("unexpected capture %+v", cfg.Capture)
	}
	if cfg.Events.Redis.Channel != "transcription" {
		t.Fatalf("expected default channel, got %q", cfg.Events.Redis.Channel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	env := map[string]string{
		"LIVEWHISPER_ADDR":     "0.0.0.0:7000",
		"WHISPER_MODEL":        "base.en",
		"WHISPER_MODEL_DIR":    "/tmp/models",
		"WHISPER_THREADS":      "4",
		"MIC_SAMPLE_RATE":      "48000",
		"REDIS_ADDR":           "redis:6379",
		"TRANSLATION_BASE_URL": "http://translate",
		"TRANSLATION_TARGETS":  "de, fr,,",
	}
	cfg, err := loader(env, nil).Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:7000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Model.Variant != "base.en" || cfg.Model.Dir != "/tmp/models" || cfg.Model.Threads != 4 {
		t.Fatalf("unexpected model %+v", cfg.Model)
	}
	if cfg.Capture.SampleRate != 48000 {
		t.Fatalf("unexpected capture rate %d", cfg.Capture.SampleRate)
	}
	if cfg.Events.Redis.Addr != "redis:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.Events.Redis.Addr)
	}
	if len(cfg.Translation.Targets) != 2 || cfg.Translation.Targets[1] != "fr" {
		t.Fatalf("unexpected targets %v", cfg.Translation.Targets)
	}
	if !cfg.Translation.Enabled() {
		t.Fatal("translation should be enabled")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "chunking: [1, 2"},
		{"zero sample rate", "chunking:\n  data_structure:\n    sample_rate: 0\n"},
		{"negative duration", "chunking:\n  chunking_parameters:\n    chunk_size: -1\n"},
		{"zero chunks", "chunking:\n  chunking_parameters:\n    num_chunks: 0\n"},
		{"threshold below chunks", "chunking:\n  data_structure:\n    sample_rate: 2\n  chunking_parameters:\n    chunk_size: 1\n    num_chunks: 3\n"},
		{"unknown backend", "capture:\n  backend: portaudio\n"},
		{"zero frame size", "capture:\n  frame_size: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader(nil, map[string]string{"c.yaml": tt.yaml}).Load("c.yaml")
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := loader(nil, nil).Load("missing.yaml")
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
