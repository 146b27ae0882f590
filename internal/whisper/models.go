package whisper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Model describes a ggml model published for whisper.cpp.
type Model struct {
	Variant      string
	Filename     string
	Size         string
	Multilingual bool
}

var models = map[string]Model{
	"tiny.en":   {"tiny.en", "ggml-tiny.en.bin", "75MB", false},
	"base.en":   {"base.en", "ggml-base.en.bin", "142MB", false},
	"small.en":  {"small.en", "ggml-small.en.bin", "466MB", false},
	"medium.en": {"medium.en", "ggml-medium.en.bin", "1.5GB", false},
	"tiny":      {"tiny", "ggml-tiny.bin", "75MB", true},
	"base":      {"base", "ggml-base.bin", "142MB", true},
	"small":     {"small", "ggml-small.bin", "466MB", true},
	"medium":    {"medium", "ggml-medium.bin", "1.5GB", true},
	"large-v3":  {"large-v3", "ggml-large-v3.bin", "3GB", true},
}

// Lookup returns the registry entry for variant.
func Lookup(variant string) (Model, bool) {
	m, ok := models[variant]
	return m, ok
}

// Variants lists the known variants sorted by name.
func Variants() []Model {
	out := make([]Model, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out
}

// Store resolves and downloads model files in Dir.
type Store struct {
	Dir     string
	BaseURL string
	Client  *http.Client
}

func (s Store) Path(variant string) (string, error) {
	m, ok := Lookup(variant)
	if !ok {
		return "", fmt.Errorf("unknown model variant %q", variant)
	}
	return filepath.Join(s.Dir, m.Filename), nil
}

// Installed reports whether the variant's file exists and is non-empty.
func (s Store) Installed(variant string) bool {
	p, err := s.Path(variant)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Size() > 0
}

// Ensure returns the local path of variant, downloading it first when it is
// missing and download is true.
func (s Store) Ensure(ctx context.Context, variant string, download bool) (string, error) {
	p, err := s.Path(variant)
	if err != nil {
		return "", err
	}
	if s.Installed(variant) {
		log.Info().Str("variant", variant).Str("path", p).Msg("whisper: using cached model")
		return p, nil
	}
	if !download {
		return "", fmt.Errorf("model %q not found at %s", variant, p)
	}
	if err := s.Download(ctx, variant); err != nil {
		return "", err
	}
	return p, nil
}

// Download fetches the variant into Dir through a temporary file.
func (s Store) Download(ctx context.Context, variant string) error {
	m, ok := Lookup(variant)
	if !ok {
		return fmt.Errorf("unknown model variant %q", variant)
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create models directory: %w", err)
	}

	dest := filepath.Join(s.Dir, m.Filename)
	tmp := dest + ".downloading"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		out.Close()
		os.Remove(tmp)
	}()

	url := base + "/" + m.Filename
	log.Info().Str("variant", variant).Str("url", url).Str("size", m.Size).Msg("whisper: downloading model")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", variant, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: http %d", variant, resp.StatusCode)
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("move model into place: %w", err)
	}
	log.Info().Str("variant", variant).Str("path", dest).Int64("bytes", n).Msg("whisper: model downloaded")
	return nil
}
