package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/obiente/translate/livewhisper/internal/audio"
)

// ErrInvalid is wrapped by every error returned from Load and Validate.
var ErrInvalid = errors.New("invalid configuration")

const DefaultPath = "config.yaml"

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Chunking    Chunking          `yaml:"chunking"`
	Capture     CaptureConfig     `yaml:"capture"`
	Model       ModelConfig       `yaml:"model"`
	Events      EventsConfig      `yaml:"events"`
	Translation TranslationConfig `yaml:"translation"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Chunking mirrors the chunking section of config.yaml.
type Chunking struct {
	DataStructure struct {
		SampleRate int `yaml:"sample_rate"`
	} `yaml:"data_structure"`
	Parameters struct {
		ChunkSize float64 `yaml:"chunk_size"` // seconds of audio per drain
		NumChunks int     `yaml:"num_chunks"`
	} `yaml:"chunking_parameters"`
}

func (c Chunking) SampleRate() int        { return c.DataStructure.SampleRate }
func (c Chunking) ChunkDuration() float64 { return c.Parameters.ChunkSize }
func (c Chunking) NumChunks() int         { return c.Parameters.NumChunks }
func (c Chunking) ThresholdSamples() int  { return audio.Threshold(c.SampleRate(), c.ChunkDuration()) }

type CaptureConfig struct {
	Backend    string `yaml:"backend"`
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sample_rate"`
	FrameSize  int    `yaml:"frame_size"`
}

type ModelConfig struct {
	Variant  string `yaml:"variant"`
	Dir      string `yaml:"dir"`
	Path     string `yaml:"path"`
	Language string `yaml:"language"`
	Threads  int    `yaml:"threads"`
	Download bool   `yaml:"download"`
}

type EventsConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type TranslationConfig struct {
	BaseURL    string   `yaml:"base_url"`
	Targets    []string `yaml:"targets"`
	TimeoutSec int      `yaml:"timeout_sec"`
}

// Enabled reports whether published transcripts should also be translated.
func (t TranslationConfig) Enabled() bool {
	return t.BaseURL != "" && len(t.Targets) > 0
}

var backends = map[string]bool{"pw-record": true, "parec": true, "arecord": true}

func Default() Config {
	var c Config
	c.Server.Addr = ":5000"
	c.Log.Level = "info"
	c.Chunking.DataStructure.SampleRate = 16000
	c.Chunking.Parameters.ChunkSize = 5
	c.Chunking.Parameters.NumChunks = 3
	c.Capture = CaptureConfig{Backend: "pw-record", SampleRate: 44100, FrameSize: 1024}
	c.Model = ModelConfig{Variant: "small", Dir: "/models/", Language: "auto", Download: true}
	c.Events.Redis.Channel = "transcription"
	c.Translation.TimeoutSec = 8
	return c
}

// Loader reads a YAML file on top of Default and applies environment
// overrides. Tests can override Lookup and ReadFile.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load reads path with the default loader. A missing file at DefaultPath is
// not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	return Loader{}.Load(path)
}

func (l Loader) Load(path string) (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = getenv(l.Lookup, "LIVEWHISPER_CONFIG", DefaultPath)
		explicit = path != DefaultPath
	}

	b, err := l.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}

	cfg.Server.Addr = getenv(l.Lookup, "LIVEWHISPER_ADDR", cfg.Server.Addr)
	cfg.Log.Level = getenv(l.Lookup, "LOG_LEVEL", cfg.Log.Level)
	cfg.Model.Variant = getenv(l.Lookup, "WHISPER_MODEL", cfg.Model.Variant)
	cfg.Model.Dir = getenv(l.Lookup, "WHISPER_MODEL_DIR", cfg.Model.Dir)
	cfg.Model.Path = getenv(l.Lookup, "WHISPER_MODEL_PATH", cfg.Model.Path)
	cfg.Model.Threads = getenvInt(l.Lookup, "WHISPER_THREADS", cfg.Model.Threads)
	cfg.Model.Download = getenvBool(l.Lookup, "WHISPER_MODEL_DOWNLOAD", cfg.Model.Download)
	cfg.Capture.Device = getenv(l.Lookup, "CAPTURE_DEVICE", cfg.Capture.Device)
	cfg.Capture.SampleRate = getenvInt(l.Lookup, "MIC_SAMPLE_RATE", cfg.Capture.SampleRate)
	cfg.Events.Redis.Addr = getenv(l.Lookup, "REDIS_ADDR", cfg.Events.Redis.Addr)
	cfg.Events.Redis.Password = getenv(l.Lookup, "REDIS_PASSWORD", cfg.Events.Redis.Password)
	cfg.Translation.BaseURL = getenv(l.Lookup, "TRANSLATION_BASE_URL", cfg.Translation.BaseURL)
	cfg.Translation.TimeoutSec = getenvInt(l.Lookup, "TRANSLATION_TIMEOUT", cfg.Translation.TimeoutSec)
	if v := getenv(l.Lookup, "TRANSLATION_TARGETS", ""); v != "" {
		cfg.Translation.Targets = splitList(v)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	ch := c.Chunking
	switch {
	case c.Server.Addr == "":
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	case ch.SampleRate() <= 0:
		return fmt.Errorf("%w: chunking.data_structure.sample_rate must be > 0, got %d", ErrInvalid, ch.SampleRate())
	case ch.ChunkDuration() <= 0:
		return fmt.Errorf("%w: chunking.chunking_parameters.chunk_size must be > 0, got %v", ErrInvalid, ch.ChunkDuration())
	case ch.NumChunks() < 1:
		return fmt.Errorf("%w: chunking.chunking_parameters.num_chunks must be >= 1, got %d", ErrInvalid, ch.NumChunks())
	case ch.ThresholdSamples() < ch.NumChunks():
		return fmt.Errorf("%w: drain threshold of %d samples is smaller than num_chunks %d", ErrInvalid, ch.ThresholdSamples(), ch.NumChunks())
	case c.Capture.SampleRate <= 0:
		return fmt.Errorf("%w: capture.sample_rate must be > 0, got %d", ErrInvalid, c.Capture.SampleRate)
	case c.Capture.FrameSize <= 0:
		return fmt.Errorf("%w: capture.frame_size must be > 0, got %d", ErrInvalid, c.Capture.FrameSize)
	case !backends[c.Capture.Backend]:
		return fmt.Errorf("%w: unknown capture.backend %q", ErrInvalid, c.Capture.Backend)
	case c.Model.Variant == "" && c.Model.Path == "":
		return fmt.Errorf("%w: model.variant or model.path is required", ErrInvalid)
	case c.Model.Threads < 0:
		return fmt.Errorf("%w: model.threads must be >= 0, got %d", ErrInvalid, c.Model.Threads)
	}
	if c.Model.Language == "" {
		c.Model.Language = "auto"
	}
	if c.Events.Redis.Channel == "" {
		c.Events.Redis.Channel = "transcription"
	}
	return nil
}

func getenv(lookup func(string) (string, bool), key, def string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getenvBool(lookup func(string) (string, bool), key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(lookup func(string) (string, bool), key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
