package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultSampleRate    = 48000
	defaultSilenceMS     = 600
	defaultMinChunkMS    = 300
	defaultMaxChunkMS    = 10000
	defaultSessionMinMS  = 300
	defaultSessionMaxSec = 300
	defaultEnergyThresh  = 0.01
	defaultStatusTail    = 10
	defaultStateDirLinux = ".local/state/careless-whisper"
	defaultConfigDir     = ".config/careless-whisper"
)

// Config holds user configuration loaded from TOML.
type Config struct {
	Audio struct {
		Backend    string `toml:"backend"` // malgo, portaudio
		DeviceName string `toml:"device_name"`
		SampleRate int    `toml:"sample_rate"`
		Channels   int    `toml:"channels"`
	} `toml:"audio"`

	VAD struct {
		Detector        string  `toml:"detector"` // energy, webrtc
		EnergyThreshold float64 `toml:"energy_threshold"`
		WebRTCMode      int     `toml:"webrtc_mode"` // 0..3
		SilenceMS       int     `toml:"silence_ms"`
		MinChunkMS      int     `toml:"min_chunk_ms"`
		MaxChunkMS      int     `toml:"max_chunk_ms"`
	} `toml:"vad"`

	Session struct {
		MinMS  int `toml:"min_ms"`
		MaxSec int `toml:"max_sec"`
	} `toml:"session"`

	ASR struct {
		ModelPath string `toml:"model_path"`
		Language  string `toml:"language"`
		Threads   int    `toml:"threads"` // 0 = all cores
	} `toml:"asr"`

	Archive struct {
		Enabled bool   `toml:"enabled"`
		Dir     string `toml:"dir"`
	} `toml:"archive"`

	Hook struct {
		Command      string            `toml:"command"`
		Args         string            `toml:"args"` // shlex-split before exec
		Prefix       string            `toml:"prefix"`
		CooldownSec  float64           `toml:"cooldown_sec"`
		MinChars     int               `toml:"min_chars"`
		MaxLatencyMS int               `toml:"max_latency_ms"`
		QueueSize    int               `toml:"queue_size"`
		TimeoutSec   float64           `toml:"timeout_sec"`
		Env          map[string]string `toml:"env"`
	} `toml:"hook"`

	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // text, json
		Stdout bool   `toml:"stdout"`
	} `toml:"logging"`

	Paths struct {
		StateDir       string `toml:"state_dir"`
		LogPath        string `toml:"log_path"`
		TranscriptPath string `toml:"transcript_path"`
		SocketPath     string `toml:"socket_path"`
		PidPath        string `toml:"pid_path"`
		ConfigPath     string `toml:"-"`
	} `toml:"paths"`

	UI struct {
		StatusTail int `toml:"status_tail"`
	} `toml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`

	Transcripts struct {
		Enabled  bool `toml:"enabled"`
		RingSize int  `toml:"ring_size"`
	} `toml:"transcripts"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	// macOS prefers ~/Library/Application Support/careless-whisper for state/logs
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "careless-whisper")
	}

	cfg := &Config{}

	cfg.Audio.Backend = "malgo"
	cfg.Audio.SampleRate = defaultSampleRate
	cfg.Audio.Channels = 1

	cfg.VAD.Detector = "energy"
	cfg.VAD.EnergyThreshold = defaultEnergyThresh
	cfg.VAD.WebRTCMode = 2
	cfg.VAD.SilenceMS = defaultSilenceMS
	cfg.VAD.MinChunkMS = defaultMinChunkMS
	cfg.VAD.MaxChunkMS = defaultMaxChunkMS

	cfg.Session.MinMS = defaultSessionMinMS
	cfg.Session.MaxSec = defaultSessionMaxSec

	cfg.ASR.ModelPath = filepath.Join(stateDir, "models", "ggml-base.en.bin")
	cfg.ASR.Language = "en"
	cfg.ASR.Threads = 0

	cfg.Archive.Enabled = false
	cfg.Archive.Dir = ""

	cfg.Hook.Command = ""
	cfg.Hook.Args = ""
	cfg.Hook.Prefix = ""
	cfg.Hook.CooldownSec = 0
	cfg.Hook.MinChars = 1
	cfg.Hook.MaxLatencyMS = 10000
	cfg.Hook.QueueSize = 16
	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.Stdout = false

	cfg.Paths.StateDir = stateDir
	cfg.Paths.LogPath = filepath.Join(stateDir, "careless-whisper.log")
	cfg.Paths.TranscriptPath = filepath.Join(stateDir, "transcripts.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "careless-whisper.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "careless-whisper.pid")

	cfg.UI.StatusTail = defaultStatusTail

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9317"

	cfg.Transcripts.Enabled = true
	cfg.Transcripts.RingSize = 32

	return cfg, nil
}

// Load loads config from file, applying defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	// Read if exists; otherwise write template.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// ensure dir
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// ArchiveDir resolves where session WAVs land.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(c.Paths.StateDir, "sessions")
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Paths.TranscriptPath)} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CW_DEVICE"); v != "" {
		cfg.Audio.DeviceName = v
	}
	if v := os.Getenv("CW_MODEL"); v != "" {
		cfg.ASR.ModelPath = v
	}
	if v := os.Getenv("CW_DETECTOR"); v != "" {
		cfg.VAD.Detector = v
	}
	if v := os.Getenv("CW_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("CW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CW_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CW_TRANSCRIPTS_ENABLED"); v != "" {
		cfg.Transcripts.Enabled = v != "0" && strings.ToLower(v) != "false"
	}
	if v := os.Getenv("CW_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v != "0" && strings.ToLower(v) != "false"
	}
}

// NowUnixMilli returns milliseconds since epoch.
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
