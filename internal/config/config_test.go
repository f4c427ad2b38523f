package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnvOverrides(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = "/tmp/config" // avoid creation

	t.Setenv("CW_DEVICE", "USB Microphone")
	t.Setenv("CW_DETECTOR", "webrtc")
	t.Setenv("CW_METRICS_ADDR", "1.2.3.4:9999")
	t.Setenv("CW_LOG_LEVEL", "debug")
	t.Setenv("CW_LOG_FORMAT", "json")

	applyEnvOverrides(cfg)

	if cfg.Audio.DeviceName != "USB Microphone" {
		t.Fatalf("device override failed: %+v", cfg.Audio)
	}
	if cfg.VAD.Detector != "webrtc" {
		t.Fatalf("detector override failed: %+v", cfg.VAD)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "1.2.3.4:9999" {
		t.Fatalf("metrics override failed: %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging overrides failed: %+v", cfg.Logging)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.toml"

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.ConfigPath = path
	cfg.Hook.Command = "/bin/echo"
	cfg.VAD.SilenceMS = 450

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Hook.Command != "/bin/echo" {
		t.Fatalf("expected hook command to persist")
	}
	if loaded.VAD.SilenceMS != 450 {
		t.Fatalf("silence_ms = %d, want 450", loaded.VAD.SilenceMS)
	}

	// cleanup to avoid residue
	_ = os.Remove(path)
}

func TestLoadWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Audio.Backend != "malgo" {
		t.Fatalf("backend = %q, want malgo", cfg.Audio.Backend)
	}
	if cfg.VAD.SilenceMS != defaultSilenceMS || cfg.VAD.MinChunkMS != defaultMinChunkMS {
		t.Fatalf("vad defaults wrong: %+v", cfg.VAD)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
}

func TestArchiveDirFallsBackToStateDir(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	cfg.Paths.StateDir = "/var/lib/cw"
	if got, want := cfg.ArchiveDir(), filepath.Join("/var/lib/cw", "sessions"); got != want {
		t.Fatalf("archive dir = %q, want %q", got, want)
	}
	cfg.Archive.Dir = "/data/audio"
	if got := cfg.ArchiveDir(); got != "/data/audio" {
		t.Fatalf("archive dir = %q, want /data/audio", got)
	}
}
