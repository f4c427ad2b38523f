package hook

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Tesseric/careless-whisper/internal/config"
	"github.com/Tesseric/careless-whisper/internal/logging"
)

func TestShouldRunCooldown(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Hook.Command = "/bin/echo"
	cfg.Hook.CooldownSec = 0.5

	r := NewRunner(cfg, logging.NewTestLogger())

	if !r.ShouldRun() {
		t.Fatalf("first call should run")
	}
	if err := r.Run(context.Background(), Job{Text: "test", Timestamp: time.Now()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.ShouldRun() {
		t.Fatalf("cooldown should block immediate subsequent run")
	}
	time.Sleep(time.Duration(cfg.Hook.CooldownSec*float64(time.Second)) + 20*time.Millisecond)
	if !r.ShouldRun() {
		t.Fatalf("should run after cooldown")
	}
}

func TestRunPassesTextAndEnv(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	script := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nprintf '%s|%s' \"$CW_TEXT\" \"$1\" > \"$OUT\"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg, _ := config.Default()
	cfg.Hook.Command = script
	cfg.Hook.Prefix = "pref: "
	cfg.Hook.Env = map[string]string{"OUT": out}

	r := NewRunner(cfg, logging.NewTestLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Run(ctx, Job{Text: "hello world", Timestamp: time.Now()}); err != nil {
		t.Fatalf("run hook: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := "hello world|pref: hello world"; string(got) != want {
		t.Fatalf("hook saw %q, want %q", got, want)
	}
}

func TestRunSplitsConfiguredArgs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	script := filepath.Join(dir, "hook.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nprintf '%s' \"$*\" > \"$OUT\"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg, _ := config.Default()
	cfg.Hook.Command = script
	cfg.Hook.Args = `send --to "voice room"`
	cfg.Hook.Env = map[string]string{"OUT": out}

	r := NewRunner(cfg, logging.NewTestLogger())
	if err := r.Run(context.Background(), Job{Text: "hi", Timestamp: time.Now()}); err != nil {
		t.Fatalf("run hook: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := "send --to voice room hi"; string(got) != want {
		t.Fatalf("hook saw %q, want %q", got, want)
	}
}

func TestEnabled(t *testing.T) {
	cfg, _ := config.Default()
	r := NewRunner(cfg, logging.NewTestLogger())
	if r.Enabled() {
		t.Fatalf("empty command should disable the hook")
	}
	cfg.Hook.Command = "/bin/echo"
	if !r.Enabled() {
		t.Fatalf("configured command should enable the hook")
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"send --to room", []string{"send", "--to", "room"}},
		{`send --to "voice room"`, []string{"send", "--to", "voice room"}},
	}
	for _, tt := range tests {
		got, err := ParseArgs(tt.raw)
		if err != nil {
			t.Fatalf("ParseArgs(%q): %v", tt.raw, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("ParseArgs(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
