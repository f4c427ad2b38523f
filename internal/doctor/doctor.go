// Package doctor runs environment diagnostics for the CLI.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Tesseric/careless-whisper/internal/capture"
	"github.com/Tesseric/careless-whisper/internal/config"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Run executes doctor checks.
func Run(cfg *config.Config) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkFile("model file", cfg.ASR.ModelPath),
		checkWhisperBuild(),
		checkDirWritable("state dir", cfg.Paths.StateDir),
		checkAudioBackend(cfg),
	}
	if cfg.Hook.Command != "" {
		results = append(results, checkHookExecutable(cfg.Hook.Command))
	}
	if cfg.Archive.Enabled {
		results = append(results, checkDirWritable("archive dir", cfg.ArchiveDir()))
	}
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkDirWritable(label, dir string) Result {
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	_ = os.Remove(probe)
	return Result{Name: label, Pass: true, Detail: dir}
}

func checkAudioBackend(cfg *config.Config) Result {
	switch cfg.Audio.Backend {
	case "", "malgo":
		devices, err := capture.ListDevices()
		if err != nil {
			return Result{Name: "audio", Pass: false, Detail: err.Error()}
		}
		if len(devices) == 0 {
			return Result{Name: "audio", Pass: false, Detail: "no capture devices found"}
		}
		return Result{Name: "audio", Pass: true, Detail: fmt.Sprintf("%d capture devices (malgo)", len(devices))}
	case "portaudio":
		return checkPortAudioPkgConfig()
	default:
		return Result{Name: "audio", Pass: false, Detail: fmt.Sprintf("unknown backend %q", cfg.Audio.Backend)}
	}
}

func checkHookExecutable(cmd string) Result {
	label := "hook.command"
	if cmd == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	path := os.ExpandEnv(cmd)
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set hook.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "audio", Pass: false, Detail: "pkg-config not found (brew install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "audio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio)"}
	}
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "audio", Pass: true, Detail: "portaudio " + strings.TrimSpace(string(out))}
	}
	return Result{Name: "audio", Pass: true, Detail: "portaudio found via pkg-config"}
}
