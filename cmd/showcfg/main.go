// showcfg prints the effective configuration after defaults, file, and
// env overrides have been applied. Debug helper, not installed.
package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/Tesseric/careless-whisper/internal/config"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("# config: %s\n", cfg.Paths.ConfigPath)
	os.Stdout.Write(out)
}
