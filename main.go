// Command splatmesh runs a splat recipe and writes the resulting meshes
// and volumes as JSON.
//
// Usage:
//
//	splatmesh [-config convert.toml] [-o out.json] [-v] recipe.splat
//	splatmesh -print-config
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/chazu/splatmesh/pkg/convert"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("splatmesh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "TOML or YAML file with conversion defaults")
	outPath := fs.String("o", "-", "output JSON file, - for stdout")
	verbose := fs.Bool("v", false, "debug logging")
	printConfig := fs.Bool("print-config", false, "print the effective config as TOML and exit")
	timeout := fs.Duration("timeout", 0, "evaluation timeout (default 5s)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := convert.DefaultConfig()
	if *configPath != "" {
		loaded, err := convert.LoadConfig(*configPath)
		if err != nil {
			logger.Error("load config", "err", err)
			return 1
		}
		cfg = loaded
	}

	if *printConfig {
		data, err := cfg.Normalize().MarshalTOML()
		if err != nil {
			logger.Error("encode config", "err", err)
			return 1
		}
		_, _ = stdout.Write(data)
		return 0
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: splatmesh [flags] recipe.splat (- for stdin)")
		fs.PrintDefaults()
		return 2
	}
	source, err := readSource(fs.Arg(0), stdin)
	if err != nil {
		logger.Error("read recipe", "err", err)
		return 1
	}

	app := NewAppWithConfig(cfg, logger)
	app.engine.Timeout = *timeout
	start := time.Now()
	result := app.Evaluate(string(source))
	logger.Info("recipe done",
		"splats", result.Splats,
		"meshes", len(result.Meshes),
		"volumes", len(result.Volumes),
		"errors", len(result.Errors),
		"elapsed", time.Since(start))
	for _, w := range result.Warnings {
		logger.Warn("recipe warning", "line", w.Line, "message", w.Message)
	}

	if err := writeResult(*outPath, stdout, result); err != nil {
		logger.Error("write result", "err", err)
		return 1
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			logger.Error("recipe error", "line", e.Line, "message", e.Message)
		}
		return 1
	}
	return 0
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeResult(path string, stdout io.Writer, result EvalResult) error {
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
