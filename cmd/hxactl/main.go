package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/hxa/internal/config"
	"github.com/danmuck/hxa/internal/inspect"
	"github.com/danmuck/hxa/internal/observability"
	"github.com/rs/zerolog/log"
)

type options struct {
	op         string
	input      string
	output     string
	configPath string
}

func main() {
	observability.InitLogger("hxactl")
	opts := parseFlags()
	if err := run(opts, os.Stdout); err != nil {
		log.Fatal().Err(err).Str("op", opts.op).Str("input", opts.input).Msg("hxactl failed")
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.op, "op", "inspect", "operation: inspect|validate|roundtrip")
	flag.StringVar(&opts.input, "input", "", "HxA file to read")
	flag.StringVar(&opts.output, "output", "", "roundtrip: path for the re-encoded file")
	flag.StringVar(&opts.configPath, "config", "", "optional TOML config for codec limits")
	flag.Parse()
	return opts
}

func run(opts options, stdout io.Writer) error {
	if opts.input == "" {
		return fmt.Errorf("-input is required")
	}
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return err
	}
	limits := cfg.CodecLimits()

	data, err := readInput(opts.input, limits.MaxFileBytes)
	if err != nil {
		return err
	}

	switch opts.op {
	case "inspect":
		report, err := inspect.Inspect(data, limits)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "validate":
		f, err := inspect.Decode(data, limits)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%s: ok (%d nodes, %d bytes)\n", opts.input, len(f.Nodes), len(data))
		return err
	case "roundtrip":
		res, err := inspect.RoundTrip(data, limits)
		if err != nil {
			return err
		}
		if opts.output != "" {
			if err := os.WriteFile(opts.output, res.Output, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
		}
		_, err = fmt.Fprintf(stdout, "%s: identical=%t in=%d out=%d\n", opts.input, res.Identical, len(data), len(res.Output))
		return err
	default:
		return fmt.Errorf("unknown op %q (supported: inspect, validate, roundtrip)", opts.op)
	}
}

func readInput(path string, max int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > max {
		return nil, fmt.Errorf("%s: %d bytes exceeds limit %d", path, info.Size(), max)
	}
	return os.ReadFile(path)
}
