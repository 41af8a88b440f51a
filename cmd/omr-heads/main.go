package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/ironsheep/omr-heads/internal/config"
	"github.com/ironsheep/omr-heads/internal/heads"
	"github.com/ironsheep/omr-heads/internal/imaging"
	"github.com/ironsheep/omr-heads/internal/log"
	"github.com/ironsheep/omr-heads/internal/pipeline"
	"github.com/ironsheep/omr-heads/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Fprintf(stdout, "omr-heads %s\n", Version)
			fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
			return 0
		case "--help", "-h", "help":
			printHelp(stdout)
			return 0
		case "detect":
			return detect(args[1:], stdout)
		}
	}

	log.Init(os.Getenv("OMR_HEADS_LOG_LEVEL"))
	cfg, err := loadConfig(os.Getenv("OMR_HEADS_CONFIG"))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}
	log.Debug("omr-heads server starting", "version", Version, "built", BuildTime, "commit", GitCommit)

	server.Version = Version
	srv, err := server.New(cfg)
	if err != nil {
		log.Error("server setup failed", "error", err)
		return 1
	}
	if err := srv.Run(); err != nil {
		log.Error("server error", "error", err)
		return 1
	}
	return 0
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "omr-heads - note head detection for optical music recognition")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  omr-heads                      Run the MCP server over stdin/stdout")
	fmt.Fprintln(w, "  omr-heads detect [flags] <image> <layout.json>")
	fmt.Fprintln(w, "                                 Detect heads and chords, print JSON")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  OMR_HEADS_LOG_LEVEL=debug    Log level (debug, info, warn, error)")
	fmt.Fprintln(w, "  OMR_HEADS_LOG_FORMAT=json    Log as JSON instead of text")
	fmt.Fprintln(w, "  OMR_HEADS_CONFIG=path        Configuration file")
	fmt.Fprintln(w, "  OMR_HEADS_WORKERS=n          Systems processed in parallel")
	fmt.Fprintln(w, "  OMR_HEADS_QUORUM=n           Samples needed to calibrate a seed offset")
}

// loadConfig reads path, then applies the environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func detect(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", os.Getenv("OMR_HEADS_CONFIG"), "configuration file")
	scalePath := fs.String("scale", "", "seed calibration from earlier pages")
	saveScale := fs.String("save-scale", "", "write the calibration of this page")
	annotate := fs.String("annotate", "", "save an overlay of heads and chords")
	summary := fs.Bool("summary", false, "print head and chord counts only")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: omr-heads detect [flags] <image> <layout.json>")
		return 2
	}
	imagePath, layoutPath := fs.Arg(0), fs.Arg(1)

	log.Init(os.Getenv("OMR_HEADS_LOG_LEVEL"))
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	var scale *heads.HeadSeedScale
	if *scalePath != "" {
		scale, err = heads.LoadScale(*scalePath)
		if err != nil {
			log.Error("cannot read calibration", "path", *scalePath, "error", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cache := imaging.NewPageCache()
	res, err := pipeline.DetectFiles(ctx, cache, pipeline.Files{Image: imagePath, Layout: layoutPath}, cfg, nil, scale)
	if err != nil {
		log.Error("detection failed", "error", err)
		return 1
	}

	if *saveScale != "" {
		if err := heads.SaveScale(*saveScale, res.Scale); err != nil {
			log.Error("cannot save calibration", "path", *saveScale, "error", err)
			return 1
		}
	}
	if *annotate != "" {
		page, err := cache.Load(imagePath)
		if err != nil {
			log.Error("cannot annotate", "error", err)
			return 1
		}
		if err := imaging.SaveOverlay(imaging.Annotate(page, res.Marks()), *annotate); err != nil {
			log.Error("cannot annotate", "error", err)
			return 1
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	var out interface{} = res
	if *summary {
		out = map[string]interface{}{
			"sheet_id":   res.SheetID,
			"heads":      res.HeadCount(),
			"chords":     res.ChordCount(),
			"calibrated": res.Scale.Len(),
			"failed":     len(res.Failed),
		}
	}
	if err := enc.Encode(out); err != nil {
		log.Error("cannot write result", "error", err)
		return 1
	}
	if len(res.Failed) > 0 {
		return 3
	}
	return 0
}
