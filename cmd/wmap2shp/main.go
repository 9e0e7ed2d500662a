// wmap2shp converts MapGIS vector files (.wp, .wl, .wt) to Shapefile
// interchange. The geometry and attribute pipeline lives in pkg/wmap;
// the final Shapefile byte serialization is delegated to an external
// writer binding, so this tool currently emits the converted feature
// stream as GeoJSON via the reference writer. Input files come from the
// command line or from a YAML manifest.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/cartoconv/mapgis/pkg/wmap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// manifest is the YAML batch description: conversion settings shared by
// every listed file.
type manifest struct {
	OutputDir string   `yaml:"output_dir"`
	Scale     float64  `yaml:"scale"`
	FileScale bool     `yaml:"file_scale"`
	WKID      int      `yaml:"wkid"`
	Encoding  string   `yaml:"encoding"`
	Files     []string `yaml:"files"`
}

func run() error {
	var (
		scale        float64
		useFileScale bool
		wkid         int
		encoding     string
		outDir       string
		workers      int
		serial       bool
		strictLines  bool
		manifestPath string
		verbose      bool
	)

	flags := pflag.NewFlagSet("wmap2shp", pflag.ContinueOnError)
	flags.Float64Var(&scale, "scale", 1, "coordinate scale factor (finite positive)")
	flags.BoolVar(&useFileScale, "file-scale", false, "use the map scale embedded in each file header")
	flags.IntVar(&wkid, "wkid", 0, "spatial reference identifier to attach (0 = none)")
	flags.StringVar(&encoding, "encoding", wmap.DefaultEncoding, "attribute text charset (IANA name)")
	flags.StringVarP(&outDir, "out-dir", "o", ".", "output directory")
	flags.IntVar(&workers, "workers", 0, "parallel workers (0 = all CPUs)")
	flags.BoolVar(&serial, "serial", false, "convert files one at a time")
	flags.BoolVar(&strictLines, "strict-lines", false, "drop polylines with endpoint gaps instead of warning")
	flags.StringVarP(&manifestPath, "manifest", "m", "", "YAML batch manifest")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	paths := flags.Args()
	if manifestPath != "" {
		m, err := loadManifest(manifestPath)
		if err != nil {
			return err
		}
		paths = append(paths, m.Files...)
		if m.OutputDir != "" {
			outDir = m.OutputDir
		}
		if m.Scale != 0 {
			scale = m.Scale
		}
		if m.FileScale {
			useFileScale = true
		}
		if m.WKID != 0 {
			wkid = m.WKID
		}
		if m.Encoding != "" {
			encoding = m.Encoding
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no input files; pass paths or --manifest")
	}

	opts := wmap.Options{
		ScaleFactor:     scale,
		UseFileScale:    useFileScale,
		WKID:            wkid,
		Encoding:        encoding,
		StrictPolylines: strictLines,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	batch := wmap.BatchOptions{
		Parallel:   !serial,
		Workers:    workers,
		SkipErrors: true,
		Progress: func(done, total int) {
			logger.Debug("progress", "done", done, "total", total)
		},
	}
	results, err := wmap.ConvertBatch(ctx, paths, opts, batch)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			logger.Error("conversion failed", "file", res.Path, "err", res.Err)
			continue
		}
		if err := export(ctx, res, outDir, logger); err != nil {
			failed++
			logger.Error("export failed", "file", res.Path, "err", err)
		}
	}
	logger.Info("batch complete", "files", len(results), "failed", failed)
	if failed == len(results) {
		return fmt.Errorf("all %d conversions failed", failed)
	}
	return nil
}

// export streams one converted file to the reference writer. The output
// name keeps the source kind as a suffix so a .wp and a .wt sharing a
// base name do not collide.
func export(ctx context.Context, res wmap.BatchResult, outDir string, logger *slog.Logger) error {
	base := filepath.Base(res.Path)
	ext := filepath.Ext(base)
	name := fmt.Sprintf("%s_%s.geojson", strings.TrimSuffix(base, ext),
		strings.ToUpper(strings.TrimPrefix(ext, ".")))
	outPath := filepath.Join(outDir, name)

	if err := res.Converter.Export(ctx, wmap.NewGeoJSONWriter(), outPath); err != nil {
		return err
	}

	summary, err := res.Converter.Summary(ctx)
	if err != nil {
		return err
	}
	logger.Info("converted", "file", res.Path, "out", outPath, "summary", summary)

	warnings, err := res.Converter.Warnings(ctx)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("topology", "file", res.Path, "warn", w)
	}
	return nil
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
