// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package main implements a tool that reads one value per line from STDIN and
// prints the requested percentiles of their distribution.
//
// Usage:
//
//	tdigest [flags] [percentile ...]
//
// Percentiles are given in [0, 100]. A digest can be restored before reading
// the input and saved once it is consumed.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/DataDog/tdigest-go/blob"
	"github.com/DataDog/tdigest-go/compress"
	"github.com/DataDog/tdigest-go/promdigest"
	"github.com/DataDog/tdigest-go/tdigest"
	"github.com/bool64/dev/version"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Exit codes.
const (
	exitOK              = 0
	exitUsage           = 2
	exitBadPercentile   = 5
	exitPercentileRange = 6
	exitAllocation      = 7
	exitInput           = 8
	exitLoad            = 9
	exitSave            = 10
	exitDigest          = 11
	exitOutput          = 12
)

// maxLineLength bounds the length of an input line.
const maxLineLength = 1 << 20

// rawCodec saves the plain binary serialization, without a blob envelope.
const rawCodec = "raw"

type config struct {
	compression uint
	dump        bool
	load        string
	save        string
	codec       string
	promName    string
	verbose     bool
	version     bool
	help        bool
	percentiles []float64
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))

	cfg, code := parseFlags(args, stderr, logger)
	if code != exitOK || cfg.version || cfg.help {
		if cfg.version {
			fmt.Fprintln(stdout, version.Info().Version)
		}
		return code
	}
	if cfg.verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowWarn())
	}

	td, code := newDigest(cfg, logger)
	if code != exitOK {
		return code
	}
	if code := consume(td, stdin, logger); code != exitOK {
		return code
	}

	if cfg.dump {
		if err := td.Dump(stderr); err != nil {
			level.Error(logger).Log("msg", "failed to dump digest", "err", err)
			return exitDigest
		}
	}

	count := float64(td.Count())
	for _, p := range cfg.percentiles {
		if _, err := fmt.Fprintf(stdout, "%f = %f (%f)\n", p, td.Percentile(p/100), count*p/100); err != nil {
			level.Error(logger).Log("msg", "failed to write percentiles", "err", err)
			return exitOutput
		}
	}

	if cfg.save != "" {
		if err := save(td, cfg); err != nil {
			level.Error(logger).Log("msg", "failed to save digest", "path", cfg.save, "err", err)
			return exitSave
		}
		level.Info(logger).Log("msg", "saved digest", "path", cfg.save, "codec", cfg.codec)
	}

	if cfg.promName != "" {
		if err := writeSummary(stdout, td, cfg, logger); err != nil {
			level.Error(logger).Log("msg", "failed to write summary", "err", err)
			return exitOutput
		}
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer, logger log.Logger) (config, int) {
	var cfg config
	fs := flag.NewFlagSet("tdigest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.UintVar(&cfg.compression, "compression", tdigest.DefaultCompression, "Compression factor, the digest keeps up to 16 centroids per unit.")
	fs.BoolVar(&cfg.dump, "dump", false, "Dump the centroids to STDERR before computing percentiles.")
	fs.StringVar(&cfg.load, "load", "", "Restore a saved digest before reading STDIN. -compression is then ignored.")
	fs.StringVar(&cfg.save, "save", "", "Save the digest to this file once STDIN is consumed.")
	fs.StringVar(&cfg.codec, "codec", rawCodec, "Format used by -save: raw, none, zstd, s2 or lz4.")
	fs.StringVar(&cfg.promName, "prometheus", "", "Also print the digest as a Prometheus summary with this name.")
	fs.BoolVar(&cfg.verbose, "v", false, "Log informational messages.")
	fs.BoolVar(&cfg.version, "version", false, "Print version.")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: tdigest [flags] [percentile ...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			cfg.help = true
			return cfg, exitOK
		}
		return cfg, exitUsage
	}
	if cfg.version {
		return cfg, exitOK
	}
	if cfg.codec != rawCodec {
		if _, err := compress.ParseType(cfg.codec); err != nil {
			level.Error(logger).Log("msg", "bad codec", "err", err)
			return cfg, exitUsage
		}
	}

	for _, arg := range fs.Args() {
		p, err := strconv.ParseFloat(arg, 64)
		if err != nil || math.IsNaN(p) {
			level.Error(logger).Log("msg", "bad percentile value", "value", arg)
			return cfg, exitBadPercentile
		}
		if p < 0 || p > 100 {
			level.Error(logger).Log("msg", "percentile out of valid range (0-100)", "value", arg)
			return cfg, exitPercentileRange
		}
		cfg.percentiles = append(cfg.percentiles, p)
	}
	sort.Float64s(cfg.percentiles)
	return cfg, exitOK
}

func newDigest(cfg config, logger log.Logger) (*tdigest.TDigest, int) {
	if cfg.load != "" {
		f, err := os.Open(cfg.load)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open digest", "path", cfg.load, "err", err)
			return nil, exitLoad
		}
		defer f.Close()

		td, err := blob.Read(f)
		if err != nil {
			level.Error(logger).Log("msg", "failed to load digest", "path", cfg.load, "err", err)
			return nil, exitLoad
		}
		level.Info(logger).Log("msg", "loaded digest", "path", cfg.load, "count", td.Count(), "capacity", td.Capacity())
		return td, exitOK
	}

	if cfg.compression > math.MaxUint32 {
		level.Error(logger).Log("msg", "failed to allocate digest", "compression", cfg.compression, "err", tdigest.ErrAllocation)
		return nil, exitAllocation
	}
	td, err := tdigest.New(uint32(cfg.compression))
	if errors.Is(err, tdigest.ErrConfiguration) {
		level.Error(logger).Log("msg", "bad compression", "compression", cfg.compression, "err", err)
		return nil, exitUsage
	} else if err != nil {
		level.Error(logger).Log("msg", "failed to allocate digest", "compression", cfg.compression, "err", err)
		return nil, exitAllocation
	}
	return td, exitOK
}

// consume adds every numeric line of r to td. Lines which are not numbers, or
// which the digest rejects, are logged and skipped.
func consume(td *tdigest.TDigest, r io.Reader, logger log.Logger) int {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxLineLength)

	lines, skipped := 0, 0
	for scanner.Scan() {
		lines++
		line := strings.TrimSpace(scanner.Text())
		value, err := strconv.ParseFloat(line, 64)
		if err != nil {
			level.Warn(logger).Log("msg", "bad line", "line", lines, "text", line)
			skipped++
			continue
		}
		if err := td.Add(value); err != nil {
			if errors.Is(err, tdigest.ErrInvalidValue) {
				level.Warn(logger).Log("msg", "bad line", "line", lines, "err", err)
				skipped++
				continue
			}
			level.Error(logger).Log("msg", "failed to add value", "line", lines, "err", err)
			return exitDigest
		}
	}
	if err := scanner.Err(); err != nil {
		level.Error(logger).Log("msg", "failed to read input", "line", lines, "err", err)
		return exitInput
	}

	level.Debug(logger).Log("msg", "input consumed", "lines", lines, "skipped", skipped, "digest", td)
	return exitOK
}

func save(td *tdigest.TDigest, cfg config) (err error) {
	f, err := os.Create(cfg.save)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	if cfg.codec == rawCodec {
		err = td.Save(w)
	} else {
		// The codec name was validated along with the flags.
		c, _ := compress.ParseType(cfg.codec)
		err = blob.Write(w, td, c)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

func writeSummary(w io.Writer, td *tdigest.TDigest, cfg config, logger log.Logger) error {
	objectives := make([]float64, len(cfg.percentiles))
	for i, p := range cfg.percentiles {
		objectives[i] = p / 100
	}
	collector, err := promdigest.NewCollector(promdigest.CollectorOpts{
		Name:       cfg.promName,
		Help:       "Distribution of the values read from STDIN.",
		Objectives: objectives,
		Digest:     td,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}
