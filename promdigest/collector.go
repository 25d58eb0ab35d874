// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

// Package promdigest exposes a digest as a Prometheus summary. Observations
// feed a single digest and the configured quantiles are computed at scrape
// time.
package promdigest

import (
	"errors"
	"sync"

	"github.com/DataDog/tdigest-go/stat"
	"github.com/DataDog/tdigest-go/tdigest"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultObjectives are the quantiles reported when CollectorOpts.Objectives
// is empty.
var DefaultObjectives = []float64{0.5, 0.9, 0.99}

type CollectorOpts struct {
	Namespace   string
	Subsystem   string
	Name        string
	Help        string
	ConstLabels prometheus.Labels

	// Objectives are the reported quantiles, each in [0, 1].
	Objectives []float64
	// Compression of the underlying digest. Zero means
	// tdigest.DefaultCompression.
	Compression uint32
	// Digest seeds the collector, e.g. with a restored snapshot. The collector
	// takes ownership of it and Compression is ignored. The sum starts from
	// the centroids, so it is exact only up to rounding.
	Digest *tdigest.TDigest

	// Logger receives rejected observations. Nil discards them.
	Logger log.Logger
}

// Collector is a prometheus.Collector and a prometheus.Observer backed by a
// digest. It is safe for concurrent use.
type Collector struct {
	desc       *prometheus.Desc
	objectives []float64
	logger     log.Logger
	config     *tdigest.Config

	mtx    sync.Mutex
	digest *tdigest.TDigest
	stats  *stat.SummaryStatistics
}

var (
	_ prometheus.Collector = (*Collector)(nil)
	_ prometheus.Observer  = (*Collector)(nil)
)

func NewCollector(opts CollectorOpts) (*Collector, error) {
	if opts.Name == "" {
		return nil, errors.New("promdigest: a metric name is required")
	}
	objectives := opts.Objectives
	if len(objectives) == 0 {
		objectives = DefaultObjectives
	}
	for _, q := range objectives {
		if !(q >= 0 && q <= 1) {
			return nil, errors.New("promdigest: objectives must be in [0, 1]")
		}
	}
	digest, err := newDigest(opts)
	if err != nil {
		return nil, err
	}
	stats := stat.NewSummaryStatistics()
	for _, centroid := range digest.Centroids() {
		stats.Add(centroid.Mean, float64(centroid.Weight))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Collector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name),
			opts.Help,
			nil,
			opts.ConstLabels,
		),
		objectives: append([]float64(nil), objectives...),
		logger:     logger,
		config:     digest.Config(),
		digest:     digest,
		stats:      stats,
	}, nil
}

func newDigest(opts CollectorOpts) (*tdigest.TDigest, error) {
	if opts.Digest != nil {
		return opts.Digest, opts.Digest.Err()
	}
	compression := opts.Compression
	if compression == 0 {
		compression = tdigest.DefaultCompression
	}
	return tdigest.New(compression)
}

// Observe records a single value. Values the digest rejects, such as NaN, are
// logged and dropped.
func (c *Collector) Observe(v float64) {
	if err := c.ObserveWithCount(v, 1); err != nil {
		level.Warn(c.logger).Log("msg", "rejected observation", "value", v, "err", err)
	}
}

// ObserveWithCount records count occurrences of v.
func (c *Collector) ObserveWithCount(v float64, count uint64) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := c.digest.AddWithCount(v, count); err != nil {
		return err
	}
	c.stats.Add(v, float64(count))
	return nil
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mtx.Lock()
	quantiles := make(map[float64]float64, len(c.objectives))
	for _, q := range c.objectives {
		quantiles[q] = c.digest.Percentile(q)
	}
	count, sum := c.digest.Count(), c.stats.Sum()
	err := c.digest.Err()
	c.mtx.Unlock()

	if err != nil {
		level.Error(c.logger).Log("msg", "digest is in a failed state", "err", err)
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	ch <- prometheus.MustNewConstSummary(c.desc, count, sum, quantiles)
}

// Snapshot returns the binary serialization of the current digest.
func (c *Collector) Snapshot() ([]byte, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.digest.MarshalBinary()
}

// Reset drops every observation.
func (c *Collector) Reset() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.digest.Release()
	c.digest = tdigest.NewTDigest(c.config)
	c.stats.Clear()
}
