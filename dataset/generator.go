// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2018 Datadog, Inc.

package dataset

import (
	"math"
	"math/rand"
	"sync/atomic"
)

type Generator interface {
	Generate() float64
}

var seeds atomic.Int64

// newRand returns a source seeded from a package counter, so that a test
// building its generators in a fixed order always sees the same streams.
func newRand() *rand.Rand {
	return rand.New(rand.NewSource(seeds.Add(1)))
}

// Linearly increasing stream, starting at 0
type Linear struct{ next float64 }

func NewLinear() *Linear { return &Linear{} }

func (g *Linear) Generate() float64 {
	value := g.next
	g.next++
	return value
}

// Normal distribution
type Normal struct {
	rng          *rand.Rand
	mean, stddev float64
}

func NewNormal(mean, stddev float64) *Normal {
	return &Normal{rng: newRand(), mean: mean, stddev: stddev}
}

func (g *Normal) Generate() float64 { return g.mean + g.stddev*g.rng.NormFloat64() }

// Lognormal distribution
type Lognormal struct {
	rng       *rand.Rand
	mu, sigma float64
}

func NewLognormal(mu, sigma float64) *Lognormal {
	return &Lognormal{rng: newRand(), mu: mu, sigma: sigma}
}

func (g *Lognormal) Generate() float64 { return math.Exp(g.mu + g.sigma*g.rng.NormFloat64()) }

// Exponential distribution
type Exponential struct {
	rng  *rand.Rand
	rate float64
}

func NewExponential(rate float64) *Exponential { return &Exponential{rng: newRand(), rate: rate} }

func (g *Exponential) Generate() float64 { return g.rng.ExpFloat64() / g.rate }

// Pareto distribution, with values in [scale, +Inf)
type Pareto struct {
	rng          *rand.Rand
	shape, scale float64
}

func NewPareto(shape, scale float64) *Pareto {
	return &Pareto{rng: newRand(), shape: shape, scale: scale}
}

func (g *Pareto) Generate() float64 { return g.scale * math.Exp(g.rng.ExpFloat64()/g.shape) }

// Uniform distribution over [low, high)
type Uniform struct {
	rng       *rand.Rand
	low, high float64
}

func NewUniform(low, high float64) *Uniform { return &Uniform{rng: newRand(), low: low, high: high} }

func (g *Uniform) Generate() float64 { return g.low + (g.high-g.low)*g.rng.Float64() }

// Shuffled replays a fixed sequence of values in random order, so that
// insertion order does not follow value order. It cycles once exhausted.
type Shuffled struct {
	values []float64
	next   int
}

func NewShuffled(values []float64) *Shuffled {
	shuffled := append([]float64(nil), values...)
	newRand().Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return &Shuffled{values: shuffled}
}

func (g *Shuffled) Generate() float64 {
	value := g.values[g.next%len(g.values)]
	g.next++
	return value
}
