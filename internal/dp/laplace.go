// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dp implements the differential-privacy mechanisms used while
// building trees: the Laplace mechanism for leaf values and the
// exponential mechanism for split selection.
package dp

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Laplace draws zero-mean Laplace noise. It is not safe for concurrent use;
// give every goroutine its own sampler.
type Laplace struct {
	dist distuv.Laplace
}

// NewLaplace returns a sampler with the given scale b (noise density
// exp(-|x|/b)/(2b)) drawing from src.
func NewLaplace(scale float64, src rand.Source) *Laplace {
	return &Laplace{dist: distuv.Laplace{Mu: 0, Scale: scale, Src: src}}
}

// Scale returns the sampler's default scale.
func (l *Laplace) Scale() float64 { return l.dist.Scale }

// Sample draws one value at the default scale.
func (l *Laplace) Sample() float64 {
	return l.dist.Rand()
}

// SampleScale draws one value at the given scale.
func (l *Laplace) SampleScale(scale float64) float64 {
	d := l.dist
	d.Scale = scale
	return d.Rand()
}

// Clamp limits v to [lower, upper].
func Clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
