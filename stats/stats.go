// Package stats implements running statistics for search and evaluation
// instrumentation: per-iteration node ratios (effective branching
// factors), evaluation score distributions, and throughput numbers.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	Epsilon = 1e-6
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Statistic accumulates a stream of observations in O(1) space: mean and
// variance with Welford's algorithm, plus the observed range. The zero
// value is ready to use.
type Statistic struct {
	totalIterations int
	last            float64
	minimum         float64
	maximum         float64

	// For Welford's algorithm:
	oldM float64
	newM float64
	oldS float64
	newS float64
}

func (s *Statistic) Push(val float64) {
	s.last = val
	s.totalIterations++
	if s.totalIterations == 1 {
		s.oldM = val
		s.newM = val
		s.oldS = 0
		s.minimum = val
		s.maximum = val
	} else {
		s.newM = s.oldM + (val-s.oldM)/float64(s.totalIterations)
		s.newS = s.oldS + (val-s.oldM)*(val-s.newM)
		s.oldM = s.newM
		s.oldS = s.newS
		s.minimum = math.Min(s.minimum, val)
		s.maximum = math.Max(s.maximum, val)
	}
}

func (s *Statistic) Mean() float64 {
	if s.totalIterations > 0 {
		return s.newM
	}
	return 0.0
}

func (s *Statistic) Variance() float64 {
	if s.totalIterations <= 1 {
		return 0.0
	}
	return s.newS / float64(s.totalIterations-1)
}

func (s *Statistic) Stdev() float64 {
	return math.Sqrt(s.Variance())
}

func (s *Statistic) Last() float64 {
	return s.last
}

func (s *Statistic) Min() float64 {
	return s.minimum
}

func (s *Statistic) Max() float64 {
	return s.maximum
}

// StandardError returns the standard error of the statistic.
func (s *Statistic) StandardError() float64 {
	return math.Sqrt(s.Variance() / float64(s.totalIterations))
}

func (s *Statistic) Iterations() int {
	return s.totalIterations
}

// ConfidenceInterval returns the half-width of the two-tailed interval
// around the mean at the given confidence level (0 to 100 percent).
func (s *Statistic) ConfidenceInterval(confidence float64) float64 {
	if s.totalIterations == 0 {
		return 0.0
	}
	return ZVal(confidence) * s.StandardError()
}

// ZVal returns the two-tailed Z-value associated with a specific confidence interval.
// The interval is a number from 0 to 100 percent.
func ZVal(confidenceInterval float64) float64 {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: 1,
	}
	area := (1 + (confidenceInterval / 100)) / 2
	zValue := dist.Quantile(area)
	return zValue
}
