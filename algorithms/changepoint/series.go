package changepoint

import (
	"fmt"

	"github.com/RyanBlaney/sonido-cusum/config"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Series is the detector's input: N samples on the strided working time base.
type Series interface {
	// Len returns N, the number of detector steps.
	Len() int
	// Sample returns the clipped power at step j, 0 <= j < Len().
	Sample(j int) float64
	// Stride returns the ratio between the raw time resolution and one step.
	Stride() int
}

// PowerSeries is the per-time-block total power of a frequency x time matrix,
// read every stride blocks and clipped at ClipCeiling.
type PowerSeries struct {
	sums   []float64
	stride int
	n      int
}

// NewPowerSeries sums spec over its rows (frequency bins) for each column (time block).
func NewPowerSeries(spec mat.Matrix, cfg config.DetectorConfig) (*PowerSeries, error) {
	rows, cols := spec.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyMatrix, rows, cols)
	}

	sums := make([]float64, cols)
	col := make([]float64, rows)
	for t := range cols {
		mat.Col(col, t, spec)
		sums[t] = floats.Sum(col)
	}

	return NewPowerSeriesFromSums(sums, cfg)
}

// NewPowerSeriesFromSums builds a series from an already aggregated power series.
// sums is copied.
func NewPowerSeriesFromSums(sums []float64, cfg config.DetectorConfig) (*PowerSeries, error) {
	if cfg.Stride <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStride, cfg.Stride)
	}
	if len(sums) == 0 {
		return nil, fmt.Errorf("%w: no time blocks", ErrEmptyMatrix)
	}

	return &PowerSeries{
		sums:   append([]float64(nil), sums...),
		stride: cfg.Stride,
		n:      cfg.LengthRule.SeriesLength(len(sums), cfg.Stride),
	}, nil
}

func (p *PowerSeries) Len() int {
	return p.n
}

func (p *PowerSeries) Stride() int {
	return p.stride
}

// Sample saturates at ClipCeiling; values are never rejected.
func (p *PowerSeries) Sample(j int) float64 {
	s := p.sums[j*p.stride]
	if s > ClipCeiling {
		s = ClipCeiling
	}
	return s
}

// RawLen returns the number of time blocks before striding.
func (p *PowerSeries) RawLen() int {
	return len(p.sums)
}

// Samples returns all N clipped samples.
func (p *PowerSeries) Samples() []float64 {
	out := make([]float64, p.n)
	for j := range out {
		out[j] = p.Sample(j)
	}
	return out
}
