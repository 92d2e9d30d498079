package windowing

import (
	"fmt"
	"math"
)

// Hann is a raised-cosine window.
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a Hann window of size points. A symmetric window uses
// 0.5 - 0.5*cos(2*pi*i/(size-1)), the periodic one divides by size.
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

func (h *Hann) generate() {
	h.coefficients = make([]float64, h.size)
	if h.size == 1 {
		h.coefficients[0] = 1
		return
	}

	denominator := float64(h.size)
	if h.symmetric {
		denominator = float64(h.size - 1)
	}

	for i := range h.size {
		h.coefficients[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/denominator)
	}
}

// ApplyInPlace multiplies signal by the window
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i := range signal {
		signal[i] *= h.coefficients[i]
	}

	return nil
}

// Coefficients returns a copy of the window coefficients
func (h *Hann) Coefficients() []float64 {
	return append([]float64(nil), h.coefficients...)
}

func (h *Hann) Size() int {
	return h.size
}
