package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp. It holds no state and is safe for concurrent use.
type FFT struct{}

func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the full complex spectrum of a real signal. go-dsp handles
// sizes that are not powers of two.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// OneSidedMagnitude writes |X[k]|*scale for k in [0, len(dst)) into dst,
// zero-padding or truncating x to n points first.
func (f *FFT) OneSidedMagnitude(dst, x []float64, n int, scale float64) {
	buf := make([]float64, n)
	copy(buf, x)
	spectrum := f.Compute(buf)
	for k := range dst {
		dst[k] = cmplx.Abs(spectrum[k]) * scale
	}
}
