package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-cusum/algorithms/windowing"
	"github.com/RyanBlaney/sonido-cusum/config"
	"github.com/RyanBlaney/sonido-cusum/logging"
	"gonum.org/v1/gonum/mat"
)

// Spectrogram computes block magnitude spectra laid out frequency x time,
// the layout the change-point extractor sums over.
type Spectrogram struct {
	fft    *FFT
	logger logging.Logger
}

// NewSpectrogram creates a spectrogram calculator
func NewSpectrogram() *Spectrogram {
	return &Spectrogram{
		fft:    NewFFT(),
		logger: logging.WithFields(logging.Fields{"component": "spectrogram"}),
	}
}

// WithLogger returns a copy logging to logger
func (s *Spectrogram) WithLogger(logger logging.Logger) *Spectrogram {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Spectrogram{fft: s.fft, logger: logger}
}

// Compute cuts signal into blocks of cfg.NFFT samples every cfg.Shift samples,
// applies a symmetric Hann window and stores |rfft(block)|/nfft in column t
// of the result. The result has cfg.NumFreqs() rows and one column per
// full block.
func (s *Spectrogram) Compute(signal []float64, cfg config.SpectrogramConfig) (*mat.Dense, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nblocks := cfg.NumBlocks(len(signal))
	if nblocks <= 0 {
		return nil, fmt.Errorf("signal of %d samples is shorter than one block of %d", len(signal), cfg.NFFT)
	}
	nfreqs := cfg.NumFreqs()
	out := mat.NewDense(nfreqs, nblocks, nil)
	window := windowing.NewHann(cfg.NFFT, true)
	scale := 1 / float64(cfg.NFFT)

	jobs := make(chan int, nblocks)
	for b := range nblocks {
		jobs <- b
	}
	close(jobs)

	var wg sync.WaitGroup
	for range workerCount(nblocks) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frame := make([]float64, cfg.NFFT)
			column := make([]float64, nfreqs)
			for b := range jobs {
				start := b * cfg.Shift
				copy(frame, signal[start:start+cfg.NFFT])
				// lengths match by construction
				_ = window.ApplyInPlace(frame)

				s.fft.OneSidedMagnitude(column, frame, cfg.NFFT, scale)
				// columns are disjoint, so workers never write the same element
				out.SetCol(b, column)
			}
		}()
	}
	wg.Wait()

	s.logger.Debug("spectrogram computed", logging.Fields{
		"samples": len(signal),
		"nfft":    cfg.NFFT,
		"shift":   cfg.Shift,
		"blocks":  nblocks,
	})

	return out, nil
}

// TimeBase returns the start time in seconds of each block.
func TimeBase(nblocks int, cfg config.SpectrogramConfig) []float64 {
	out := make([]float64, nblocks)
	for b := range out {
		out[b] = float64(b*cfg.Shift) / cfg.SampleRate
	}
	return out
}

func workerCount(nblocks int) int {
	numCPU := runtime.NumCPU()
	if nblocks < 100 {
		return max(1, min(numCPU/2, nblocks))
	}
	return max(1, numCPU)
}
