package changepoint

import (
	"fmt"

	"github.com/RyanBlaney/sonido-cusum/logging"
)

// Detector runs full scans of a Series. A Detector holds no scan state, so one
// instance can scan many series, concurrently or not.
type Detector struct {
	logger logging.Logger
}

// NewDetector creates a detector logging through the global logger
func NewDetector() *Detector {
	return &Detector{
		logger: logging.WithFields(logging.Fields{"component": "cusum"}),
	}
}

// WithLogger returns a detector that logs to logger
func (d *Detector) WithLogger(logger logging.Logger) *Detector {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Detector{logger: logger}
}

// Detect scans series from step 1 to N-1 and returns every detection with the
// full m, mu, cu, cl trajectories. It fails before touching any state when
// N < MinSeriesLength.
func (d *Detector) Detect(series Series) (*Result, error) {
	n := series.Len()
	if n < MinSeriesLength {
		return nil, fmt.Errorf("%w: N=%d, need at least %d", ErrSeriesTooShort, n, MinSeriesLength)
	}
	stride := series.Stride()

	res := &Result{
		Steps:      []int{},
		Events:     []int{},
		Sides:      []Side{},
		Amplitudes: []float64{},
		Stride:     stride,
		Trajectory: Trajectory{
			M:  make([]float64, n),
			MU: make([]float64, n),
			CU: make([]float64, n),
			CL: make([]float64, n),
		},
	}

	tracker := NewTracker()
	res.Trajectory.set(tracker.State())

	d.logger.Debug("scan started", logging.Fields{"n": n, "stride": stride})

	for j := 1; j < n; j++ {
		step := tracker.Update(series.Sample(j))
		res.Trajectory.set(step)

		if !step.Detected() {
			continue
		}
		res.Steps = append(res.Steps, j)
		res.Events = append(res.Events, j*stride)
		res.Sides = append(res.Sides, step.Fired)
		res.Amplitudes = append(res.Amplitudes, MaxAmplitude)
		res.TotalCount++

		d.logger.Debug("change point", logging.Fields{
			"step": j,
			"side": step.Fired.String(),
			"mu":   step.MU,
		})
	}

	d.logger.Debug("scan finished", logging.Fields{"n": n, "detections": res.TotalCount})

	return res, nil
}

// Detect scans series with a detector that logs through the global logger.
func Detect(series Series) (*Result, error) {
	return NewDetector().Detect(series)
}
