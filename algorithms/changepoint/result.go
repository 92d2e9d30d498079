package changepoint

import (
	"fmt"
	"slices"
)

// Trajectory holds the per-step detector state, index 0 being the seed.
type Trajectory struct {
	M  []float64 `json:"m"`
	MU []float64 `json:"mu"`
	CU []float64 `json:"cu"`
	CL []float64 `json:"cl"`
}

func (t *Trajectory) set(s Step) {
	t.M[s.Index] = s.M
	t.MU[s.Index] = s.MU
	t.CU[s.Index] = s.CU
	t.CL[s.Index] = s.CL
}

// Len returns the number of steps recorded.
func (t Trajectory) Len() int {
	return len(t.M)
}

// Result is the output of one scan.
type Result struct {
	// Steps are the detector steps j at which a detection fired, strictly increasing.
	Steps []int `json:"steps"`
	// Events are the detections on the raw time base, j*stride.
	Events []int `json:"events"`
	// Sides tells which accumulator fired for each detection.
	Sides []Side `json:"sides"`
	// Amplitudes is MaxAmplitude for every detection, a plotting marker.
	Amplitudes []float64 `json:"amplitudes"`
	TotalCount int       `json:"total_count"`
	Stride     int       `json:"stride"`

	Trajectory Trajectory `json:"trajectory"`
}

// Timestamps maps Events through a raw-resolution time base.
func (r *Result) Timestamps(timeBase []float64) ([]float64, error) {
	out := make([]float64, len(r.Events))
	for i, e := range r.Events {
		if e >= len(timeBase) {
			return nil, fmt.Errorf("%w: event %d, time base has %d entries", ErrTimeBaseTooShort, e, len(timeBase))
		}
		out[i] = timeBase[e]
	}
	return out, nil
}

// Record converts the result into the record format compared by Verify.
func (r *Result) Record() *Record {
	count := r.TotalCount
	// a run without detections still carries empty event lists, which
	// Verify compares, unlike missing ones
	return &Record{
		Events:     append([]int{}, r.Events...),
		Amplitudes: append([]float64{}, r.Amplitudes...),
		CU:         slices.Clone(r.Trajectory.CU),
		CL:         slices.Clone(r.Trajectory.CL),
		MU:         slices.Clone(r.Trajectory.MU),
		M:          slices.Clone(r.Trajectory.M),
		TotalCount: &count,
	}
}
