package changepoint

import "fmt"

// Fixed detector parameters.
const (
	// ClipCeiling saturates extractor samples.
	ClipCeiling = 5000.0

	// FastSmoothing is the EMA factor of the short-term tracker m.
	FastSmoothing = 0.95
	// SlowSmoothing is the EMA factor of the baseline mu.
	SlowSmoothing = 0.995
	// MaxAmplitude bounds m and mu and is the amplitude marker of every detection.
	MaxAmplitude = 3000.0

	Sigma       = 100.0
	Drift       = 4 * Sigma / 2 // K
	Sensitivity = 5.0           // h
	Threshold   = Sensitivity * Sigma

	// WarmupSteps is how many steps after a detection (or the start) mu keeps tracking m.
	WarmupSteps = 20

	// SeedLevel is m[0] and mu[0].
	SeedLevel = 1000.0

	MinSeriesLength = 2
)

// Side reports which accumulator fired on a step.
type Side uint8

const (
	SideUp Side = 1 << iota
	SideDown

	SideNone Side = 0
)

func (s Side) Up() bool   { return s&SideUp != 0 }
func (s Side) Down() bool { return s&SideDown != 0 }

func (s Side) String() string {
	switch s {
	case SideNone:
		return "none"
	case SideUp:
		return "up"
	case SideDown:
		return "down"
	case SideUp | SideDown:
		return "both"
	default:
		return "unknown"
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*s = SideNone
	case "up":
		*s = SideUp
	case "down":
		*s = SideDown
	case "both":
		*s = SideUp | SideDown
	default:
		return fmt.Errorf("unknown side %q", text)
	}
	return nil
}

// Step is the tracker state after one update.
type Step struct {
	Index  int     `json:"index"`
	Sample float64 `json:"sample"`
	M      float64 `json:"m"`
	MU     float64 `json:"mu"`
	CU     float64 `json:"cu"`
	CL     float64 `json:"cl"`
	Fired  Side    `json:"fired"`
}

// Detected reports whether either side fired.
func (s Step) Detected() bool {
	return s.Fired != SideNone
}

// Tracker is the online two-sided CUSUM with an adaptive baseline. Each
// Update consumes one clipped sample. A Tracker owns all of its state and is
// not safe for concurrent use.
type Tracker struct {
	// parameters are held as variables so that 1-b is rounded in float64 at
	// run time, the way the reference computes it
	b, bb, maxAmp, k, h float64

	index  int
	m, mu  float64
	cu, cl float64
	ct     int
	np, nm int
}

// NewTracker returns a tracker at step 0 with m = mu = SeedLevel.
func NewTracker() *Tracker {
	return &Tracker{
		b:      FastSmoothing,
		bb:     SlowSmoothing,
		maxAmp: MaxAmplitude,
		k:      Drift,
		h:      Threshold,
		m:      SeedLevel,
		mu:     SeedLevel,
	}
}

// State returns the step-0 view before any update, or the last step otherwise.
func (t *Tracker) State() Step {
	return Step{Index: t.index, M: t.m, MU: t.mu, CU: t.cu, CL: t.cl}
}

// Update advances the tracker by one step with sample s.
//
// Products are wrapped in float64 conversions so the compiler does not fuse
// them into FMA instructions; detection indices must match reference runs.
func (t *Tracker) Update(s float64) Step {
	t.index++
	t.ct++

	t.m = min(float64(t.m*t.b)+float64((1-t.b)*s), t.maxAmp)
	if t.ct < WarmupSteps {
		t.mu = min(float64(t.mu*t.bb)+float64((1-t.bb)*t.m), t.maxAmp)
	}

	t.cu = max(0, t.cu+t.m-t.mu-t.k)
	t.cl = max(0, t.cl+t.mu-t.m-t.k)

	if t.cu > 0 {
		t.np++
	} else {
		t.np = 0
	}
	if t.cl > 0 {
		t.nm++
	} else {
		t.nm = 0
	}

	var fired Side
	if t.cu > t.h || t.cl > t.h {
		t.ct = 0

		if t.cu > t.h {
			fired |= SideUp
			t.mu = t.mu + t.k + meanExcess(t.cu, t.np)
			t.cu = 0
			t.np = 0
		}
		if t.cl > t.h {
			fired |= SideDown
			t.mu = t.mu - t.k - meanExcess(t.cl, t.nm)
			t.cl = 0
			t.nm = 0
		}
		t.mu = min(max(t.mu, 0), t.maxAmp)
	}

	return Step{
		Index:  t.index,
		Sample: s,
		M:      t.m,
		MU:     t.mu,
		CU:     t.cu,
		CL:     t.cl,
		Fired:  fired,
	}
}

// meanExcess is the accumulated excess per step of the run that just fired.
// It moves the baseline to the level implied by the run. A run length of 0
// divides by 1.
func meanExcess(excess float64, run int) float64 {
	return excess / float64(max(run, 1))
}
