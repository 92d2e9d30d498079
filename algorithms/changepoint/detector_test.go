package changepoint

import (
	"math/rand/v2"
	"testing"

	"github.com/RyanBlaney/sonido-cusum/config"
	"github.com/RyanBlaney/sonido-cusum/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestDetector() *Detector {
	return NewDetector().WithLogger(&logging.NoOpLogger{})
}

func strideOne() config.DetectorConfig {
	cfg := config.DefaultDetectorConfig()
	cfg.Stride = 1
	return cfg
}

func stepSeries(t *testing.T, before, after float64, at, n int) *PowerSeries {
	t.Helper()
	sums := make([]float64, n)
	for j := range sums {
		if j < at {
			sums[j] = before
		} else {
			sums[j] = after
		}
	}
	series, err := NewPowerSeriesFromSums(sums, strideOne())
	require.NoError(t, err)
	return series
}

func TestDetect_ConstantAtSeed(t *testing.T) {
	series := stepSeries(t, SeedLevel, SeedLevel, 0, 300)

	res, err := newTestDetector().Detect(series)
	require.NoError(t, err)

	assert.Zero(t, res.TotalCount)
	assert.Empty(t, res.Events)
	for j := range series.Len() {
		assert.InDelta(t, SeedLevel, res.Trajectory.M[j], 1e-9, "m[%d]", j)
		assert.InDelta(t, SeedLevel, res.Trajectory.MU[j], 1e-9, "mu[%d]", j)
		assert.Zero(t, res.Trajectory.CU[j])
		assert.Zero(t, res.Trajectory.CL[j])
	}
}

func TestDetect_StepUp(t *testing.T) {
	// samples above the ceiling saturate at 5000
	series := stepSeries(t, 1000, 9000, 100, 500)

	res, err := newTestDetector().Detect(series)
	require.NoError(t, err)

	// m: 1200, 1390, 1570.5 from j=100; mu frozen at 1000 since j=20
	assert.InDelta(t, 1390.0, res.Trajectory.M[101], 1e-9)
	assert.InDelta(t, 190.0, res.Trajectory.CU[101], 1e-9)
	assert.InDelta(t, 1000.0, res.Trajectory.MU[101], 1e-9)

	assert.Equal(t, []int{102, 105, 108, 111, 120}, res.Steps)
	assert.Equal(t, res.Steps, res.Events)
	assert.Equal(t, SideUp, res.Sides[0])

	// cu reached 560.5 over a run of 3 steps: mu = 1000 + 200 + 560.5/3
	assert.Zero(t, res.Trajectory.CU[102])
	assert.InDelta(t, 1386.8333333333337, res.Trajectory.MU[102], 1e-9)
	assert.Greater(t, res.Trajectory.MU[102], res.Trajectory.MU[101])
}

func TestDetect_StepDown(t *testing.T) {
	series := stepSeries(t, 5000, 1000, 100, 500)

	res, err := newTestDetector().Detect(series)
	require.NoError(t, err)

	// the rise from the seed fires upward first, the drop at j=100 fires downward
	require.GreaterOrEqual(t, len(res.Steps), 6)
	assert.Equal(t, []int{3, 6, 9, 12, 21, 104}, res.Steps[:6])
	for i := range 5 {
		assert.Equal(t, SideUp, res.Sides[i])
	}
	assert.Equal(t, SideDown, res.Sides[5])

	// cl reached about 507.1 over 3 steps with mu frozen near 2999.47
	assert.Zero(t, res.Trajectory.CL[104])
	assert.InDelta(t, 2630.4414583333332, res.Trajectory.MU[104], 1e-9)
	assert.Less(t, res.Trajectory.MU[104], res.Trajectory.MU[103])
	for i := 5; i < len(res.Sides); i++ {
		assert.Equal(t, SideDown, res.Sides[i], "detection at step %d", res.Steps[i])
	}
}

func TestDetect_Invariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	sums := make([]float64, 20000)
	level := 1000.0
	for i := range sums {
		if i%1500 == 0 {
			level = 200 + rng.Float64()*6000
		}
		sums[i] = max(0, level+rng.NormFloat64()*300)
	}
	series, err := NewPowerSeriesFromSums(sums, config.DefaultDetectorConfig())
	require.NoError(t, err)

	res, err := newTestDetector().Detect(series)
	require.NoError(t, err)

	assert.Equal(t, res.TotalCount, len(res.Events))
	assert.Equal(t, res.TotalCount, len(res.Amplitudes))
	assert.Equal(t, res.TotalCount, len(res.Steps))
	assert.Positive(t, res.TotalCount)

	for i := 1; i < len(res.Steps); i++ {
		assert.Greater(t, res.Steps[i], res.Steps[i-1])
	}
	for i, s := range res.Steps {
		assert.Equal(t, s*10, res.Events[i])
		assert.Equal(t, MaxAmplitude, res.Amplitudes[i])
		if res.Sides[i].Up() {
			assert.Zero(t, res.Trajectory.CU[s])
		}
		if res.Sides[i].Down() {
			assert.Zero(t, res.Trajectory.CL[s])
		}
	}

	tr := res.Trajectory
	require.Equal(t, series.Len(), tr.Len())
	for j := range tr.Len() {
		assert.True(t, tr.M[j] >= 0 && tr.M[j] <= MaxAmplitude, "m[%d]=%v", j, tr.M[j])
		assert.True(t, tr.MU[j] >= 0 && tr.MU[j] <= MaxAmplitude, "mu[%d]=%v", j, tr.MU[j])
		assert.GreaterOrEqual(t, tr.CU[j], 0.0)
		assert.GreaterOrEqual(t, tr.CL[j], 0.0)
	}
}

func TestDetect_Idempotent(t *testing.T) {
	series := stepSeries(t, 5000, 1000, 100, 500)
	d := newTestDetector()

	first, err := d.Detect(series)
	require.NoError(t, err)
	second, err := d.Detect(series)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDetect_TooShort(t *testing.T) {
	series, err := NewPowerSeriesFromSums(make([]float64, 19), config.DefaultDetectorConfig())
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())

	res, err := newTestDetector().Detect(series)
	assert.ErrorIs(t, err, ErrSeriesTooShort)
	assert.Nil(t, res)
}

func TestDetect_MinimalSeries(t *testing.T) {
	series, err := NewPowerSeriesFromSums([]float64{1000, 1000}, strideOne())
	require.NoError(t, err)

	res, err := newTestDetector().Detect(series)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Trajectory.Len())
	assert.Zero(t, res.TotalCount)
}

func TestDetect_FromMatrix(t *testing.T) {
	// two frequency bins, 1000 time blocks, total power steps from 1000 to 4000 at block 300
	const blocks = 1000
	data := make([]float64, 2*blocks)
	for c := range blocks {
		v := 500.0
		if c >= 300 {
			v = 2000
		}
		data[c] = v
		data[blocks+c] = v
	}
	series, err := NewPowerSeries(mat.NewDense(2, blocks, data), config.DefaultDetectorConfig())
	require.NoError(t, err)
	require.Equal(t, 100, series.Len())

	res, err := newTestDetector().Detect(series)
	require.NoError(t, err)
	require.NotEmpty(t, res.Steps)

	assert.Equal(t, 10, res.Stride)
	assert.Greater(t, res.Steps[0], 30)
	for i, s := range res.Steps {
		assert.Equal(t, s*10, res.Events[i])
	}

	timeBase := make([]float64, blocks)
	for i := range timeBase {
		timeBase[i] = float64(i) * 0.2
	}
	ts, err := res.Timestamps(timeBase)
	require.NoError(t, err)
	assert.InDelta(t, float64(res.Events[0])*0.2, ts[0], 1e-9)

	_, err = res.Timestamps(timeBase[:10])
	assert.ErrorIs(t, err, ErrTimeBaseTooShort)
}

func TestPackageDetect(t *testing.T) {
	prev := logging.GetGlobalLogger()
	defer logging.SetGlobalLogger(prev)
	logging.SetGlobalLogger(nil)

	res, err := Detect(stepSeries(t, 1000, 5000, 100, 500))
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
}
