package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-cusum/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := logging.GetGlobalLogger()
	t.Cleanup(func() { logging.SetGlobalLogger(prev) })

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// writeStepMatrix writes two frequency rows of 1000 blocks whose total power
// steps from 1000 to 4000 at block 300.
func writeStepMatrix(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("# power, 2 bins x 1000 blocks\n")
	for range 2 {
		for c := range 1000 {
			if c > 0 {
				sb.WriteByte(',')
			}
			if c < 300 {
				sb.WriteString("500")
			} else {
				sb.WriteString("2000")
			}
		}
		sb.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "power.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func TestDetectCommand(t *testing.T) {
	out, err := execute(t, "detect", writeStepMatrix(t))
	require.NoError(t, err)

	var res struct {
		Steps      []int    `json:"steps"`
		Events     []int    `json:"events"`
		Sides      []string `json:"sides"`
		TotalCount int      `json:"total_count"`
		Stride     int      `json:"stride"`
		Trajectory struct {
			M []float64 `json:"m"`
		} `json:"trajectory"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	assert.Equal(t, 10, res.Stride)
	assert.Len(t, res.Trajectory.M, 100)
	assert.Equal(t, []int{33, 37, 41, 46, 51}, res.Steps)
	assert.Equal(t, []int{330, 370, 410, 460, 510}, res.Events)
	assert.Equal(t, len(res.Steps), res.TotalCount)
	for _, s := range res.Sides {
		assert.Equal(t, "up", s)
	}
}

func TestDetectCommand_StrideOverride(t *testing.T) {
	out, err := execute(t, "detect", "--stride", "1", writeStepMatrix(t))
	require.NoError(t, err)

	var res struct {
		Stride     int `json:"stride"`
		Trajectory struct {
			M []float64 `json:"m"`
		} `json:"trajectory"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Stride)
	assert.Len(t, res.Trajectory.M, 1000)
}

func TestDetectCommand_BadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2\n3,x\n"), 0o644))

	_, err := execute(t, "detect", path)
	assert.ErrorContains(t, err, "row 2 column 2")

	_, err = execute(t, "detect", "--length-rule", "round", path)
	assert.Error(t, err)
}

func TestVerifyCommand(t *testing.T) {
	matrix := writeStepMatrix(t)
	reference := filepath.Join(t.TempDir(), "reference.json")

	_, err := execute(t, "detect", "--record", "--output", reference, matrix)
	require.NoError(t, err)

	out, err := execute(t, "verify", reference, matrix)
	require.NoError(t, err)
	assert.Contains(t, out, "Results verified.")

	// shift the first event and the verify step must fail
	data, err := os.ReadFile(reference)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	rec["cp"] = []int{340, 370, 410, 460, 510}
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(reference, data, 0o644))

	out, err = execute(t, "verify", reference, matrix)
	require.Error(t, err)
	assert.Contains(t, out, "cp")
	assert.Contains(t, out, "1 field(s) differ.")
}

func TestEEGCommand(t *testing.T) {
	const (
		fs         = 200
		samples    = 60 * fs
		electrodes = 19
	)
	rng := rand.New(rand.NewPCG(7, 11))

	var sb strings.Builder
	for i := range samples {
		for e := range electrodes {
			if e > 0 {
				sb.WriteByte(',')
			}
			v := rng.NormFloat64() * 20
			if i >= samples/2 {
				v += 400 * math.Sin(2*math.Pi*10*float64(i)/fs+float64(e))
			}
			fmt.Fprintf(&sb, "%.6f", v)
		}
		sb.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "eeg.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	out, err := execute(t, "eeg", "--fs", "200", path)
	require.NoError(t, err)

	var reports map[string]struct {
		Events     []int     `json:"events"`
		Times      []float64 `json:"times"`
		TotalCount int       `json:"total_count"`
		Trajectory struct {
			M []float64 `json:"m"`
		} `json:"trajectory"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 4)

	// (12000-512)/40+1 = 288 blocks, 28 detector steps
	for _, region := range []string{"LL", "LP", "RP", "RL"} {
		r, ok := reports[region]
		require.True(t, ok, region)
		assert.Len(t, r.Trajectory.M, 28, region)
		assert.Len(t, r.Times, len(r.Events), region)
		assert.Equal(t, len(r.Events), r.TotalCount, region)
		for i, e := range r.Events {
			assert.InDelta(t, float64(e)*0.2, r.Times[i], 1e-9, region)
		}
	}
}

func TestEEGCommand_TooFewElectrodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeg.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("1,2,3\n", 1000)), 0o644))

	_, err := execute(t, "eeg", path)
	assert.ErrorContains(t, err, "electrode columns")
}

func TestAudioCommand_MissingFFmpeg(t *testing.T) {
	_, err := execute(t, "audio", "--ffmpeg", filepath.Join(t.TempDir(), "no-ffmpeg"), "clip.wav")
	assert.Error(t, err)
}

func TestDetectCommand_JSONLogs(t *testing.T) {
	_, err := execute(t, "detect", "--log-format", "json", "--log-level", "error", writeStepMatrix(t))
	require.NoError(t, err)
}

func TestSyncLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	zl := logging.NewZapLogger(zap.New(core))
	opts := &options{logger: zl, zap: zl}

	opts.logger.Info("scanning")
	opts.syncLogger()
	assert.Equal(t, 1, logs.Len())

	// text logging has nothing to flush
	(&options{}).syncLogger()
}
