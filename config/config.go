package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// LengthRule selects how the detector's series length N is derived from the
// raw power-series length and the stride.
type LengthRule string

const (
	// LengthFloor uses N = len / stride.
	LengthFloor LengthRule = "floor"
	// LengthCeil uses N = ceil(len / stride), the length of a strided time base t[::stride].
	LengthCeil LengthRule = "ceil"
)

// SeriesLength applies the rule. The result never addresses a sample past rawLen.
func (r LengthRule) SeriesLength(rawLen, stride int) int {
	if stride <= 0 || rawLen <= 0 {
		return 0
	}
	switch r {
	case LengthCeil:
		return (rawLen + stride - 1) / stride
	default:
		return rawLen / stride
	}
}

// Tolerance configures approximate float comparison: |a-b| <= Abs + Rel*|b|.
type Tolerance struct {
	Rel float64 `json:"rel" yaml:"rel"`
	Abs float64 `json:"abs" yaml:"abs"`
}

// DetectorConfig configures the extractor and the verification utility.
// The CUSUM parameters themselves are fixed.
type DetectorConfig struct {
	Stride     int        `json:"stride" yaml:"stride"`
	LengthRule LengthRule `json:"length_rule" yaml:"length_rule"`
	Tolerance  Tolerance  `json:"tolerance" yaml:"tolerance"`
}

// DefaultDetectorConfig matches the reference runs: stride 10, floor length
// rule, numpy allclose tolerances.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Stride:     10,
		LengthRule: LengthFloor,
		Tolerance: Tolerance{
			Rel: 1e-5,
			Abs: 1e-8,
		},
	}
}

// SpectrogramConfig holds the block parameters of the power spectrogram.
type SpectrogramConfig struct {
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
	NFFT       int     `json:"nfft" yaml:"nfft"`
	Shift      int     `json:"shift" yaml:"shift"`
}

// NumFreqs returns the number of one-sided frequency bins.
func (c SpectrogramConfig) NumFreqs() int {
	return c.NFFT/2 + 1
}

// NumBlocks returns the number of full blocks that fit in n samples.
func (c SpectrogramConfig) NumBlocks(n int) int {
	if c.Shift <= 0 || n < c.NFFT {
		return 0
	}
	return (n-c.NFFT)/c.Shift + 1
}

// DefaultEEGSpectrogramConfig uses a 1.5 s window rounded up to a power of two
// and a 0.2 s step.
func DefaultEEGSpectrogramConfig(fs float64) SpectrogramConfig {
	nwin := int(fs * 1.5)
	nfft := nwin
	if nwin > 0 {
		nfft = max(1<<int(math.Ceil(math.Log2(float64(nwin)))), nwin)
	}
	return SpectrogramConfig{
		SampleRate: fs,
		NFFT:       nfft,
		Shift:      int(fs * 0.2),
	}
}

// DefaultAudioSpectrogramConfig uses nfft 1024 with half overlap.
func DefaultAudioSpectrogramConfig(fs float64) SpectrogramConfig {
	return SpectrogramConfig{
		SampleRate: fs,
		NFFT:       1024,
		Shift:      512,
	}
}

// Config is the file-level configuration of the cpdetect tool.
type Config struct {
	Detector    DetectorConfig    `json:"detector" yaml:"detector"`
	Spectrogram SpectrogramConfig `json:"spectrogram" yaml:"spectrogram"`
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	LogFormat   string            `json:"log_format" yaml:"log_format"` // "text", "json"
}

// DefaultConfig returns the defaults used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Detector:    DefaultDetectorConfig(),
		Spectrogram: DefaultEEGSpectrogramConfig(200),
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the extractor or spectrogram cannot run with.
func (c *Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	return c.Spectrogram.Validate()
}

func (c DetectorConfig) Validate() error {
	if c.Stride <= 0 {
		return fmt.Errorf("stride must be positive, got %d", c.Stride)
	}
	switch c.LengthRule {
	case LengthFloor, LengthCeil:
	default:
		return fmt.Errorf("unknown length rule %q", c.LengthRule)
	}
	if c.Tolerance.Rel < 0 || c.Tolerance.Abs < 0 {
		return fmt.Errorf("tolerances must be non-negative")
	}
	return nil
}

func (c SpectrogramConfig) Validate() error {
	if c.NFFT <= 0 {
		return fmt.Errorf("nfft must be positive, got %d", c.NFFT)
	}
	if c.Shift <= 0 {
		return fmt.Errorf("shift must be positive, got %d", c.Shift)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", c.SampleRate)
	}
	return nil
}
