package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-cusum/logging"
)

// AudioData is decoded mono PCM
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"`
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 8000,
		MaxDuration:      0, // no limit
		FFmpegPath:       "ffmpeg",
		Timeout:          5 * time.Minute,
	}
}

// Decoder shells out to ffmpeg to get raw f64le mono samples.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// Validate checks the configuration without running ffmpeg
func (d *Decoder) Validate() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.FFmpegPath == "" {
		return errors.New("ffmpeg path is empty")
	}
	return nil
}

// DecodeFile decodes filename to mono PCM at the target sample rate
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	logger := d.logger.WithFields(logging.Fields{"filename": filename})

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := append([]string{"-i", filename}, d.buildFFmpegArgs()...)
	args = append(args, "pipe:1")
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	logger.Debug("running ffmpeg", logging.Fields{"args": strings.Join(args, " ")})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(d.config.TargetSampleRate)
	logger.Debug("decode finished", logging.Fields{
		"samples":  len(samples),
		"duration": duration.Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Duration:   duration,
		Source:     filename,
	}, nil
}

func (d *Decoder) buildFFmpegArgs() []string {
	args := []string{
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error")
}

// bytesToFloat64 converts little-endian float64 bytes, dropping a trailing partial sample
func bytesToFloat64(data []byte) []float64 {
	data = data[:len(data)-len(data)%8]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return samples
}
