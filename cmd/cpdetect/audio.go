package main

import (
	"time"

	"github.com/RyanBlaney/sonido-cusum/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cusum/config"
	"github.com/RyanBlaney/sonido-cusum/transcode"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func newAudioCmd(opts *options) *cobra.Command {
	decoderCfg := transcode.DefaultDecoderConfig()
	var maxDuration time.Duration

	cmd := &cobra.Command{
		Use:   "audio <file>",
		Short: "Detect change points in the spectrogram power of an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decoderCfg.MaxDuration = maxDuration
			audio, err := transcode.NewDecoder(decoderCfg).DecodeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			specCfg := config.DefaultAudioSpectrogramConfig(float64(audio.SampleRate))
			spec, err := spectral.NewSpectrogram().WithLogger(opts.logger).Compute(audio.PCM, specCfg)
			if err != nil {
				return err
			}

			reports, err := opts.detectRegions(cmd, map[spectral.Region]*mat.Dense{"audio": spec}, specCfg)
			if err != nil {
				return err
			}
			return opts.writeJSON(cmd, reports["audio"])
		},
	}

	cmd.Flags().IntVar(&decoderCfg.TargetSampleRate, "sample-rate", decoderCfg.TargetSampleRate, "decode sample rate in Hz")
	cmd.Flags().StringVar(&decoderCfg.FFmpegPath, "ffmpeg", decoderCfg.FFmpegPath, "path to the ffmpeg binary")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "decode at most this much audio")
	return cmd
}
