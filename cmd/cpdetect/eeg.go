package main

import (
	"github.com/RyanBlaney/sonido-cusum/algorithms/changepoint"
	"github.com/RyanBlaney/sonido-cusum/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cusum/config"
	"github.com/RyanBlaney/sonido-cusum/logging"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// channelReport is the per-channel output of the eeg and audio commands.
type channelReport struct {
	*changepoint.Result
	// Times are the event start times in seconds.
	Times []float64 `json:"times"`
}

func newEEGCmd(opts *options) *cobra.Command {
	var fs float64

	cmd := &cobra.Command{
		Use:   "eeg <samples.csv>",
		Short: "Detect change points in the four regional channels of an EEG recording",
		Long: `Reads a CSV recording (one row per sample, one column per 10-20
electrode in fp1 f3 c3 p3 o1 fp2 f4 c4 p4 o2 f7 t3 t5 f8 t4 t6 fz cz pz
order), builds the LL, LP, RP and RL montage spectrograms, and scans each
region independently.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readMatrix(args[0])
			if err != nil {
				return err
			}

			specCfg := opts.cfg.Spectrogram
			if cmd.Flags().Changed("fs") {
				specCfg = config.DefaultEEGSpectrogramConfig(fs)
			}
			if err := specCfg.Validate(); err != nil {
				return err
			}

			montage := spectral.NewMontage(spectral.NewSpectrogram().WithLogger(opts.logger))
			specs, err := montage.Spectrograms(data, specCfg)
			if err != nil {
				return err
			}

			reports, err := opts.detectRegions(cmd, specs, specCfg)
			if err != nil {
				return err
			}
			return opts.writeJSON(cmd, reports)
		},
	}
	cmd.Flags().Float64Var(&fs, "fs", 200, "sampling rate in Hz")
	return cmd
}

func (o *options) detectRegions(cmd *cobra.Command, specs map[spectral.Region]*mat.Dense, specCfg config.SpectrogramConfig) (map[string]channelReport, error) {
	channels := make(map[string]changepoint.Series, len(specs))
	blocks := 0
	for region, spec := range specs {
		series, err := changepoint.NewPowerSeries(spec, o.cfg.Detector)
		if err != nil {
			return nil, err
		}
		channels[string(region)] = series
		_, blocks = spec.Dims()
	}

	o.logger.Info("scanning regions", logging.Fields{"regions": len(channels), "blocks": blocks})

	results, err := changepoint.NewDetector().WithLogger(o.logger).DetectChannels(cmd.Context(), channels)
	if err != nil {
		return nil, err
	}

	timeBase := spectral.TimeBase(blocks, specCfg)
	reports := make(map[string]channelReport, len(results))
	for name, res := range results {
		times, err := res.Timestamps(timeBase)
		if err != nil {
			return nil, err
		}
		reports[name] = channelReport{Result: res, Times: times}
	}
	return reports, nil
}
