package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-cusum/algorithms/changepoint"
	"github.com/RyanBlaney/sonido-cusum/logging"
	"github.com/spf13/cobra"
)

func newDetectCmd(opts *options) *cobra.Command {
	var asRecord bool

	cmd := &cobra.Command{
		Use:   "detect <matrix.csv>",
		Short: "Run the detector on a frequency x time power matrix",
		Long: `Reads a CSV power matrix (one row per frequency bin, one column per
time block), sums each column, and prints the detections with the full
detector trajectories.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.detectMatrix(args[0])
			if err != nil {
				return err
			}
			if asRecord {
				return opts.writeJSON(cmd, res.Record())
			}
			return opts.writeJSON(cmd, res)
		},
	}
	cmd.Flags().BoolVar(&asRecord, "record", false, "print a reference record usable by verify")
	return cmd
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <reference.json> <matrix.csv>",
		Short: "Compare a detector run against a reference record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			reference, err := changepoint.ReadRecord(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			res, err := opts.detectMatrix(args[1])
			if err != nil {
				return err
			}
			computed := res.Record()
			computed.Channel = reference.Channel
			computed.TimeBase = reference.TimeBase

			mismatches := changepoint.Verify(reference, computed, opts.cfg.Detector.Tolerance)
			if err := changepoint.WriteReport(cmd.OutOrStdout(), mismatches); err != nil {
				return err
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d field(s) differ from %s", len(mismatches), args[0])
			}
			return nil
		},
	}
}

func (o *options) detectMatrix(path string) (*changepoint.Result, error) {
	spec, err := readMatrix(path)
	if err != nil {
		return nil, err
	}
	series, err := changepoint.NewPowerSeries(spec, o.cfg.Detector)
	if err != nil {
		return nil, err
	}

	rows, cols := spec.Dims()
	o.logger.Info("scanning power matrix", logging.Fields{
		"file":  path,
		"freqs": rows,
		"time":  cols,
		"steps": series.Len(),
	})

	return changepoint.NewDetector().WithLogger(o.logger).Detect(series)
}
