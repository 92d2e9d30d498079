// Command cpdetect runs the CUSUM change-point detector over power matrices,
// multi-electrode EEG recordings and audio files.
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-cusum/config"
	"github.com/RyanBlaney/sonido-cusum/logging"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string
	logFormat  string
	stride     int
	lengthRule string
	output     string

	cfg    *config.Config
	logger logging.Logger
	// zap is set when logging as JSON and is flushed after the command runs.
	zap *logging.ZapLogger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "cpdetect",
		Short:         "Detect change points in spectrogram power",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			opts.syncLogger()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "text or json")
	flags.IntVar(&opts.stride, "stride", 0, "time blocks per detector step (default from config)")
	flags.StringVar(&opts.lengthRule, "length-rule", "", "series length rule: floor or ceil")
	flags.StringVarP(&opts.output, "output", "o", "", "write JSON output to this file instead of stdout")

	rootCmd.AddCommand(
		newDetectCmd(opts),
		newVerifyCmd(opts),
		newEEGCmd(opts),
		newAudioCmd(opts),
	)
	return rootCmd
}

// load reads the config file and applies flag overrides.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.stride != 0 {
		cfg.Detector.Stride = o.stride
	}
	if o.lengthRule != "" {
		cfg.Detector.LengthRule = config.LengthRule(o.lengthRule)
	}
	if err := cfg.Detector.Validate(); err != nil {
		return err
	}

	var logger logging.Logger
	switch cfg.LogFormat {
	case "json":
		zl, err := logging.NewJSONLogger()
		if err != nil {
			return fmt.Errorf("build json logger: %w", err)
		}
		logger = zl
		o.zap = zl
	default:
		logger = logging.NewWriterLogger(cmd.ErrOrStderr(), cmd.ErrOrStderr(), false)
	}
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetGlobalLogger(logger)

	o.cfg = cfg
	o.logger = logger.WithFields(logging.Fields{"command": cmd.Name()})
	return nil
}

// syncLogger flushes the JSON logger. Sync on a console stderr fails with
// EINVAL or ENOTTY on some platforms, so the error is not reported.
func (o *options) syncLogger() {
	if o.zap != nil {
		_ = o.zap.Sync()
	}
}
