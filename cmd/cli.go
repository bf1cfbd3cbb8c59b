// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"time"

	"ici/internal/config"
	"ici/pkg/build"

	"github.com/spf13/cobra"
)

// Options is the parsed invocation: the resolved configuration plus the
// selected command and its positional arguments.
type Options struct {
	Config  *config.Config
	Command string // "stream", "bench" or "analyze".
	WavPath string // Input file for the analyze command.
	Blocks  int    // Block count for the bench command.
}

// ParseArgs builds the command tree, executes it against os.Args and
// returns the resolved options. Configuration precedence is flags over
// environment over file over defaults; the file and environment layers are
// applied by config.Load, flag overrides here.
func ParseArgs() (*Options, error) {
	buildInfo := build.Get()
	defaults := config.Default()
	options := &Options{}

	var (
		configPath   string
		channels     int
		blockSize    int
		alpha        float64
		windowName   string
		complexFFT   bool
		outputMatrix bool
		outputVector bool
		sampleRate   float64
		wsAddress    string
		udpTarget    string
		sendInterval time.Duration
		verbose      bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Multi-channel spectral coherence analyzer",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "stream"
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Run continuously on a synthetic source, publishing snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "stream"
			return nil
		},
	}
	rootCmd.AddCommand(streamCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Process synthetic blocks and report timing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "bench"
			return nil
		},
	}
	benchCmd.Flags().IntVarP(&options.Blocks, "blocks", "n", 1000,
		"Number of synthetic blocks to process")
	rootCmd.AddCommand(benchCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Analyze a multi-channel WAV file and print the final snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = "analyze"
			options.WavPath = args[0]
			return nil
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	// Engine configuration
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")
	rootCmd.PersistentFlags().IntVarP(&channels, "channels", "c", defaults.Engine.Channels,
		"Number of input channels (minimum 2)")
	rootCmd.PersistentFlags().IntVarP(&blockSize, "block-size", "b", defaults.Engine.BlockSize,
		"Samples per channel per block")
	rootCmd.PersistentFlags().Float64VarP(&alpha, "alpha", "a", defaults.Engine.Alpha,
		"Smoothing factor in (0,1]; lower is smoother")
	rootCmd.PersistentFlags().StringVarP(&windowName, "window", "w", defaults.Engine.Window,
		"Analysis window (hann, hamming, blackman, ...)")
	rootCmd.PersistentFlags().BoolVar(&complexFFT, "complex-fft", defaults.Engine.ComplexFFT,
		"Use the full complex transform instead of real-to-complex")
	rootCmd.PersistentFlags().BoolVarP(&outputMatrix, "matrix", "m", defaults.Engine.OutputMatrix,
		"Include the full coherence matrix in outputs")
	rootCmd.PersistentFlags().BoolVar(&outputVector, "vector", defaults.Engine.OutputVector,
		"Include the per-channel summary vector in outputs")

	// Source configuration
	rootCmd.PersistentFlags().Float64VarP(&sampleRate, "sample-rate", "s", defaults.Source.SampleRate,
		"Sample rate in Hertz (Hz)")

	// Telemetry configuration
	rootCmd.PersistentFlags().StringVar(&wsAddress, "ws", defaults.Telemetry.WSAddress,
		"WebSocket listen address for snapshot streaming")
	rootCmd.PersistentFlags().StringVar(&udpTarget, "udp", defaults.Telemetry.UDPTarget,
		"UDP target address for binary snapshot frames")
	rootCmd.PersistentFlags().DurationVar(&sendInterval, "interval", defaults.Telemetry.SendInterval,
		"Interval between published snapshots")

	// Debug configuration
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	// Help and completion paths return without selecting a command.
	if options.Command == "" {
		return options, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("channels") {
		cfg.Engine.Channels = channels
	}
	if flags.Changed("block-size") {
		cfg.Engine.BlockSize = blockSize
	}
	if flags.Changed("alpha") {
		cfg.Engine.Alpha = alpha
	}
	if flags.Changed("window") {
		cfg.Engine.Window = windowName
	}
	if flags.Changed("complex-fft") {
		cfg.Engine.ComplexFFT = complexFFT
	}
	if flags.Changed("matrix") {
		cfg.Engine.OutputMatrix = outputMatrix
	}
	if flags.Changed("vector") {
		cfg.Engine.OutputVector = outputVector
	}
	if flags.Changed("sample-rate") {
		cfg.Source.SampleRate = sampleRate
	}
	if flags.Changed("ws") {
		cfg.Telemetry.WSEnabled = true
		cfg.Telemetry.WSAddress = wsAddress
	}
	if flags.Changed("udp") {
		cfg.Telemetry.UDPEnabled = true
		cfg.Telemetry.UDPTarget = udpTarget
	}
	if flags.Changed("interval") {
		cfg.Telemetry.SendInterval = sendInterval
	}
	if verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options.Config = cfg
	return options, nil
}
