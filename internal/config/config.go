// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"ici/internal/coherence"
)

// Defaults for the host runtime configuration.
const (
	DefaultLogLevel     = "info"
	DefaultSampleRate   = 48000.0
	DefaultWindow       = "hann"
	DefaultWSAddress    = "127.0.0.1:8090"
	DefaultUDPTarget    = "127.0.0.1:9090"
	DefaultSendInterval = 33 * time.Millisecond // ~30Hz snapshot rate.

	MinSampleRate = 8000.0
	MaxSampleRate = 192000.0
)

// Config is the host application configuration, loaded from YAML with
// environment overrides. The engine section maps onto the immutable engine
// configuration; the rest configures the host and its telemetry boundary.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Verbose logging and debug features.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Engine    EngineConfig    `yaml:"engine"`    // Coherence engine settings.
	Source    SourceConfig    `yaml:"source"`    // Block source settings for the host.
	Telemetry TelemetryConfig `yaml:"telemetry"` // Snapshot publishing settings.
}

// EngineConfig holds the engine construction parameters, fixed for the
// engine's lifetime.
type EngineConfig struct {
	Channels     int     `yaml:"channels"`       // Channel count N (>= 2).
	BlockSize    int     `yaml:"block_size"`     // Samples per channel per block.
	Alpha        float64 `yaml:"alpha"`          // EMA smoothing factor in (0,1].
	Window       string  `yaml:"window"`         // Analysis window name (default "hann").
	ComplexFFT   bool    `yaml:"complex_fft"`    // Full complex transform instead of real-to-complex.
	OutputMatrix bool    `yaml:"output_matrix"`  // Include the N x N matrix in outputs.
	OutputVector bool    `yaml:"output_vector"`  // Include the per-channel summary vector.
}

// SourceConfig describes where the host gets blocks from (synthetic stream
// pacing, WAV analysis).
type SourceConfig struct {
	SampleRate float64 `yaml:"sample_rate"` // Sample rate in Hz, used for pacing and tone generation.
}

// TelemetryConfig holds settings for publishing engine snapshots.
type TelemetryConfig struct {
	WSEnabled    bool          `yaml:"ws_enabled"`    // Serve snapshots over WebSocket.
	WSAddress    string        `yaml:"ws_address"`    // WebSocket listen address, e.g. "127.0.0.1:8090".
	UDPEnabled   bool          `yaml:"udp_enabled"`   // Send binary snapshot frames over UDP.
	UDPTarget    string        `yaml:"udp_target"`    // UDP target address, e.g. "127.0.0.1:9090".
	SendInterval time.Duration `yaml:"send_interval"` // Interval between published snapshots.
}

// Default returns the built-in configuration: the reference deployment's
// 8-channel, 512-sample engine with telemetry disabled.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Engine: EngineConfig{
			Channels:  coherence.DefaultNumChannels,
			BlockSize: coherence.DefaultBlockSize,
			Alpha:     coherence.DefaultSmoothingAlpha,
			Window:    DefaultWindow,
		},
		Source: SourceConfig{
			SampleRate: DefaultSampleRate,
		},
		Telemetry: TelemetryConfig{
			WSEnabled:    false,
			WSAddress:    DefaultWSAddress,
			UDPEnabled:   false,
			UDPTarget:    DefaultUDPTarget,
			SendInterval: DefaultSendInterval,
		},
	}
}

// Load reads configuration from a YAML file at path. An empty path checks
// "config.yaml" and falls back to built-in defaults when no file exists.
// Environment overrides apply after the file, and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		} else {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks host-level bounds and delegates engine bounds to the
// engine's own configuration type.
func (c *Config) Validate() error {
	if _, err := c.EngineConfig(); err != nil {
		return err
	}
	if c.Source.SampleRate < MinSampleRate || c.Source.SampleRate > MaxSampleRate {
		return fmt.Errorf("source.sample_rate %g outside [%g, %g]", c.Source.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Telemetry.WSEnabled && c.Telemetry.WSAddress == "" {
		return fmt.Errorf("telemetry.ws_address must be set when WebSocket publishing is enabled")
	}
	if c.Telemetry.UDPEnabled && c.Telemetry.UDPTarget == "" {
		return fmt.Errorf("telemetry.udp_target must be set when UDP publishing is enabled")
	}
	if (c.Telemetry.WSEnabled || c.Telemetry.UDPEnabled) && c.Telemetry.SendInterval <= 0 {
		return fmt.Errorf("telemetry.send_interval must be positive when publishing is enabled")
	}
	return nil
}

// EngineConfig resolves the engine section into the engine's configuration
// type, parsing the window name and validating the numeric bounds.
func (c *Config) EngineConfig() (coherence.Config, error) {
	window, err := coherence.ParseWindowFunc(c.Engine.Window)
	if err != nil {
		return coherence.Config{}, err
	}
	ec := coherence.Config{
		NumChannels:    c.Engine.Channels,
		BlockSize:      c.Engine.BlockSize,
		SmoothingAlpha: c.Engine.Alpha,
		Window:         window,
		UseRealFFT:     !c.Engine.ComplexFFT,
		OutputMatrix:   c.Engine.OutputMatrix,
		OutputVector:   c.Engine.OutputVector,
	}
	if err := ec.Validate(); err != nil {
		return coherence.Config{}, err
	}
	return ec, nil
}

// applyEnvOverrides applies ICI_* environment variables on top of the
// current values. Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ICI_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("ICI_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}
	if val, ok := os.LookupEnv("ICI_CHANNELS"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Engine.Channels = iVal
		}
	}
	if val, ok := os.LookupEnv("ICI_BLOCK_SIZE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Engine.BlockSize = iVal
		}
	}
	if val, ok := os.LookupEnv("ICI_ALPHA"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Engine.Alpha = fVal
		}
	}
	if val, ok := os.LookupEnv("ICI_WS_ADDRESS"); ok {
		cfg.Telemetry.WSAddress = val
		cfg.Telemetry.WSEnabled = true
	}
	if val, ok := os.LookupEnv("ICI_UDP_TARGET"); ok {
		cfg.Telemetry.UDPTarget = val
		cfg.Telemetry.UDPEnabled = true
	}
	if val, ok := os.LookupEnv("ICI_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Telemetry.SendInterval = dur
		}
	}
}
