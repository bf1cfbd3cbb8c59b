// SPDX-License-Identifier: MIT
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ici/cmd"
	"ici/internal/coherence"
	"ici/internal/config"
	applog "ici/internal/log"
	"ici/internal/telemetry"
	"ici/internal/telemetry/udp"
	"ici/pkg/build"
	"ici/pkg/sig"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// main is the entry point for the coherence analyzer. The program flow is
// divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Parse command line arguments and resolve configuration
//   - Configure logging
//   - Construct the engine
//
// 2. Run Phase (Hot Path):
//   - bench: drive synthetic blocks and report timing
//   - analyze: decode a WAV file and feed fixed-size blocks
//   - stream: run a paced synthetic source, publishing snapshots
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals (stream)
//   - Stop the publisher and close transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	options, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// Help and completion paths select no command.
	if options.Command == "" {
		return
	}
	cfg := options.Config

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	applog.Infof("%s", build.Get().Summary())

	var runErr error
	switch options.Command {
	case "bench":
		runErr = runBench(cfg, options.Blocks)
	case "analyze":
		runErr = runAnalyze(cfg, options.WavPath)
	case "stream":
		runErr = runStream(cfg)
	default:
		runErr = fmt.Errorf("unknown command %q", options.Command)
	}
	if runErr != nil {
		applog.Fatalf("%v", runErr)
	}
}

// newEngine resolves the engine section of the configuration and builds the
// engine. Configuration errors surface here, before any block is processed.
func newEngine(cfg *config.Config) (*coherence.Engine, error) {
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	return coherence.NewEngine(engineCfg)
}

// runBench processes a fixed number of synthetic blocks and prints the
// timing statistics. Half the blocks share one tone across channels, half
// carry distinct tones, so both coherence branches get exercised.
func runBench(cfg *config.Config, blocks int) error {
	if blocks <= 0 {
		return fmt.Errorf("block count must be positive, got %d", blocks)
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	channels := cfg.Engine.Channels
	size := cfg.Engine.BlockSize
	rate := cfg.Source.SampleRate
	shared := sig.SharedToneBlock(channels, size, rate, 440.0)
	distinct := sig.DistinctToneBlock(channels, size, rate, 220.0, 110.0)

	applog.Infof("Bench: processing %d blocks (%d channels x %d samples)", blocks, channels, size)

	start := time.Now()
	for i := 0; i < blocks; i++ {
		block := shared
		if i%2 == 1 {
			block = distinct
		}
		engine.ProcessBlock(block)
	}
	elapsed := time.Since(start)

	stats := engine.Stats()
	blockDuration := float64(size) / rate * 1000.0

	fmt.Printf("Blocks processed:  %d in %s\n", stats.TotalBlocks, elapsed.Round(time.Millisecond))
	fmt.Printf("Smoothed ICI:      %.4f\n", stats.Smoothed)
	fmt.Printf("Avg block time:    %.4f ms\n", stats.AvgMs)
	fmt.Printf("Max block time:    %.4f ms\n", stats.MaxMs)
	fmt.Printf("p95 block time:    %.4f ms\n", stats.P95Ms)
	fmt.Printf("p99 block time:    %.4f ms\n", stats.P99Ms)
	fmt.Printf("Real-time budget:  %.4f ms per block at %.0f Hz\n", blockDuration, rate)
	if stats.AvgMs > blockDuration {
		applog.Warnf("Bench: average block time exceeds the real-time budget")
	}
	return nil
}

// runAnalyze decodes a multi-channel WAV file, feeds it to the engine in
// fixed-size blocks and prints the final snapshot as JSON. The channel
// count comes from the file and must be at least 2; a trailing partial
// block is discarded.
func runAnalyze(cfg *config.Config, path string) error {
	buffer, err := decodeWAV(path)
	if err != nil {
		return err
	}
	if buffer.Format.NumChannels < 2 {
		return fmt.Errorf("%s has %d channel(s); coherence needs at least 2", path, buffer.Format.NumChannels)
	}

	cfg.Engine.Channels = buffer.Format.NumChannels
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	channels := buffer.Format.NumChannels
	size := cfg.Engine.BlockSize
	frames := len(buffer.Data) / channels
	fullBlocks := frames / size
	if fullBlocks == 0 {
		return fmt.Errorf("%s holds %d frames; a block needs %d", path, frames, size)
	}

	// WAV frames are interleaved; scale to [-1, 1] by the source bit depth.
	scale := 1.0 / float32(math.Pow(2, float64(buffer.SourceBitDepth-1)))
	block := make([][]float32, channels)
	for ch := range block {
		block[ch] = make([]float32, size)
	}

	applog.Infof("Analyze: %s (%d channels, %d Hz, %d blocks of %d samples)",
		path, channels, buffer.Format.SampleRate, fullBlocks, size)

	for b := 0; b < fullBlocks; b++ {
		base := b * size * channels
		for i := 0; i < size; i++ {
			for ch := 0; ch < channels; ch++ {
				block[ch][i] = float32(buffer.Data[base+i*channels+ch]) * scale
			}
		}
		engine.ProcessBlock(block)
	}

	out, err := json.MarshalIndent(engine.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// decodeWAV reads the whole file into an interleaved PCM buffer.
func decodeWAV(path string) (*goaudio.IntBuffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if buffer.SourceBitDepth == 0 {
		buffer.SourceBitDepth = int(decoder.BitDepth)
	}
	return buffer, nil
}

// runStream drives the engine from a paced synthetic source and publishes
// snapshots through the configured transports until SIGINT or SIGTERM.
func runStream(cfg *config.Config) error {
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	var transports []telemetry.Transport
	if cfg.Telemetry.WSEnabled {
		transports = append(transports, telemetry.NewWebSocketTransport(cfg.Telemetry.WSAddress))
	}
	if cfg.Telemetry.UDPEnabled {
		sender, err := udp.NewSender(cfg.Telemetry.UDPTarget)
		if err != nil {
			return err
		}
		snapshotTransport, err := udp.NewSnapshotTransport(sender)
		if err != nil {
			return err
		}
		transports = append(transports, snapshotTransport)
	}
	if len(transports) == 0 {
		applog.Warnf("Stream: no transports enabled; snapshots go nowhere (try --ws or --udp)")
	}

	publisher := telemetry.NewPublisher(cfg.Telemetry.SendInterval, transports...)
	publisher.Start()
	defer publisher.Stop()

	// ==================== RUN PHASE (Hot Path) ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	channels := cfg.Engine.Channels
	size := cfg.Engine.BlockSize
	rate := cfg.Source.SampleRate
	blockInterval := time.Duration(float64(size) / rate * float64(time.Second))
	ticker := time.NewTicker(blockInterval)
	defer ticker.Stop()

	applog.Infof("Stream: %d channels x %d samples every %s; Ctrl+C to stop",
		channels, size, blockInterval.Round(time.Microsecond))

	// The source drifts between a shared tone and detuned tones so the
	// published ICI sweeps its range instead of pinning at one value.
	phase := 0.0
	block := make([][]float32, channels)
	for {
		select {
		case <-ticker.C:
			spread := 60.0 * (1.0 + math.Sin(phase))
			for ch := 0; ch < channels; ch++ {
				block[ch] = sig.Sine(size, rate, 330.0+float64(ch)*spread, 0)
			}
			phase += 0.05
			engine.ProcessBlock(block)
			publisher.Submit(engine.Snapshot())
		case <-done:
			// ================ SHUTDOWN PHASE (Cold Path) ================
			applog.Infof("Stream: shutting down after %d blocks", engine.Stats().TotalBlocks)
			return nil
		}
	}
}
