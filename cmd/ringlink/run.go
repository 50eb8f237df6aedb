package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/ringlink/internal/config"
	"github.com/srg/ringlink/internal/link"
	"github.com/srg/ringlink/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [device-address]",
	Short: "Run the gesture pipeline",
	Long: `Connects to the configured ring and runs the gesture pipeline until
interrupted.

Button notifications from the ring are grouped into gestures (single,
double, and triple clicks by the debounce window, long presses by the
hold threshold) and each gesture is routed to its configured action.

The device address comes from the config file; a positional address
argument overrides it.

Example:
  ringlink run --config ring.yaml
  ringlink run AA:BB:CC:DD:EE:FF`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Device.Address = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	executors, err := buildExecutors(cfg, providers, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, exec := range executors {
			if closer, ok := exec.(io.Closer); ok {
				_ = closer.Close()
			}
		}
	}()

	mapping, err := cfg.Mapping()
	if err != nil {
		return err
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, shutting down...")
		cancel()
	}()

	diagCapture := 0
	if cfg.Diag.Enabled {
		diagCapture = cfg.Diag.CaptureBytes
	}

	opts := &pipeline.Options{
		Address:        cfg.Device.Address,
		ConnectTimeout: cfg.Device.ConnectTimeout,
		Profile:        &cfg.Device.Profile,
		Pulse:          cfg.PulseConfig(),
		FrameBuffer:    cfg.Pulse.FrameBuffer,
		BusCapacity:    cfg.Bus.SubscriberCapacity,
		Router:         cfg.RouterConfig(),
		JournalSize:    cfg.Router.JournalSize,
		Mapping:        mapping,
		Executors:      executors,
		DiagCapture:    diagCapture,
		Logger:         logger,
	}

	progress := NewProgressPrinter(fmt.Sprintf("Starting pipeline for %s", cfg.Device.Address), "Connecting", "Running")
	progress.Start()
	defer progress.Stop()

	_, err = pipeline.Run(
		ctx,
		link.NewBLELink(logger),
		opts,
		progress.Callback(),
		func(p pipeline.Pipeline) (any, error) {
			fmt.Printf("Connected to %s; press the ring button. Ctrl+C to stop.\n", cfg.Device.Address)

			var runErr error
			select {
			case <-ctx.Done():
				logger.Info("Pipeline shutting down...")
			case <-p.Done():
				runErr = ErrConnectionLost
			}

			printRunSummary(p)
			return nil, runErr
		},
	)
	return err
}

// printRunSummary reports what the pipeline did before it stopped.
func printRunSummary(p pipeline.Pipeline) {
	m := p.Journal().Metrics()
	fmt.Printf("\nActions: %d executed, %d failed, %d timed out\n",
		m.Recorded(), m.Failures(), m.Timeouts())

	if dropped := p.FramesDropped(); dropped > 0 {
		fmt.Printf("Dropped %d raw frames under load\n", dropped)
	}

	if capture := p.Capture(); capture != nil {
		if lines := capture.Dump(); len(lines) > 0 {
			fmt.Printf("Last %d raw notifications:\n", len(lines))
			for _, line := range lines {
				fmt.Printf("  %s\n", line)
			}
		}
	}
}
