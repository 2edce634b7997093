// cmd/thermogate/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tamzrod/thermogate/internal/app"
	"github.com/tamzrod/thermogate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "thermogate",
	Short: "Thermally gated resource pool controller",
	Long: `thermogate admits demand pulses into a fixed pool of resource slots,
reports every fault on the text output with a blink pattern, and suspends
the whole pool while the measured temperature leaves its safe band.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [config.yaml]",
	Short: "Run the controller (built-in defaults when no config is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runController,
}

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Load and validate a config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

// exitInvalidConfig is returned for configuration errors.
const exitInvalidConfig = 2

func init() {
	rootCmd.AddCommand(runCmd, validateCmd, decodeCmd, errorsCmd, journalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, config.ErrInvalid) {
			os.Exit(exitInvalidConfig)
		}
		os.Exit(1)
	}
}

// loadConfig loads, validates and normalizes. An empty path yields defaults.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		d := config.Default()
		cfg = &d
	} else {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func runController(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, err := app.Build(ctx, cfg, app.Options{Stdout: os.Stdout, Stdin: os.Stdin})
	if err != nil {
		return fmt.Errorf("controller build failed: %w", err)
	}

	if err := sys.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	log.Printf("thermogate: config ok (device=%s slots=%d band=(%g, %g) sensor=%s)",
		cfg.Controller.DeviceName, cfg.Pool.Slots, cfg.Supervisor.MinTemp, cfg.Supervisor.MaxTemp, cfg.Sensor.Kind)
	return nil
}
