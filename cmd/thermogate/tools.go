// cmd/thermogate/tools.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tamzrod/thermogate/internal/config"
	"github.com/tamzrod/thermogate/internal/fault"
	"github.com/tamzrod/thermogate/internal/supervisor"
	"github.com/tamzrod/thermogate/internal/telemetry"
)

// ---- decode ----

var decodeCmd = &cobra.Command{
	Use:   "decode <raw>...",
	Short: "Decode raw converter readings the way the supervisor does",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDecode,
}

var (
	decodeConfig     string
	decodeFullScale  float64
	decodeResolution uint32
)

// ---- errors ----

var errorsCmd = &cobra.Command{
	Use:   "errors [pattern]",
	Short: "List event kinds, or resolve a register pattern to its message",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runErrors,
}

// ---- journal ----

var journalCmd = &cobra.Command{
	Use:   "journal <journal.db>",
	Short: "Show the most recent journal entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournal,
}

var journalLimit int

func init() {
	d := config.Default().Supervisor
	decodeCmd.Flags().StringVar(&decodeConfig, "config", "", "Take thresholds and converter geometry from a config file")
	decodeCmd.Flags().Float64Var(&decodeFullScale, "full-scale", d.FullScaleVoltage, "Converter full-scale voltage")
	decodeCmd.Flags().Uint32Var(&decodeResolution, "resolution", d.ResolutionCounts, "Converter resolution in counts")

	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Number of entries to show")
}

func runDecode(cmd *cobra.Command, args []string) error {
	sv := config.Default().Supervisor
	if decodeConfig != "" {
		cfg, err := loadConfig(decodeConfig)
		if err != nil {
			return err
		}
		sv = cfg.Supervisor
	}
	if cmd.Flags().Changed("full-scale") || decodeConfig == "" {
		sv.FullScaleVoltage = decodeFullScale
	}
	if cmd.Flags().Changed("resolution") || decodeConfig == "" {
		sv.ResolutionCounts = decodeResolution
	}
	if sv.ResolutionCounts == 0 {
		return fmt.Errorf("resolution must be > 0")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RAW\tLINE\tBAND")
	for _, a := range args {
		raw, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return fmt.Errorf("raw %q: %w", a, err)
		}
		t := supervisor.Decode(uint32(raw), sv.FullScaleVoltage, sv.ResolutionCounts)

		band := "ok"
		switch {
		case t > sv.MaxTemp:
			band = fault.TempTooHigh.Name()
		case t < sv.MinTemp:
			band = fault.TempTooLow.Name()
		}
		line := strings.TrimRight(supervisor.FormatReading(t), "\r\n")
		fmt.Fprintf(w, "%d\t%s\t%s\n", raw, line, band)
	}
	return w.Flush()
}

func runErrors(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		p, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", args[0], err)
		}
		k := fault.Kind(p)
		fmt.Printf("%s: %s\n", k, fault.Message(k))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BIT\tNAME\tMESSAGE")
	for _, k := range fault.Kinds() {
		fmt.Fprintf(w, "0x%04x\t%s\t%s\n", uint16(k), k.Name(), fault.Message(k))
	}
	return w.Flush()
}

func runJournal(cmd *cobra.Command, args []string) error {
	j, err := telemetry.OpenJournal(args[0])
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("journal query failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tRUN\tTYPE\tEVENT\tMESSAGE")
	for _, e := range entries {
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.At.Local().Format("2006-01-02 15:04:05.000"), run, e.Type, fault.Kind(e.Event), e.Message)
	}
	return w.Flush()
}
