package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check configured executors and LLM providers",
	Long: `Checks that every configured action executor and enabled LLM provider
can reach its backing service, without connecting to the ring.

Useful before a run to confirm that the Ollama daemon is up, the MQTT
broker accepts connections, and the mirror endpoint answers.`,
	RunE: runHealth,
}

var healthTimeout time.Duration

func init() {
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "Per-check timeout")
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, "")
	if err != nil {
		return err
	}

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

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("KIND\tNAME\tSTATUS"))

	failed := 0

	for _, p := range providers.Providers() {
		failed += check(w, "provider", fmt.Sprintf("%s (%s)", p.ID(), p.DisplayName()), func(ctx context.Context) error {
			return p.Health(ctx)
		})
	}

	// One row per action; the same backing service may be checked twice
	// when two actions share an executor variant, which is harmless.
	actionIDs := make([]string, 0, len(executors))
	for id := range executors {
		actionIDs = append(actionIDs, id)
	}
	sort.Strings(actionIDs)
	for _, id := range actionIDs {
		exec := executors[id]
		failed += check(w, "action", fmt.Sprintf("%s (%s)", id, exec.ID()), exec.Health)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d health check(s) failed", failed)
	}
	return nil
}

// check runs one health probe and prints its table row. Returns 1 on
// failure so callers can tally.
func check(w io.Writer, kind, name string, probe func(context.Context) error) int {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	if err := probe(ctx); err != nil {
		fmt.Fprintf(w, "%s\t%s\t%s\n", kind, name, color.RedString("FAIL: %v", err))
		return 1
	}
	fmt.Fprintf(w, "%s\t%s\t%s\n", kind, name, color.GreenString("OK"))
	return 0
}
