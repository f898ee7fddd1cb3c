package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/tracecast/internal/dedup"
	"github.com/crimson-sun/tracecast/internal/logging"
	"github.com/crimson-sun/tracecast/internal/render"
)

// NewRenderCommand creates the render command: one-shot rendering of an
// existing transfer-format trace file, without the ingestion pipeline.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <trace.json>",
		Short: "Render a trace file directly",
		Long: `Render a previously captured trace file (transfer format) through the
external renderer and print the artifact path.

Example:
  tracecast render ~/.tracecast/traces/cycle_abc123.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runRender(ctx, rootOpts, args[0])
		},
	}
	return cmd
}

func runRender(ctx context.Context, rootOpts *RootOptions, tracePath string) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	level := logging.ParseLevel(cfg.LogLevel)
	if rootOpts.Verbose {
		level = logging.ParseLevel("debug")
	}
	logging.Init(true, level) // artifact path goes to stdout

	transfer, err := render.ReadTransfer(tracePath)
	if err != nil {
		return err
	}
	cycle := transfer.Cycle()
	if cycle.CorrelationID == "" {
		return fmt.Errorf("render: trace file %s has no correlation_id", tracePath)
	}

	runner := render.NewRunner(
		&render.ProbeResolver{
			Candidates: cfg.Render.Runtimes,
			Timeout:    cfg.Render.ProbeTimeout.Std(),
		},
		cfg.Render.WorkDir,
		render.WithTimeout(cfg.Render.Timeout.Std()),
		render.WithScript(cfg.Render.Script),
	)

	artifact, err := runner.Render(ctx, render.Request{
		Cycle:    cycle,
		PathHash: dedup.Fingerprint(cycle.Events),
	})
	if err != nil {
		return err
	}
	fmt.Println(artifact.Path)
	return nil
}
