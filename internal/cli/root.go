package cli

import (
	"github.com/spf13/cobra"

	"github.com/crimson-sun/tracecast/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	ConfigFile string
}

// NewRootCommand creates the root command for the tracecast CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tracecast",
		Short: "tracecast - execution trace ingestion and cycle rendering",
		Long: `tracecast ingests streamed execution-trace events, groups them into
cycles by correlation ID, deduplicates repeated execution paths, and hands
completed cycles to an external renderer.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose (debug) logging")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration: environment variables,
// overlaid by the YAML file when one was given.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.ConfigFile != "" {
		return config.LoadFile(opts.ConfigFile)
	}
	return config.Load(), nil
}
