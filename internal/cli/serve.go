package cli

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/tracecast/internal/config"
	"github.com/crimson-sun/tracecast/internal/dedup"
	"github.com/crimson-sun/tracecast/internal/filter"
	"github.com/crimson-sun/tracecast/internal/logging"
	"github.com/crimson-sun/tracecast/internal/notify"
	"github.com/crimson-sun/tracecast/internal/notify/async"
	"github.com/crimson-sun/tracecast/internal/notify/file"
	"github.com/crimson-sun/tracecast/internal/notify/multi"
	"github.com/crimson-sun/tracecast/internal/notify/stdout"
	"github.com/crimson-sun/tracecast/internal/notify/webhook"
	"github.com/crimson-sun/tracecast/internal/pipeline"
	"github.com/crimson-sun/tracecast/internal/render"
	"github.com/crimson-sun/tracecast/internal/transport"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen  bool
	Connect bool
}

// NewServeCommand creates the serve command: the long-running ingestion
// and rendering daemon.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trace ingestion and render pipeline",
		Long: `Run the pipeline daemon. By default it listens for inbound producer
connections; with --connect it also dials the instrumented process and
streams its events.

Example:
  tracecast serve
  tracecast serve --connect --config tracecast.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Listen, "listen", true, "accept inbound producer connections")
	cmd.Flags().BoolVar(&opts.Connect, "connect", false, "dial the remote event source")

	return cmd
}

func runServe(opts *ServeOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if !opts.Listen && !opts.Connect {
		return fmt.Errorf("serve: at least one of --listen or --connect is required")
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Verbose {
		level = logging.ParseLevel("debug")
	}
	usesStdout := slices.Contains(cfg.Notify.Sinks, "stdout")
	logging.Init(usesStdout, level)
	log := logging.Component("serve")

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return err
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

	pipe := pipeline.New(
		filter.New(cfg.Filter.ExcludePaths, cfg.Filter.ExcludeModules),
		dedup.NewCache(),
		runner,
		notifier,
		pipeline.WithSweepInterval(cfg.Pipeline.SweepInterval.Std()),
		pipeline.WithIdleTimeout(cfg.Pipeline.IdleTimeout.Std()),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithDrainGrace(cfg.Pipeline.DrainGrace.Std()),
	)

	var server *transport.Server
	if opts.Listen {
		server = transport.NewServer(cfg.Transport.Host, cfg.Transport.ServerPort,
			pipe.HandleEvent,
			transport.WithAcceptTimeout(cfg.Transport.AcceptTimeout.Std()))
		if err := server.Start(); err != nil {
			pipe.Close()
			notifier.Close()
			return err
		}
	}

	var client *transport.Client
	if opts.Connect {
		client = transport.NewClient(cfg.Transport.Host, cfg.Transport.ClientPort,
			pipe.HandleEvent,
			transport.WithDialTimeout(cfg.Transport.DialTimeout.Std()),
			transport.WithReadTimeout(cfg.Transport.ReadTimeout.Std()),
			transport.WithOnDisconnected(func(reason string) {
				if reason != "" {
					log.Warn("event source connection lost", "reason", reason)
				}
			}))
		if err := client.Connect(); err != nil {
			// The daemon stays useful as a listener; the source may come up later.
			log.Warn("could not reach event source", "error", err)
			if !opts.Listen {
				pipe.Close()
				notifier.Close()
				return err
			}
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal, shutting down", "signal", sig)

	if client != nil {
		client.Stop()
	}
	if server != nil {
		server.Stop()
	}
	pipe.Close()
	return notifier.Close()
}

// buildNotifier assembles the configured artifact sinks behind an async
// fan-out, so a slow sink never stalls a render worker.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	var sinks []notify.Notifier
	for _, name := range cfg.Sinks {
		switch name {
		case "stdout":
			sinks = append(sinks, stdout.New(false))
		case "file":
			if cfg.FilePath == "" {
				return nil, fmt.Errorf("notify: file sink requires TRACECAST_NOTIFY_FILE or notify.file_path")
			}
			sink, err := file.New(cfg.FilePath)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		case "webhook":
			if cfg.WebhookURL == "" {
				return nil, fmt.Errorf("notify: webhook sink requires TRACECAST_WEBHOOK_URL or notify.webhook_url")
			}
			sinks = append(sinks, webhook.New(cfg.WebhookURL))
		default:
			return nil, fmt.Errorf("notify: unknown sink %q", name)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, stdout.New(false))
	}
	return async.New(multi.New(sinks...)), nil
}
