package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pb33f/mirrorlog/motor"
	"github.com/pb33f/mirrorlog/suffix"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveFlags = DefaultConfig()
	configPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept mirrored traffic and write access log entries",
	Long: `Listen for a mirroring agent on a TCP address or a local socket. Each
connection carries either one raw HTTP request or newline-delimited JSON
mirror records; every record is decoded, normalized and written to the
configured sinks.

Settings are read from --config, then HTTP_MIRROR_SERVER_* environment
variables, then flags.`,
	Args: cobra.NoArgs,
	Example: `  mirrorlog serve
  mirrorlog serve --port 9000 --sink console
  mirrorlog serve --socket-path /run/mirror.sock --log-directory /var/log/mirror
  mirrorlog serve --config mirrorlog.yaml --metrics-addr :9100`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML configuration file")
	f.StringVar(&serveFlags.Host, "host", serveFlags.Host, "Host to listen on")
	f.IntVarP(&serveFlags.Port, "port", "p", serveFlags.Port, "Port to listen on")
	f.StringVar(&serveFlags.SocketPath, "socket-path", "", "Listen on a unix socket instead of TCP")
	f.StringVar(&serveFlags.SocketMode, "socket-mode", serveFlags.SocketMode, "Permissions applied to the unix socket (octal)")
	f.StringVar(&serveFlags.Mode, "mode", serveFlags.Mode, "Framing: direct, mirror or auto")
	f.StringVar(&serveFlags.LogDirectory, "log-directory", "", "Write entries to a rotated file in this directory instead of stdout")
	f.StringVar(&serveFlags.PublicSuffixListPath, "public-suffix-list-path", "", "Public suffix list used to annotate registered domains")
	f.StringSliceVar(&serveFlags.Sinks, "sink", serveFlags.Sinks, "Sinks: log, console, amqp, redis (comma-separated)")
	f.StringVar(&serveFlags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&serveFlags.Timezone, "timezone", "", "Zone used to interpret record timestamps (default: local)")
	f.BoolVar(&serveFlags.Rotate.Daily, "rotate-daily", serveFlags.Rotate.Daily, "Start a new log file at midnight as well as on SIGHUP and size limits")
	f.BoolVar(&serveFlags.ConsoleDetail, "console-detail", false, "Print the full entry document below each console line")
	f.StringVar(&serveFlags.AMQP.URL, "amqp-url", serveFlags.AMQP.URL, "RabbitMQ URL for the amqp sink")
	f.StringVar(&serveFlags.AMQP.Exchange, "amqp-exchange", serveFlags.AMQP.Exchange, "Exchange for the amqp sink")
	f.StringVar(&serveFlags.Redis.Addr, "redis-addr", serveFlags.Redis.Addr, "Redis address for the redis sink")
	f.StringVar(&serveFlags.Redis.Stream, "redis-stream", serveFlags.Redis.Stream, "Stream for the redis sink")
}

// resolveConfig layers defaults, the config file, the environment and set flags.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		if err := LoadConfigFile(&cfg, configPath); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	ApplyFlags(&cfg, cmd.Flags(), &serveFlags)
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := GetLogger()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	loc, _ := cfg.Location()
	mode, _ := motor.ParseMode(cfg.Mode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoderOpts := motor.DecoderOptions{}
	if cfg.PublicSuffixListPath != "" {
		list, err := suffix.Load(cfg.PublicSuffixListPath)
		if err != nil {
			return err
		}
		decoderOpts.Suffixes = list
		logger.Info("public suffix list loaded", "path", list.Path(), "rules", list.Size())
	}

	sinks, err := buildSinks(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("failed to close sinks", "error", err)
		}
	}()

	metrics := motor.NewMetrics()
	handler := motor.NewHandler(motor.HandlerConfig{
		Decoder:    motor.NewDecoder(decoderOpts),
		Normalizer: motor.NewNormalizer(loc),
		Sink:       sinks,
		Framing:    motor.FramerOptions{Mode: mode},
		Metrics:    metrics,
		Logger:     logger,
	})
	server := motor.NewServer(handler, logger)

	listenCfg := cfg.Listener()
	ln, err := motor.Listen(listenCfg)
	if err != nil {
		return err
	}
	logger.Info("listening",
		"network", listenCfg.Network,
		"address", ln.Addr().String(),
		"mode", mode,
		"sinks", cfg.Sinks)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(gctx, ln)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("serving metrics", "address", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		watchRotation(gctx, sinks, logger, rotationSchedule(&cfg, loc))
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
