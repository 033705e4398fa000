package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pb33f/mirrorlog/sink"
)

// buildSinks opens every configured sink. If one fails the ones already open are closed.
func buildSinks(ctx context.Context, cfg *Config, logger *slog.Logger) (sink.Multi, error) {
	var sinks sink.Multi
	fail := func(err error) (sink.Multi, error) {
		_ = sinks.Close()
		return nil, err
	}

	for _, name := range cfg.Sinks {
		switch name {
		case sinkLog:
			if cfg.LogDirectory == "" {
				sinks = append(sinks, sink.NewLogSink(os.Stdout))
				continue
			}
			s, err := sink.NewFileLogSink(cfg.LogDirectory, cfg.rotateOptions())
			if err != nil {
				return fail(err)
			}
			logger.Info("writing entries", "file", filepath.Join(cfg.LogDirectory, sink.LogFileName))
			sinks = append(sinks, s)
		case sinkConsole:
			console := sink.NewConsoleSink(os.Stdout, os.Getenv("NO_COLOR") != "")
			console.Detail = cfg.ConsoleDetail
			sinks = append(sinks, console)
		case sinkAMQP:
			s, err := sink.DialAMQP(sink.AMQPConfig{URL: cfg.AMQP.URL, Exchange: cfg.AMQP.Exchange})
			if err != nil {
				return fail(fmt.Errorf("amqp sink: %w", err))
			}
			logger.Info("publishing entries", "exchange", cfg.AMQP.Exchange)
			sinks = append(sinks, s)
		case sinkRedis:
			s, err := sink.DialRedis(ctx, sink.RedisConfig{
				Addr:   cfg.Redis.Addr,
				Stream: cfg.Redis.Stream,
				MaxLen: cfg.Redis.MaxLen,
			})
			if err != nil {
				return fail(fmt.Errorf("redis sink: %w", err))
			}
			logger.Info("streaming entries", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
			sinks = append(sinks, s)
		}
	}
	return sinks, nil
}

// rotationSchedule returns when the next daily rotation is due, or nil when
// files only rotate on size and SIGHUP.
func rotationSchedule(cfg *Config, loc *time.Location) func(time.Time) time.Time {
	if !cfg.Rotate.Daily || cfg.LogDirectory == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	return func(now time.Time) time.Time { return nextMidnight(now, loc) }
}

// nextMidnight is the start of the day after now, in loc.
func nextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

// watchRotation reopens file-backed log sinks on SIGHUP, and at each time
// returned by next when it is set, until ctx is done.
func watchRotation(ctx context.Context, sinks sink.Multi, logger *slog.Logger, next func(time.Time) time.Time) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var due <-chan time.Time
	arm := func() {
		if next == nil {
			return
		}
		timer := time.NewTimer(time.Until(next(time.Now())))
		due = timer.C
	}
	arm()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			rotateLogs(sinks, logger, "signal")
		case <-due:
			rotateLogs(sinks, logger, "daily")
			arm()
		}
	}
}

func rotateLogs(sinks sink.Multi, logger *slog.Logger, reason string) int {
	rotated := 0
	for _, s := range sinks {
		ls, ok := s.(*sink.LogSink)
		if !ok {
			continue
		}
		if err := ls.Rotate(); err != nil {
			logger.Warn("log rotation failed", "reason", reason, "error", err)
			continue
		}
		rotated++
	}
	if rotated > 0 {
		logger.Info("log file rotated", "reason", reason)
	}
	return rotated
}
