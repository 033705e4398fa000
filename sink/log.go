package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// Message is written with every entry.
	Message = "A mirrored HTTP request was handled."

	// LogFileName is the file created inside the log directory.
	LogFileName = "http_mirror_server.log"
)

var zerologFieldsOnce sync.Once

// ecsFieldNames switches zerolog's base fields to their ECS names.
func ecsFieldNames() {
	zerologFieldsOnce.Do(func() {
		zerolog.TimestampFieldName = "@timestamp"
		zerolog.LevelFieldName = "log.level"
		zerolog.MessageFieldName = "message"
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})
}

// LogSink writes each entry as one JSON line.
type LogSink struct {
	mu     sync.Mutex
	logger zerolog.Logger
	out    *trackingWriter
	closer io.Closer
}

// RotateOptions configures the rotating log file. Zero values keep lumberjack's defaults.
type RotateOptions struct {
	// MaxSizeMB is the size at which the file is rotated
	MaxSizeMB int

	// MaxAgeDays removes rotated files older than this
	MaxAgeDays int

	// MaxBackups is the number of rotated files kept
	MaxBackups int

	Compress bool
}

// NewLogSink writes JSON lines to w.
func NewLogSink(w io.Writer) *LogSink {
	ecsFieldNames()
	out := &trackingWriter{w: w}
	return &LogSink{
		logger: zerolog.New(out).With().Timestamp().Logger(),
		out:    out,
	}
}

// NewFileLogSink writes to LogFileName inside dir, rotating it with lumberjack.
// dir must already exist.
func NewFileLogSink(dir string, opts RotateOptions) (*LogSink, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log directory %s is not a directory", dir)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, LogFileName),
		MaxSize:    opts.MaxSizeMB,
		MaxAge:     opts.MaxAgeDays,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
		LocalTime:  true,
	}
	s := NewLogSink(rotator)
	s.closer = rotator
	return s, nil
}

// Emit logs the entry's document fields next to the ECS base fields.
func (s *LogSink) Emit(_ context.Context, entry *model.Entry) error {
	fields, _ := entry.Document().Data().(map[string]interface{})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.err = nil
	s.logger.Info().Fields(fields).Msg(Message)
	return s.out.err
}

// Rotate starts a new log file. It is a no-op for sinks not backed by a file.
func (s *LogSink) Rotate() error {
	rotator, ok := s.closer.(*lumberjack.Logger)
	if !ok {
		return nil
	}
	return rotator.Rotate()
}

func (s *LogSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// trackingWriter remembers the last write error so Emit can return it;
// zerolog itself only reports write errors to its global handler.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		t.err = errors.Join(t.err, err)
	}
	return n, err
}
