package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
	"github.com/pb33f/mirrorlog/tui"
)

// ConsoleSink prints one colored summary line per entry, for watching a server by eye.
type ConsoleSink struct {
	mu      sync.Mutex
	w       io.Writer
	noColor bool

	// Detail prints the full entry document below each summary line when set
	Detail bool
}

// NewConsoleSink writes to w. With noColor the same line is printed without styling.
func NewConsoleSink(w io.Writer, noColor bool) *ConsoleSink {
	return &ConsoleSink{w: w, noColor: noColor}
}

func (s *ConsoleSink) Emit(_ context.Context, entry *model.Entry) error {
	line := s.format(entry)
	if s.Detail {
		line += "\n" + s.document(entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *ConsoleSink) Close() error { return nil }

func (s *ConsoleSink) document(entry *model.Entry) string {
	raw := entry.Document().Bytes()
	if s.noColor {
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			return string(raw)
		}
		return out.String()
	}

	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}
	return tui.RenderDocument(data)
}

// format renders "<time> <source> <method> <status> <url> <duration>".
func (s *ConsoleSink) format(entry *model.Entry) string {
	var (
		start    string
		source   = "-"
		method   = "-"
		status   int
		target   = "-"
		duration *time.Duration
	)

	if entry.Event != nil {
		start = entry.Event.Start.Format("15:04:05.000")
		duration = entry.Event.Duration
	}
	if entry.Source != nil {
		source = entry.Source.Address
		if entry.Source.Port != 0 {
			source = fmt.Sprintf("%s:%d", source, entry.Source.Port)
		}
	}
	if entry.HTTP != nil {
		if entry.HTTP.Request != nil {
			method = entry.HTTP.Request.Method
		}
		if entry.HTTP.Response != nil {
			status = entry.HTTP.Response.StatusCode
		}
	}
	if entry.URL != nil {
		switch {
		case entry.URL.Full != "":
			target = entry.URL.Full
		case entry.URL.Original != "":
			target = entry.URL.Original
		}
	}

	if s.noColor {
		statusText := "-"
		if status != 0 {
			statusText = fmt.Sprint(status)
		}
		durationText := "-"
		if duration != nil {
			durationText = duration.String()
		}
		return strings.Join([]string{start, source, method, statusText, target, durationText}, " ")
	}

	return strings.Join([]string{
		tui.SubtitleStyle.Render(start),
		tui.StyleAddress.Render(source),
		tui.Method(method),
		tui.Status(status),
		target,
		tui.Duration(duration),
	}, " ")
}
