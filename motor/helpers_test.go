package motor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/pb33f/mirrorlog/motor/model"
	"github.com/pb33f/mirrorlog/suffix"
	"github.com/stretchr/testify/require"
)

const scenarioRequest = "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// scenarioLine is the end-to-end example record, with extra fields merged into "response".
func scenarioLine(t *testing.T, response map[string]any) []byte {
	t.Helper()
	resp := map[string]any{
		"headers":     map[string]any{"Content-Type": "text/plain"},
		"body_base64": b64("hi"),
		"status":      200,
	}
	for k, v := range response {
		resp[k] = v
	}
	line, err := json.Marshal(map[string]any{
		"remote_addr": "10.0.0.1",
		"remote_port": "5555",
		"request": map[string]any{
			"raw_base64": b64(scenarioRequest),
			"time":       1700000000.0,
		},
		"response": resp,
	})
	require.NoError(t, err)
	return line
}

func mustParse(t *testing.T, line []byte) Record {
	t.Helper()
	rec, err := ParseMirrorLine(line)
	require.NoError(t, err)
	return rec
}

type memorySink struct {
	mu      sync.Mutex
	entries []*model.Entry
	failOn  map[int]error
	panicOn map[int]bool
	calls   int
	closed  bool
}

func (s *memorySink) Emit(_ context.Context, entry *model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.calls
	s.calls++
	if s.panicOn[call] {
		panic("sink exploded")
	}
	if err := s.failOn[call]; err != nil {
		return err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) Entries() []*model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

var errSinkDown = errors.New("sink down")

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type staticSuffixes map[string]suffix.Annotation

func (s staticSuffixes) Lookup(host string) (suffix.Annotation, bool) {
	a, ok := s[host]
	return a, ok
}
