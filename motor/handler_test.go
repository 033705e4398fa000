package motor

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveLines runs a handler over a pipe, writes lines from the client side and closes it.
func serveLines(t *testing.T, h *Handler, lines ...string) Result {
	t.Helper()
	server, client := net.Pipe()

	go func() {
		for _, line := range lines {
			if _, err := client.Write([]byte(line)); err != nil {
				return
			}
		}
		client.Close()
	}()

	done := make(chan Result, 1)
	go func() { done <- h.Serve(context.Background(), server) }()

	select {
	case res := <-done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish")
		return Result{}
	}
}

func TestHandler_MalformedLineDoesNotStopConnection(t *testing.T) {
	sink := &memorySink{}
	logger, logs := testLogger()
	h := NewHandler(HandlerConfig{
		Normalizer: NewNormalizer(time.UTC),
		Sink:       sink,
		Logger:     logger,
	})

	res := serveLines(t, h,
		`{"remote_addr": "10.0.0.1", "remote_port": `+"\n",
		string(scenarioLine(t, nil))+"\n",
	)

	assert.Equal(t, StateClosed, res.Final)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Emitted)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.ID)

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "10.0.0.1", entries[0].Source.IP)

	assert.Equal(t, 1, strings.Count(logs.String(), "record failed"))
	assert.Contains(t, logs.String(), "decode_error")
}

func TestHandler_PreservesOrder(t *testing.T) {
	sink := &memorySink{}
	h := NewHandler(HandlerConfig{Sink: sink})

	var lines []string
	for _, port := range []string{"1", "2", "3", "4"} {
		line := strings.Replace(string(scenarioLine(t, nil)), `"5555"`, `"`+port+`"`, 1)
		lines = append(lines, line+"\n")
	}

	res := serveLines(t, h, lines...)
	assert.Equal(t, 4, res.Emitted)

	entries := sink.Entries()
	require.Len(t, entries, 4)
	for i, entry := range entries {
		assert.Equal(t, i+1, entry.Source.Port)
	}
}

func TestHandler_EmptyConnectionClosesCleanly(t *testing.T) {
	h := NewHandler(HandlerConfig{Sink: &memorySink{}})
	res := serveLines(t, h)

	assert.Equal(t, StateClosed, res.Final)
	assert.Zero(t, res.Records)
}

func TestHandler_StateTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []State
	h := NewHandler(HandlerConfig{
		Sink: &memorySink{},
		OnState: func(_ string, s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	serveLines(t, h, "{not json\n", string(scenarioLine(t, nil))+"\n")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		StateAwaitingRecord, StateDecoding,
		StateAwaitingRecord, StateDecoding, StateNormalizing, StateEmitted,
		StateAwaitingRecord, StateClosed,
	}, states)
}

func TestHandler_SinkFailuresAreRecordLevel(t *testing.T) {
	sink := &memorySink{
		failOn:  map[int]error{0: errSinkDown},
		panicOn: map[int]bool{1: true},
	}
	h := NewHandler(HandlerConfig{Sink: sink, Metrics: NewMetrics()})

	line := string(scenarioLine(t, nil)) + "\n"
	res := serveLines(t, h, line, line, line)

	assert.Equal(t, StateClosed, res.Final)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Emitted)
	assert.Len(t, sink.Entries(), 1)
}

func TestHandler_DirectCapture(t *testing.T) {
	sink := &memorySink{}
	h := NewHandler(HandlerConfig{Sink: sink, Normalizer: NewNormalizer(time.UTC)})

	res := serveLines(t, h, "POST /upload HTTP/1.1\r\n", "Host: example.com\r\nContent-Length: 4\r\n\r\n", "data")

	assert.Equal(t, StateClosed, res.Final)
	assert.Equal(t, 1, res.Emitted)

	entries := sink.Entries()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "POST", entry.HTTP.Request.Method)
	assert.Equal(t, "data", entry.HTTP.Request.Body.Content)
	assert.Equal(t, "ingress", entry.Network.Direction)
	assert.Nil(t, entry.HTTP.Response)
	assert.Nil(t, entry.Event.Duration)
	assert.False(t, entry.Event.Start.IsZero())
}

func TestHandler_TruncatedDirectCaptureFails(t *testing.T) {
	h := NewHandler(HandlerConfig{Sink: &memorySink{}})
	res := serveLines(t, h, "GET / HTTP/1.1\r\nHost: exam")

	assert.Equal(t, StateFailed, res.Final)
	assert.ErrorIs(t, res.Err, ErrTruncatedHeader)
}

func TestHandler_CancelUnblocksRead(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	h := NewHandler(HandlerConfig{Sink: &memorySink{}, Framing: FramerOptions{Mode: ModeMirror}})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Result, 1)
	go func() { done <- h.Serve(ctx, server) }()

	cancel()
	select {
	case res := <-done:
		assert.Equal(t, StateClosed, res.Final)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not unblock the handler")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_record", StateAwaitingRecord.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
