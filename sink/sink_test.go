package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *model.Entry {
	event := &model.Event{
		Kind:    "event",
		Dataset: "http_mirror_server",
		Start:   time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC),
	}
	event.SetDuration(125 * time.Millisecond)

	return &model.Entry{
		Source: &model.Endpoint{Address: "10.0.0.1", IP: "10.0.0.1", Port: 5555},
		Event:  event,
		URL:    &model.URL{Full: "http://example.com/", Path: "/", Domain: "example.com"},
		HTTP: &model.HTTP{
			Version: "1.1",
			Request: &model.HTTPRequest{Method: "GET"},
			Response: &model.HTTPResponse{
				StatusCode: 404,
				Headers: []model.Header{
					{Name: "Set-Cookie", Value: "a=1"},
					{Name: "Set-Cookie", Value: "b=2"},
				},
			},
		},
	}
}

func TestLogSink_WritesECSLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(&buf)
	require.NoError(t, s.Emit(context.Background(), sampleEntry()))
	require.NoError(t, s.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &doc))

	assert.Equal(t, Message, doc["message"])
	assert.Equal(t, "info", doc["log.level"])
	assert.Contains(t, doc, "@timestamp")

	source := doc["source"].(map[string]any)
	assert.Equal(t, "10.0.0.1", source["ip"])
	assert.Equal(t, float64(5555), source["port"])

	event := doc["event"].(map[string]any)
	assert.Equal(t, 0.125, event["duration"])
	assert.Equal(t, "2023-11-14T22:13:20Z", event["start"])

	response := doc["http"].(map[string]any)["response"].(map[string]any)
	headers := response["headers"].([]any)
	require.Len(t, headers, 2)
	assert.Equal(t, "b=2", headers[1].(map[string]any)["value"])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogSink_ReportsWriteErrors(t *testing.T) {
	s := NewLogSink(failingWriter{})
	err := s.Emit(context.Background(), sampleEntry())
	assert.ErrorContains(t, err, "disk full")
}

func TestFileLogSink(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileLogSink(dir, RotateOptions{MaxSizeMB: 1})
	require.NoError(t, err)

	require.NoError(t, s.Emit(context.Background(), sampleEntry()))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), Message)

	_, err = NewFileLogSink(filepath.Join(dir, "missing"), RotateOptions{})
	assert.Error(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = NewFileLogSink(file, RotateOptions{})
	assert.ErrorContains(t, err, "not a directory")

	assert.NoError(t, NewLogSink(&bytes.Buffer{}).Rotate())
}

func TestConsoleSink_PlainLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf, true)
	require.NoError(t, s.Emit(context.Background(), sampleEntry()))
	require.NoError(t, s.Emit(context.Background(), &model.Entry{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "22:13:20.000 10.0.0.1:5555 GET 404 http://example.com/ 125ms", lines[0])
	assert.Equal(t, " - - - - -", lines[1])
}

func TestConsoleSink_ColoredLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf, false)
	require.NoError(t, s.Emit(context.Background(), sampleEntry()))

	assert.Contains(t, buf.String(), "http://example.com/")
	assert.Contains(t, buf.String(), "GET")
}

func TestConsoleSink_Detail(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf, true)
	s.Detail = true
	require.NoError(t, s.Emit(context.Background(), sampleEntry()))

	out := buf.String()
	first, rest, found := strings.Cut(out, "\n")
	require.True(t, found)
	assert.Contains(t, first, "GET 404")

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(rest), &doc))
	assert.Contains(t, doc, "http")
	assert.Contains(t, rest, "\n  \"")
}

type fakeChannel struct {
	published []amqp.Publishing
	exchange  string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange = exchange
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPSink(t *testing.T) {
	ch := &fakeChannel{}
	s := newAMQPSink(AMQPConfig{}, ch)

	require.NoError(t, s.Emit(context.Background(), sampleEntry()))
	require.Len(t, ch.published, 1)
	assert.Equal(t, "http-mirror", ch.exchange)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, sampleEntry().Event.Start, ch.published[0].Timestamp)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &doc))
	assert.Contains(t, doc, "http")

	require.NoError(t, s.Close())
	assert.True(t, ch.closed)
	assert.Error(t, s.Emit(context.Background(), sampleEntry()))
	assert.NoError(t, s.Close(), "close is idempotent")

	failing := newAMQPSink(AMQPConfig{}, &fakeChannel{err: amqp.ErrClosed})
	assert.ErrorIs(t, failing.Emit(context.Background(), sampleEntry()), amqp.ErrClosed)
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	f.args = append(f.args, a)
	return redis.NewStringResult("1700000000000-0", nil)
}

func (f *fakeStream) Close() error { return nil }

func TestRedisSink(t *testing.T) {
	stream := &fakeStream{}
	s := &RedisSink{client: stream, stream: "mirror", maxLen: 1000}

	require.NoError(t, s.Emit(context.Background(), sampleEntry()))
	require.Len(t, stream.args, 1)
	args := stream.args[0]
	assert.Equal(t, "mirror", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]interface{})
	var doc map[string]any
	require.NoError(t, json.Unmarshal(values["entry"].([]byte), &doc))
	assert.Equal(t, "GET", doc["http"].(map[string]any)["request"].(map[string]any)["method"])

	s = &RedisSink{client: &fakeStream{err: errors.New("READONLY")}, stream: "mirror"}
	assert.ErrorContains(t, s.Emit(context.Background(), sampleEntry()), "READONLY")
	assert.NoError(t, s.Close())
}

type recordingSink struct {
	emitted int
	err     error
}

func (r *recordingSink) Emit(context.Context, *model.Entry) error {
	r.emitted++
	return r.err
}

func (r *recordingSink) Close() error { return r.err }

func TestMulti(t *testing.T) {
	first := &recordingSink{err: errors.New("first")}
	second := &recordingSink{}
	multi := Multi{first, second}

	err := multi.Emit(context.Background(), sampleEntry())
	assert.ErrorContains(t, err, "first")
	assert.Equal(t, 1, first.emitted)
	assert.Equal(t, 1, second.emitted, "later sinks still receive the entry")

	assert.ErrorContains(t, multi.Close(), "first")
	assert.NoError(t, Multi{second}.Emit(context.Background(), sampleEntry()))
}
