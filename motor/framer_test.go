package motor

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func collect(t *testing.T, f Framer) ([]RawRecord, []error) {
	t.Helper()
	var records []RawRecord
	var errs []error
	for i := 0; i < 100; i++ {
		rec, err := f.Next()
		if errors.Is(err, io.EOF) {
			return records, errs
		}
		if err != nil {
			errs = append(errs, err)
			var oversize *OversizeError
			if !errors.As(err, &oversize) {
				return records, errs
			}
			continue
		}
		records = append(records, rec)
	}
	t.Fatal("framer did not terminate")
	return nil, nil
}

func TestLineFramer_SplitsLines(t *testing.T) {
	input := "{\"a\":1}\n\n  \n{\"b\":2}\r\n{\"c\":3}"
	f, err := NewFramer(strings.NewReader(input), FramerOptions{Mode: ModeMirror, Now: fixedNow})
	require.NoError(t, err)

	records, errs := collect(t, f)
	assert.Empty(t, errs)
	require.Len(t, records, 3)
	assert.Equal(t, `{"a":1}`, string(records[0].Line))
	assert.Equal(t, `{"b":2}`, string(records[1].Line))
	assert.Equal(t, `{"c":3}`, string(records[2].Line), "trailing line without newline is still a record")
	assert.Equal(t, fixedNow(), records[0].ReceivedAt)
	assert.Nil(t, records[0].Direct)
}

func TestLineFramer_EmptyStream(t *testing.T) {
	f, err := NewFramer(strings.NewReader(""), FramerOptions{Mode: ModeMirror})
	require.NoError(t, err)

	_, err = f.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineFramer_OversizeLineIsSkipped(t *testing.T) {
	input := `{"small":1}` + "\n" + strings.Repeat("x", 200) + "\n" + `{"next":2}` + "\n"
	f, err := NewFramer(strings.NewReader(input), FramerOptions{Mode: ModeMirror, MaxRecordSize: 64})
	require.NoError(t, err)

	records, errs := collect(t, f)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrRecordTooLarge)
	require.Len(t, records, 2)
	assert.Equal(t, `{"next":2}`, string(records[1].Line))
}

func TestLineFramer_OversizeBeyondBuffer(t *testing.T) {
	// longer than the bufio buffer, so the remainder has to be skipped in chunks
	input := strings.Repeat("y", readBufferSize*3) + "\n" + `{"ok":true}` + "\n"
	f, err := NewFramer(strings.NewReader(input), FramerOptions{Mode: ModeMirror, MaxRecordSize: 1024})
	require.NoError(t, err)

	records, errs := collect(t, f)
	require.Len(t, errs, 1)
	require.Len(t, records, 1)
	assert.Equal(t, `{"ok":true}`, string(records[0].Line))
}

func TestDirectCaptureFramer(t *testing.T) {
	input := "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"
	f, err := NewFramer(strings.NewReader(input), FramerOptions{Mode: ModeDirect, Now: fixedNow})
	require.NoError(t, err)

	rec, err := f.Next()
	require.NoError(t, err)
	require.NotNil(t, rec.Direct)
	assert.Equal(t, "POST /submit HTTP/1.1\r\n", string(rec.Direct.RequestLine))
	assert.Equal(t, "Host: example.com\r\nContent-Length: 5\r\n\r\n", string(rec.Direct.Headers))
	assert.Equal(t, "hello", string(rec.Direct.Body))
	assert.Equal(t, fixedNow(), rec.Direct.ReceivedAt)
	assert.Equal(t, len(input), rec.Size())
	assert.Equal(t, input, string(rec.Direct.RawRequest()))

	_, err = f.Next()
	assert.ErrorIs(t, err, io.EOF, "one record per direct-capture connection")
}

func TestDirectCaptureFramer_TruncatedHeaders(t *testing.T) {
	f, err := NewFramer(strings.NewReader("GET / HTTP/1.1\r\nHost: exa"), FramerOptions{Mode: ModeDirect})
	require.NoError(t, err)

	_, err = f.Next()
	assert.ErrorIs(t, err, ErrTruncatedHeader)
}

func TestDirectCaptureFramer_EmptyConnection(t *testing.T) {
	f, err := NewFramer(strings.NewReader(""), FramerOptions{Mode: ModeDirect})
	require.NoError(t, err)

	_, err = f.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestAutoFramer_DetectsMode(t *testing.T) {
	f, err := NewFramer(strings.NewReader("\r\n  {\"a\":1}\n"), FramerOptions{Mode: ModeAuto})
	require.NoError(t, err)
	rec, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(rec.Line))

	f, err = NewFramer(strings.NewReader("GET / HTTP/1.1\r\n\r\n"), FramerOptions{})
	require.NoError(t, err)
	rec, err = f.Next()
	require.NoError(t, err)
	require.NotNil(t, rec.Direct)
	assert.Equal(t, "GET / HTTP/1.1\r\n", string(rec.Direct.RequestLine))

	f, err = NewFramer(strings.NewReader("   "), FramerOptions{Mode: ModeAuto})
	require.NoError(t, err)
	_, err = f.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"direct", "mirror", "auto"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("udp")
	assert.Error(t, err)

	_, err = NewFramer(strings.NewReader(""), FramerOptions{Mode: "bogus"})
	assert.Error(t, err)
}
