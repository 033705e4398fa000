package motor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedEncoding is returned for a Content-Encoding token with no decoder.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// contentEncodings splits Content-Encoding values into tokens in the order they were applied.
func contentEncodings(values []string) []string {
	var encodings []string
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			token = strings.ToLower(strings.TrimSpace(token))
			if token != "" && token != "identity" {
				encodings = append(encodings, token)
			}
		}
	}
	return encodings
}

// decompress undoes the listed encodings, last applied first. The result is
// bounded by limit bytes. It returns ok=false when there was nothing to undo.
func decompress(body []byte, encodings []string, limit int) (out []byte, ok bool, err error) {
	if len(encodings) == 0 || len(body) == 0 {
		return nil, false, nil
	}

	out = body
	for i := len(encodings) - 1; i >= 0; i-- {
		out, err = decodeOne(out, encodings[i], limit)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", encodings[i], err)
		}
	}
	return out, true, nil
}

func decodeOne(data []byte, encoding string, limit int) ([]byte, error) {
	var reader io.Reader
	switch encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	case "deflate":
		// deflate is meant to be zlib-wrapped, but raw deflate streams are common
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(data))
			defer fr.Close()
			reader = fr
		} else {
			defer zr.Close()
			reader = zr
		}
	case "br":
		reader = brotli.NewReader(bytes.NewReader(data))
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		reader = zr
	default:
		return nil, ErrUnsupportedEncoding
	}

	out, err := io.ReadAll(io.LimitReader(reader, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, &OversizeError{Limit: limit}
	}
	return out, nil
}
