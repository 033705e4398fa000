// Package replay turns recorded HAR files into mirror records so captured
// traffic can be pushed through a running server.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/pb33f/harhar"
)

const (
	keyLog     = "log"
	keyVersion = "version"
	keyCreator = "creator"
	keyEntries = "entries"
)

// ErrStop can be returned from an EntryFunc to end streaming early without error.
var ErrStop = errors.New("replay: stop")

// EntryFunc is called for every entry in file order.
type EntryFunc func(index int, entry *harhar.Entry) error

// Summary describes a streamed HAR file.
type Summary struct {
	Version string
	Creator *harhar.Creator
	Entries int

	// Bytes read from the file, the whole file unless streaming stopped early
	Bytes int64

	// Fingerprint is the xxhash of the bytes read, in hex
	Fingerprint string
}

// StreamFile opens path and streams its entries to fn.
func StreamFile(path string, fn EntryFunc) (*Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open har file: %w", err)
	}
	defer file.Close()
	return Stream(file, fn)
}

// Stream walks the HAR document token by token and decodes one entry at a
// time, so memory use is bounded by the largest entry rather than the file.
func Stream(r io.Reader, fn EntryFunc) (*Summary, error) {
	counter := &hashingReader{reader: r, hash: xxhash.New()}
	s := &streamer{
		decoder: json.NewDecoder(counter),
		fn:      fn,
		summary: &Summary{},
	}

	err := s.parseHAR()
	if errors.Is(err, ErrStop) {
		err = nil
	}

	s.summary.Bytes = counter.n
	s.summary.Fingerprint = fmt.Sprintf("%016x", counter.hash.Sum64())
	if err != nil {
		return s.summary, fmt.Errorf("failed to parse har file: %w", err)
	}
	return s.summary, nil
}

type streamer struct {
	decoder *json.Decoder
	fn      EntryFunc
	summary *Summary
}

func (s *streamer) parseHAR() error {
	if err := s.expectDelim('{'); err != nil {
		return err
	}

	for s.decoder.More() {
		key, err := s.key()
		if err != nil {
			return err
		}
		if key == keyLog {
			if err := s.parseLog(); err != nil {
				return err
			}
			continue
		}
		if err := skipValue(s.decoder); err != nil {
			return err
		}
	}

	_, err := s.decoder.Token()
	return err
}

func (s *streamer) parseLog() error {
	if err := s.expectDelim('{'); err != nil {
		return err
	}

	for s.decoder.More() {
		key, err := s.key()
		if err != nil {
			return err
		}

		switch key {
		case keyVersion:
			if err := s.decoder.Decode(&s.summary.Version); err != nil {
				return err
			}
		case keyCreator:
			var creator harhar.Creator
			if err := s.decoder.Decode(&creator); err != nil {
				return err
			}
			s.summary.Creator = &creator
		case keyEntries:
			if err := s.parseEntries(); err != nil {
				return err
			}
		default:
			if err := skipValue(s.decoder); err != nil {
				return err
			}
		}
	}

	_, err := s.decoder.Token()
	return err
}

func (s *streamer) parseEntries() error {
	if err := s.expectDelim('['); err != nil {
		return err
	}

	for s.decoder.More() {
		var entry harhar.Entry
		if err := s.decoder.Decode(&entry); err != nil {
			return fmt.Errorf("failed to parse entry %d: %w", s.summary.Entries, err)
		}
		index := s.summary.Entries
		s.summary.Entries++
		if err := s.fn(index, &entry); err != nil {
			return err
		}
	}

	_, err := s.decoder.Token()
	return err
}

func (s *streamer) key() (string, error) {
	token, err := s.decoder.Token()
	if err != nil {
		return "", err
	}
	key, ok := token.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", token)
	}
	return key, nil
}

func (s *streamer) expectDelim(delim json.Delim) error {
	token, err := s.decoder.Token()
	if err != nil {
		return err
	}
	if token != delim {
		return fmt.Errorf("expected %v, got %v", delim, token)
	}
	return nil
}

func skipValue(decoder *json.Decoder) error {
	var discard json.RawMessage
	return decoder.Decode(&discard)
}

// hashingReader counts and hashes every byte handed to the decoder.
type hashingReader struct {
	reader io.Reader
	hash   *xxhash.Digest
	n      int64
}

func (r *hashingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.hash.Write(p[:n])
		r.n += int64(n)
	}
	return n, err
}
