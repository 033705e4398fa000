package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MirrorEntry is one newline-delimited JSON record sent by the mirroring agent.
// The optional server fields are only present when the agent reports connection metadata.
type MirrorEntry struct {
	// RemoteAddr is the client address observed by the agent
	RemoteAddr string `json:"remote_addr"`

	// RemotePort is the client port observed by the agent
	RemotePort Port `json:"remote_port"`

	// ServerAddr is the address the client connected to
	ServerAddr *string `json:"server_addr,omitempty"`

	// ServerPort is the port the client connected to
	ServerPort *Port `json:"server_port,omitempty"`

	// Scheme is the application protocol of the exchange, e.g. "https"
	Scheme *string `json:"scheme,omitempty"`

	// Request holds the raw request bytes and when they were seen
	Request MirrorRequest `json:"request"`

	// Response is the response the origin produced, if the agent saw one
	Response *MirrorResponse `json:"response,omitempty"`
}

// HasConnectionMetadata reports whether any of the server address, server port or scheme was sent.
func (m *MirrorEntry) HasConnectionMetadata() bool {
	return m.ServerAddr != nil || m.ServerPort != nil || m.Scheme != nil
}

// MirrorRequest carries the full raw request, base64 encoded.
type MirrorRequest struct {
	// RawBase64 is the request line, headers and body in standard base64
	RawBase64 string `json:"raw_base64"`

	// Time is when the request was seen, in seconds since the epoch
	Time float64 `json:"time"`
}

// MirrorResponse describes the origin's response as seen by the agent.
type MirrorResponse struct {
	// Headers in the order the agent reported them
	Headers HeaderMap `json:"headers"`

	// BodyBase64 is the response body in standard base64
	BodyBase64 string `json:"body_base64"`

	// Duration is how long the exchange took, nil when the agent did not observe completion
	Duration *Seconds `json:"duration,omitempty"`

	// Status is the HTTP status code
	Status int `json:"status"`
}

// Port is a TCP/UDP port that may arrive as a JSON string or number.
type Port int

func (p *Port) UnmarshalJSON(data []byte) error {
	text := string(bytes.TrimSpace(data))
	if text == "null" {
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("invalid port %s: %w", data, err)
		}
		text = strings.TrimSpace(text)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", text, err)
	}
	if n < 0 || n > math.MaxUint16 {
		return fmt.Errorf("port %d out of range", n)
	}
	*p = Port(n)
	return nil
}

func (p Port) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(p), 10), nil
}

// Seconds is a duration sent as decimal seconds, either as a string ("0.125") or a number.
type Seconds time.Duration

func (s *Seconds) UnmarshalJSON(data []byte) error {
	text := string(bytes.TrimSpace(data))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("invalid duration %s: %w", data, err)
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid duration %q: not finite", text)
	}
	*s = Seconds(math.Round(f * float64(time.Second)))
	return nil
}

// MarshalJSON writes the agent's string form.
func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(time.Duration(s).Seconds(), 'f', -1, 64))
}

// Duration converts to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// HeaderMap is a JSON object of header names to a string or an ordered list of strings.
// Decoding keeps the object's key order and expands lists into repeated headers.
type HeaderMap []Header

func (h *HeaderMap) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if token == nil {
		*h = nil
		return nil
	}
	if token != json.Delim('{') {
		return fmt.Errorf("headers: expected object, got %v", token)
	}

	headers := make(HeaderMap, 0, 8)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		name, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("headers: unexpected key %v", keyToken)
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return fmt.Errorf("headers: value of %q: %w", name, err)
		}

		values, err := headerValues(raw)
		if err != nil {
			return fmt.Errorf("headers: value of %q: %w", name, err)
		}
		for _, v := range values {
			headers = append(headers, Header{Name: name, Value: v})
		}
	}

	if _, err := decoder.Token(); err != nil {
		return err
	}

	*h = headers
	return nil
}

func headerValues(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		values := make([]string, 0, len(list))
		for _, item := range list {
			v, err := headerValues(item)
			if err != nil {
				return nil, err
			}
			values = append(values, v...)
		}
		return values, nil
	case 'n':
		return nil, nil
	case '{':
		return nil, fmt.Errorf("unexpected object")
	default:
		// numbers and booleans are kept verbatim
		return []string{string(trimmed)}, nil
	}
}

// MarshalJSON groups repeated names into lists, ordered by first appearance.
func (h HeaderMap) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("{}"), nil
	}

	order := make([]string, 0, len(h))
	grouped := make(map[string][]string, len(h))
	for _, header := range h {
		if _, seen := grouped[header.Name]; !seen {
			order = append(order, header.Name)
		}
		grouped[header.Name] = append(grouped[header.Name], header.Value)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var value []byte
		if values := grouped[name]; len(values) == 1 {
			value, err = json.Marshal(values[0])
		} else {
			value, err = json.Marshal(values)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
