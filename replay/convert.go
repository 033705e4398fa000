package replay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pb33f/harhar"
	"github.com/pb33f/mirrorlog/motor/model"
)

// ErrNoStart is returned for entries without a usable startedDateTime.
var ErrNoStart = errors.New("entry has no start time")

// ConvertOptions controls how HAR entries become mirror records.
type ConvertOptions struct {
	// RemoteAddr is reported as the client address, default "127.0.0.1"
	RemoteAddr string

	// RemotePort is used when the entry's connection id is not a port
	RemotePort int
}

// headers that describe the recorded framing rather than the replayed bytes
var rebuiltHeaders = map[string]struct{}{
	"content-length":    {},
	"transfer-encoding": {},
	"content-encoding":  {},
	"connection":        {},
}

// ToMirror converts a HAR entry into an exchange record. HAR stores decoded
// bodies, so the request is rebuilt as HTTP/1.1 with a fresh Content-Length
// and encodings are dropped from both sides.
func ToMirror(entry *harhar.Entry, opts ConvertOptions) (*model.MirrorEntry, error) {
	u, err := url.Parse(entry.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", entry.Request.URL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("request url %q is not absolute", entry.Request.URL)
	}

	start, err := startTime(entry.Start)
	if err != nil {
		return nil, err
	}

	remoteAddr := opts.RemoteAddr
	if remoteAddr == "" {
		remoteAddr = "127.0.0.1"
	}
	remotePort := opts.RemotePort
	if port, err := strconv.Atoi(entry.Connection); err == nil && port > 0 && port <= 65535 {
		remotePort = port
	}

	scheme := strings.ToLower(u.Scheme)
	serverAddr := strings.Trim(entry.ServerIP, "[]")
	if serverAddr == "" {
		serverAddr = u.Hostname()
	}
	serverPort := model.Port(defaultPort(scheme))
	if p, err := strconv.Atoi(u.Port()); err == nil {
		serverPort = model.Port(p)
	}

	mirror := &model.MirrorEntry{
		RemoteAddr: remoteAddr,
		RemotePort: model.Port(remotePort),
		ServerAddr: &serverAddr,
		ServerPort: &serverPort,
		Scheme:     &scheme,
		Request: model.MirrorRequest{
			RawBase64: base64.StdEncoding.EncodeToString(rawRequest(entry, u)),
			Time:      float64(start.UnixMicro()) / 1e6,
		},
	}

	if entry.Response.StatusCode > 0 {
		mirror.Response = response(entry)
	}
	return mirror, nil
}

func startTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrNoStart
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoStart, err)
	}
	return t, nil
}

func defaultPort(scheme string) int {
	if scheme == "https" || scheme == "wss" {
		return 443
	}
	return 80
}

func rawRequest(entry *harhar.Entry, u *url.URL) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", strings.ToUpper(entry.Request.Method), u.RequestURI())

	hasHost := false
	for _, h := range entry.Request.Headers {
		if strings.EqualFold(h.Name, "host") {
			hasHost = true
			break
		}
	}
	if !hasHost {
		host := u.Host
		if authority, ok := pseudoHeader(entry.Request.Headers, ":authority"); ok {
			host = authority
		}
		fmt.Fprintf(&b, "Host: %s\r\n", host)
	}

	for _, h := range entry.Request.Headers {
		if keepHeader(h.Name) {
			fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
		}
	}

	body := entry.Request.Body.Content
	if body != "" {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func response(entry *harhar.Entry) *model.MirrorResponse {
	headers := make(model.HeaderMap, 0, len(entry.Response.Headers))
	for _, h := range entry.Response.Headers {
		if keepHeader(h.Name) {
			headers = append(headers, model.Header{Name: h.Name, Value: h.Value})
		}
	}

	resp := &model.MirrorResponse{
		Headers:    headers,
		BodyBase64: base64.StdEncoding.EncodeToString([]byte(entry.Response.Body.Content)),
		Status:     entry.Response.StatusCode,
	}
	if entry.Time >= 0 {
		d := model.Seconds(time.Duration(entry.Time * float64(time.Millisecond)).Round(time.Microsecond))
		resp.Duration = &d
	}
	return resp
}

// keepHeader drops HTTP/2 pseudo headers and framing headers.
func keepHeader(name string) bool {
	if strings.HasPrefix(name, ":") {
		return false
	}
	_, rebuilt := rebuiltHeaders[strings.ToLower(name)]
	return !rebuilt
}

func pseudoHeader(headers []harhar.NameValuePair, name string) (string, bool) {
	for _, h := range headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

