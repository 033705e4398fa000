package motor

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
)

// DecoderOptions controls how much of a request is trusted and derived.
// The zero value enables everything.
type DecoderOptions struct {
	// Suffixes annotates url.registered_domain and friends when set
	Suffixes SuffixLookup

	// DisableHostHeader stops the Host header from supplying url.domain/url.port
	DisableHostHeader bool

	// DisableForwarded ignores the RFC 7239 Forwarded header
	DisableForwarded bool

	// DisableDecompression leaves bodies with a Content-Encoding as they are
	DisableDecompression bool

	// MaxBodySize bounds decompressed bodies, defaults to MaxRecordSize
	MaxBodySize int
}

// Decoder turns a Record into request and response views. It holds no
// per-record state and is safe for concurrent use.
type Decoder struct {
	opts DecoderOptions
}

func NewDecoder(opts DecoderOptions) *Decoder {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = MaxRecordSize
	}
	return &Decoder{opts: opts}
}

// Decoded is the result of decoding one record.
type Decoded struct {
	Shape model.Shape

	// Raw is the full raw request, kept for audit
	Raw []byte

	Request *RequestView

	// Response is nil for direct captures and mirror records without a response
	Response *ResponseView

	// Mirror is the JSON record for shapes B and C
	Mirror *model.MirrorEntry

	// ReceivedAt is when a direct capture arrived
	ReceivedAt time.Time

	// Warnings are non-fatal problems, such as a body that failed to decompress
	Warnings []error
}

// RequestView is the parsed request with everything derived from it.
type RequestView struct {
	Method    string
	Version   string
	Headers   []model.Header
	Body      *model.Body
	Bytes     int
	MimeType  string
	Referrer  string
	UserAgent string
	URL       *model.URL

	// Client is the originating client named by a Forwarded header
	Client *model.Endpoint
}

// ResponseView is the synthetic response built from a mirror record.
type ResponseView struct {
	StatusCode int
	Headers    []model.Header
	Body       *model.Body
	Bytes      int
	MimeType   string
	Duration   *time.Duration
}

// Decode parses the record's embedded HTTP messages.
func (d *Decoder) Decode(rec Record) (*Decoded, error) {
	switch r := rec.(type) {
	case *DirectCapture:
		return d.decodeDirect(r)
	case *RequestResponse:
		return d.decodeMirror(r.Mirror, model.ShapeRequestResponse)
	case *Exchange:
		return d.decodeMirror(r.Mirror, model.ShapeExchange)
	default:
		return nil, decodeErr("record", fmt.Errorf("unsupported record %T", rec))
	}
}

func (d *Decoder) decodeDirect(r *DirectCapture) (*Decoded, error) {
	decoded := &Decoded{
		Shape:      model.ShapeDirectCapture,
		Raw:        r.RawRequest(),
		ReceivedAt: r.ReceivedAt,
	}
	request, err := d.parseRequest(decoded.Raw, "http", decoded)
	if err != nil {
		return nil, err
	}
	decoded.Request = request
	return decoded, nil
}

func (d *Decoder) decodeMirror(m *model.MirrorEntry, shape model.Shape) (*Decoded, error) {
	raw, err := decodeBase64(m.Request.RawBase64)
	if err != nil {
		return nil, decodeErr("base64", fmt.Errorf("request.raw_base64: %w", err))
	}

	decoded := &Decoded{Shape: shape, Raw: raw, Mirror: m}

	scheme := "http"
	if m.Scheme != nil && *m.Scheme != "" {
		scheme = strings.ToLower(*m.Scheme)
	}

	request, err := d.parseRequest(raw, scheme, decoded)
	if err != nil {
		return nil, err
	}
	decoded.Request = request

	if m.Response != nil {
		response, err := d.buildResponse(m.Response, decoded)
		if err != nil {
			return nil, err
		}
		decoded.Response = response
	}
	return decoded, nil
}

func (d *Decoder) parseRequest(raw []byte, scheme string, decoded *Decoded) (*RequestView, error) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, decodeErr("request", err)
	}
	defer req.Body.Close()

	headerBlock, remainder := splitHead(raw)
	headers := splitHeaderLines(headerBlock)

	var body []byte
	if req.ContentLength > 0 || len(req.TransferEncoding) > 0 {
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, decodeErr("request", fmt.Errorf("body: %w", err))
		}
	} else if req.Header.Get("Content-Length") == "" {
		// no framing: everything after the header block is the body
		body = remainder
	}

	view := &RequestView{
		Method:    req.Method,
		Version:   fmt.Sprintf("%d.%d", req.ProtoMajor, req.ProtoMinor),
		Headers:   headers,
		Body:      model.NewBody(body),
		Bytes:     len(raw),
		MimeType:  mimeType(req.Header.Get("Content-Type")),
		Referrer:  req.Header.Get("Referer"),
		UserAgent: req.Header.Get("User-Agent"),
	}

	if !d.opts.DisableDecompression {
		d.decompressBody(view.Body, model.HeaderValues(headers, "Content-Encoding"), "request", decoded)
	}

	host := req.URL.Host
	if host == "" && !d.opts.DisableHostHeader {
		host = req.Host
	}

	if req.URL.Scheme != "" {
		scheme = strings.ToLower(req.URL.Scheme)
	}

	if !d.opts.DisableForwarded {
		if value, ok := model.FirstHeader(headers, "Forwarded"); ok {
			if elem, ok := parseForwarded(value); ok {
				if elem.Host != "" {
					host = elem.Host
				}
				if elem.Proto != "" {
					scheme = elem.Proto
				}
				if elem.For != "" {
					address, ip, port := forwardedNode(elem.For)
					view.Client = &model.Endpoint{Address: address, IP: ip, Port: port}
				}
			}
		}
	}

	view.URL = d.buildURL(req, scheme, host)
	return view, nil
}

func (d *Decoder) buildURL(req *http.Request, scheme, host string) *model.URL {
	u := &model.URL{
		Original: req.RequestURI,
		Scheme:   scheme,
		Path:     req.URL.EscapedPath(),
		Query:    req.URL.RawQuery,
		Fragment: req.URL.Fragment,
	}

	domain := host
	if h, p, err := net.SplitHostPort(host); err == nil {
		domain = h
		if n, err := strconv.Atoi(p); err == nil {
			u.Port = n
		}
	}
	u.Domain = strings.Trim(domain, "[]")

	if host != "" {
		full := *req.URL
		full.Scheme = scheme
		full.Host = host
		u.Full = full.String()
	}

	if d.opts.Suffixes != nil && u.Domain != "" {
		if annotation, ok := d.opts.Suffixes.Lookup(u.Domain); ok {
			u.RegisteredDomain = annotation.RegisteredDomain
			u.TopLevelDomain = annotation.TopLevelDomain
			u.Subdomain = annotation.Subdomain
		}
	}
	return u
}

func (d *Decoder) buildResponse(r *model.MirrorResponse, decoded *Decoded) (*ResponseView, error) {
	body, err := decodeBase64(r.BodyBase64)
	if err != nil {
		return nil, decodeErr("base64", fmt.Errorf("response.body_base64: %w", err))
	}

	headers := make([]model.Header, len(r.Headers))
	copy(headers, r.Headers)

	view := &ResponseView{
		StatusCode: r.Status,
		Headers:    headers,
		Body:       model.NewBody(body),
		Bytes:      len(body),
	}
	if contentType, ok := model.FirstHeader(headers, "Content-Type"); ok {
		view.MimeType = mimeType(contentType)
	}
	if r.Duration != nil {
		duration := r.Duration.Duration()
		view.Duration = &duration
	}

	if !d.opts.DisableDecompression {
		d.decompressBody(view.Body, model.HeaderValues(headers, "Content-Encoding"), "response", decoded)
	}
	return view, nil
}

// decompressBody sets DecompressedContent, or records a warning and keeps the raw body.
func (d *Decoder) decompressBody(body *model.Body, encodingHeaders []string, which string, decoded *Decoded) {
	if body == nil {
		return
	}
	out, ok, err := decompress([]byte(body.Content), contentEncodings(encodingHeaders), d.opts.MaxBodySize)
	if err != nil {
		decoded.Warnings = append(decoded.Warnings, fmt.Errorf("%s body not decompressed: %w", which, err))
		return
	}
	if ok {
		content := string(out)
		body.DecompressedContent = &content
	}
}

// decodeBase64 accepts standard base64 with or without padding.
func decodeBase64(s string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return out, nil
	}
	var corrupt base64.CorruptInputError
	if errors.As(err, &corrupt) && !strings.HasSuffix(s, "=") {
		if out, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return out, nil
		}
	}
	return nil, err
}

func mimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// splitHead separates the start line and header block from whatever follows the
// blank line. Both CRLF and bare LF line endings are accepted.
func splitHead(raw []byte) (head, rest []byte) {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return raw[:crlf+2], raw[crlf+4:]
	case lf >= 0:
		return raw[:lf+1], raw[lf+2:]
	default:
		return raw, nil
	}
}

// splitHeaderLines returns the header fields of a head block in wire order,
// skipping the start line. Folded continuation lines join the previous value.
func splitHeaderLines(head []byte) []model.Header {
	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return nil
	}

	headers := make([]model.Header, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(headers) > 0 {
			last := &headers[len(headers)-1]
			last.Value = strings.TrimSpace(last.Value + " " + strings.TrimSpace(line))
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers = append(headers, model.Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return headers
}
