package motor

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
)

// Record is a framed unit resolved to one of the supported wire shapes.
// The set of implementations is closed: *DirectCapture, *RequestResponse and *Exchange.
type Record interface {
	Shape() model.Shape
	isRecord()
}

// DirectCapture is a raw HTTP request read straight off a connection (shape A).
type DirectCapture struct {
	RequestLine []byte
	Headers     []byte
	Body        []byte

	// ReceivedAt is when the request line arrived, used as the event start
	ReceivedAt time.Time
}

// RequestResponse is a mirror record without connection metadata (shape B).
type RequestResponse struct {
	Mirror *model.MirrorEntry
	Raw    []byte
}

// Exchange is a mirror record that also names the server side and scheme (shape C).
type Exchange struct {
	Mirror *model.MirrorEntry
	Raw    []byte
}

func (*DirectCapture) Shape() model.Shape   { return model.ShapeDirectCapture }
func (*RequestResponse) Shape() model.Shape { return model.ShapeRequestResponse }
func (*Exchange) Shape() model.Shape        { return model.ShapeExchange }

func (*DirectCapture) isRecord()   {}
func (*RequestResponse) isRecord() {}
func (*Exchange) isRecord()        {}

// RawRequest reassembles the bytes the peer sent.
func (d *DirectCapture) RawRequest() []byte {
	raw := make([]byte, 0, len(d.RequestLine)+len(d.Headers)+len(d.Body))
	raw = append(raw, d.RequestLine...)
	raw = append(raw, d.Headers...)
	return append(raw, d.Body...)
}

// Classify resolves a framed unit to its wire shape.
func Classify(raw RawRecord) (Record, error) {
	if raw.Direct != nil {
		return raw.Direct, nil
	}
	return ParseMirrorLine(raw.Line)
}

// ParseMirrorLine decodes one JSON mirror line. The record is an *Exchange when any
// of server_addr, server_port or scheme is present, a *RequestResponse otherwise.
func ParseMirrorLine(line []byte) (Record, error) {
	var entry model.MirrorEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil, decodeErr("json", err)
	}
	if entry.Request.RawBase64 == "" {
		return nil, decodeErr("json", errors.New("request.raw_base64 is required"))
	}

	if entry.HasConnectionMetadata() {
		return &Exchange{Mirror: &entry, Raw: line}, nil
	}
	return &RequestResponse{Mirror: &entry, Raw: line}, nil
}
