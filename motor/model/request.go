package model

// HTTPRequest contains the request description and content.
type HTTPRequest struct {
	// Method of the HTTP request, in caps, GET/POST/etc
	Method string

	// MimeType from the Content-Type header, without parameters
	MimeType string

	// Referrer from the Referer header
	Referrer string

	// Headers in wire order, repeated headers kept separately
	Headers []Header

	// Body of the request, nil when empty
	Body *Body

	// Bytes is the size of the raw request (start line, headers and body)
	Bytes int
}

// Body describes a request or response body.
type Body struct {
	// Content is the body as sent on the wire
	Content string

	// Bytes is the size of Content
	Bytes int

	// DecompressedContent is set when the body carried a recognized Content-Encoding
	DecompressedContent *string
}

// NewBody returns nil for an empty payload.
func NewBody(raw []byte) *Body {
	if len(raw) == 0 {
		return nil
	}
	return &Body{Content: string(raw), Bytes: len(raw)}
}
