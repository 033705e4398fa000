package model

// HTTPResponse contains the response description and content.
type HTTPResponse struct {
	// StatusCode indicates the response status
	StatusCode int

	// MimeType from the Content-Type header, without parameters
	MimeType string

	// Headers in the order the agent reported them
	Headers []Header

	// Body describes the response body content
	Body *Body

	// Bytes is the size of the body as sent
	Bytes int
}
