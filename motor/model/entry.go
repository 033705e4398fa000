package model

// Entry is the normalized, ECS-shaped record of one mirrored HTTP request.
// Every group is optional; a nil group is omitted from the rendered document.
type Entry struct {
	// Source is the client side of the mirrored connection
	Source *Endpoint

	// Destination is the server side, known only when the agent reports it
	Destination *Endpoint

	// Client is the original client named by a Forwarded header, if any
	Client *Endpoint

	// Network describes the transport the request travelled over
	Network *Network

	// Event holds timing and classification
	Event *Event

	// URL of the request, resolved against the Host and Forwarded headers
	URL *URL

	// HTTP request and response details
	HTTP *HTTP

	// UserAgent as sent by the client
	UserAgent *UserAgent
}

// HTTP groups the request and response of one exchange.
type HTTP struct {
	// Version is the protocol version without the "HTTP/" prefix, e.g. "1.1"
	Version string

	Request  *HTTPRequest
	Response *HTTPResponse
}

// UserAgent is the raw User-Agent header value.
type UserAgent struct {
	Original string
}
