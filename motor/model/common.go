package model

import "strings"

// Header is a single header name and value, in the order it was seen.
// Repeated headers are kept as separate Header values, never joined.
type Header struct {
	// Name of the header, as sent on the wire
	Name string `json:"name"`
	// Value of the header
	Value string `json:"value"`
}

// Endpoint describes one side of a connection (source, destination or client).
type Endpoint struct {
	// Address is the raw address as reported, which may be a hostname or a socket path.
	Address string `json:"address,omitempty"`

	// IP is set when Address parses as an IP literal.
	IP string `json:"ip,omitempty"`

	// Port of the endpoint, zero when unknown.
	Port int `json:"port,omitempty"`
}

// HeaderValues returns all values of the named header (case-insensitive), in order.
func HeaderValues(headers []Header, name string) []string {
	var values []string
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			values = append(values, h.Value)
		}
	}
	return values
}

// FirstHeader returns the first value of the named header (case-insensitive).
func FirstHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}
