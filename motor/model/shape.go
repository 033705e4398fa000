package model

// Shape identifies which of the supported wire encodings a record arrived in.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeDirectCapture is a raw HTTP request read straight off the wire, with no response.
	ShapeDirectCapture
	// ShapeRequestResponse is a JSON record with the request, the response and the client address.
	ShapeRequestResponse
	// ShapeExchange is ShapeRequestResponse plus server address, server port and scheme.
	ShapeExchange
)

func (s Shape) String() string {
	switch s {
	case ShapeDirectCapture:
		return "direct_capture"
	case ShapeRequestResponse:
		return "request_response"
	case ShapeExchange:
		return "exchange"
	default:
		return "unknown"
	}
}
