package motor

import (
	"errors"
	"math"
	"net"
	"strings"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/pb33f/mirrorlog/motor/model"
)

const (
	EventKind    = "event"
	EventDataset = "http_mirror_server"
)

type partial struct {
	entry     *model.Entry
	overrides model.Field
}

// Normalizer maps decoded records onto entries.
type Normalizer struct {
	location *time.Location
}

// NewNormalizer renders timestamps in loc, or time.Local when loc is nil.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{location: loc}
}

// Normalize builds the request, response and connection partials and merges them
// in that order. Source, destination and network always come from the connection
// partial; any other field set by two partials is an error.
func (n *Normalizer) Normalize(d *Decoded, conn ConnInfo) (*model.Entry, error) {
	if d == nil || d.Request == nil {
		return nil, normalizeErr("request", errors.New("no decoded request"))
	}

	start, err := n.start(d)
	if err != nil {
		return nil, err
	}

	connection, err := connectionPartial(d, conn)
	if err != nil {
		return nil, err
	}

	partials := []partial{
		{entry: requestPartial(d, start)},
		{entry: responsePartial(d)},
		{entry: connection, overrides: model.ConnectionFields},
	}

	entry := &model.Entry{}
	for _, p := range partials {
		if err := model.Merge(entry, p.entry, p.overrides); err != nil {
			return nil, normalizeErr("merge", err)
		}
	}

	if d.Response != nil && d.Response.Duration != nil {
		duration := *d.Response.Duration
		if duration < 0 {
			return nil, normalizeErr("response.duration", errors.New("negative duration"))
		}
		entry.Event.SetDuration(duration)
	}
	return entry, nil
}

func (n *Normalizer) start(d *Decoded) (time.Time, error) {
	if d.Mirror == nil {
		if d.ReceivedAt.IsZero() {
			return time.Time{}, normalizeErr("event.start", errors.New("receive time unknown"))
		}
		return d.ReceivedAt.In(n.location), nil
	}

	t := d.Mirror.Request.Time
	if t == 0 {
		return time.Time{}, normalizeErr("request.time", errors.New("missing"))
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return time.Time{}, normalizeErr("request.time", errors.New("not finite"))
	}
	return epochTime(t).In(n.location), nil
}

// epochTime converts float seconds to a time, keeping microsecond precision.
func epochTime(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	micros := int64(math.Round(frac * 1e6))
	return time.Unix(int64(whole), micros*int64(time.Microsecond))
}

func requestPartial(d *Decoded, start time.Time) *model.Entry {
	r := d.Request
	entry := &model.Entry{
		Event: &model.Event{
			Kind:     EventKind,
			Category: []string{"network", "web"},
			Type:     []string{"access"},
			Dataset:  EventDataset,
			Original: string(d.Raw),
			Start:    start,
		},
		URL: r.URL,
		HTTP: &model.HTTP{
			Version: r.Version,
			Request: &model.HTTPRequest{
				Method:   r.Method,
				MimeType: r.MimeType,
				Referrer: r.Referrer,
				Headers:  r.Headers,
				Body:     r.Body,
				Bytes:    r.Bytes,
			},
		},
		Client: r.Client,
	}
	if r.UserAgent != "" {
		entry.UserAgent = &model.UserAgent{Original: r.UserAgent}
	}
	return entry
}

func responsePartial(d *Decoded) *model.Entry {
	r := d.Response
	if r == nil {
		return &model.Entry{}
	}
	return &model.Entry{
		HTTP: &model.HTTP{
			Response: &model.HTTPResponse{
				StatusCode: r.StatusCode,
				MimeType:   r.MimeType,
				Headers:    r.Headers,
				Body:       r.Body,
				Bytes:      r.Bytes,
			},
		},
	}
}

func connectionPartial(d *Decoded, conn ConnInfo) (*model.Entry, error) {
	if d.Mirror == nil {
		entry := &model.Entry{
			Network: &model.Network{
				Type:       conn.Type,
				Transport:  conn.Transport,
				IANANumber: conn.IANANumber,
				Protocol:   "http",
				Direction:  "ingress",
			},
		}
		if conn.Address != "" {
			entry.Source = &model.Endpoint{Address: conn.Address, IP: conn.IP, Port: conn.Port}
		}
		return entry, nil
	}

	m := d.Mirror
	if m.RemoteAddr == "" {
		return nil, normalizeErr("remote_addr", errors.New("missing"))
	}

	source := endpoint(m.RemoteAddr, int(m.RemotePort))
	entry := &model.Entry{
		Source: source,
		Network: &model.Network{
			Type:     ipType(net.ParseIP(source.IP)),
			Protocol: "http",
		},
	}
	// agents mirror HTTP/1.x, always carried over TCP
	entry.Network.Transport, entry.Network.IANANumber = transport(layers.IPProtocolTCP)

	if d.Shape == model.ShapeExchange {
		if m.ServerAddr != nil || m.ServerPort != nil {
			var addr string
			var port int
			if m.ServerAddr != nil {
				addr = *m.ServerAddr
			}
			if m.ServerPort != nil {
				port = int(*m.ServerPort)
			}
			entry.Destination = endpoint(addr, port)
		}
		if m.Scheme != nil && *m.Scheme != "" {
			entry.Network.Protocol = strings.ToLower(*m.Scheme)
		}
	}
	return entry, nil
}

func endpoint(address string, port int) *model.Endpoint {
	ep := &model.Endpoint{Address: address, Port: port}
	if ip := net.ParseIP(address); ip != nil {
		ep.IP = ip.String()
	}
	return ep
}
