package model

import (
	"encoding/base64"
	"time"
	"unicode/utf8"

	"github.com/Jeffail/gabs/v2"
)

// Document renders the entry as a nested ECS document keyed by dotted field paths.
// Unset groups and empty values are left out. Binary payloads are written
// base64-encoded under a "_base64" suffixed key.
func (e *Entry) Document() *gabs.Container {
	doc := gabs.New()
	set := func(path string, value any) {
		_, _ = doc.SetP(value, path)
	}
	setString := func(path, value string) {
		if value != "" {
			set(path, value)
		}
	}
	setInt := func(path string, value int) {
		if value != 0 {
			set(path, value)
		}
	}
	setEndpoint := func(prefix string, ep *Endpoint) {
		if ep == nil {
			return
		}
		setString(prefix+".address", ep.Address)
		setString(prefix+".ip", ep.IP)
		setInt(prefix+".port", ep.Port)
	}
	// setText writes value under path, or base64 under path+"_base64" when
	// the bytes are not UTF-8 and would not survive JSON encoding
	setText := func(path, value string) {
		if utf8.ValidString(value) {
			set(path, value)
			return
		}
		set(path+"_base64", base64.StdEncoding.EncodeToString([]byte(value)))
	}
	setBody := func(prefix string, body *Body) {
		if body == nil {
			return
		}
		setText(prefix+".content", body.Content)
		set(prefix+".bytes", body.Bytes)
		if body.DecompressedContent != nil {
			setText(prefix+".decompressed_content", *body.DecompressedContent)
		}
	}

	setEndpoint("source", e.Source)
	setEndpoint("destination", e.Destination)
	setEndpoint("client", e.Client)

	if n := e.Network; n != nil {
		setString("network.type", n.Type)
		setString("network.transport", n.Transport)
		if n.IANANumber != nil {
			set("network.iana_number", *n.IANANumber)
		}
		setString("network.protocol", n.Protocol)
		setString("network.direction", n.Direction)
	}

	if ev := e.Event; ev != nil {
		setString("event.kind", ev.Kind)
		if len(ev.Category) > 0 {
			set("event.category", ev.Category)
		}
		if len(ev.Type) > 0 {
			set("event.type", ev.Type)
		}
		setString("event.dataset", ev.Dataset)
		if ev.Original != "" {
			setText("event.original", ev.Original)
		}
		if !ev.Start.IsZero() {
			set("event.start", ev.Start.Format(time.RFC3339Nano))
		}
		if ev.End != nil {
			set("event.end", ev.End.Format(time.RFC3339Nano))
		}
		if ev.Duration != nil {
			set("event.duration", ev.Duration.Seconds())
		}
	}

	if u := e.URL; u != nil {
		setString("url.original", u.Original)
		setString("url.full", u.Full)
		setString("url.scheme", u.Scheme)
		setString("url.domain", u.Domain)
		setInt("url.port", u.Port)
		setString("url.path", u.Path)
		setString("url.query", u.Query)
		setString("url.fragment", u.Fragment)
		setString("url.registered_domain", u.RegisteredDomain)
		setString("url.top_level_domain", u.TopLevelDomain)
		setString("url.subdomain", u.Subdomain)
	}

	if h := e.HTTP; h != nil {
		setString("http.version", h.Version)
		if req := h.Request; req != nil {
			setString("http.request.method", req.Method)
			setString("http.request.mime_type", req.MimeType)
			setString("http.request.referrer", req.Referrer)
			if len(req.Headers) > 0 {
				set("http.request.headers", req.Headers)
			}
			setBody("http.request.body", req.Body)
			setInt("http.request.bytes", req.Bytes)
		}
		if resp := h.Response; resp != nil {
			set("http.response.status_code", resp.StatusCode)
			setString("http.response.mime_type", resp.MimeType)
			if len(resp.Headers) > 0 {
				set("http.response.headers", resp.Headers)
			}
			setBody("http.response.body", resp.Body)
			set("http.response.bytes", resp.Bytes)
		}
	}

	if e.UserAgent != nil {
		setString("user_agent.original", e.UserAgent.Original)
	}

	return doc
}

// MarshalJSON renders the entry's document.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return e.Document().Bytes(), nil
}
