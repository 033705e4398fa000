package model

import (
	"errors"
	"fmt"
	"strings"
)

// Field names one mergeable group of an Entry.
type Field uint16

const (
	FieldSource Field = 1 << iota
	FieldDestination
	FieldClient
	FieldNetwork
	FieldEvent
	FieldURL
	FieldHTTPVersion
	FieldHTTPRequest
	FieldHTTPResponse
	FieldUserAgent
)

// ConnectionFields are owned by the connection-metadata partial and always override.
const ConnectionFields = FieldSource | FieldDestination | FieldNetwork

var fieldNames = []struct {
	field Field
	name  string
}{
	{FieldSource, "source"},
	{FieldDestination, "destination"},
	{FieldClient, "client"},
	{FieldNetwork, "network"},
	{FieldEvent, "event"},
	{FieldURL, "url"},
	{FieldHTTPVersion, "http.version"},
	{FieldHTTPRequest, "http.request"},
	{FieldHTTPResponse, "http.response"},
	{FieldUserAgent, "user_agent"},
}

func (f Field) String() string {
	var names []string
	for _, fn := range fieldNames {
		if f&fn.field != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ErrFieldCollision is returned when two partial entries both set a group that is not an override.
var ErrFieldCollision = errors.New("field collision")

// CollisionError names the groups that collided.
type CollisionError struct {
	Fields Field
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("merge: %s already set", e.Fields)
}

func (e *CollisionError) Unwrap() error {
	return ErrFieldCollision
}

// Fields reports which groups of the entry are set.
func (e *Entry) Fields() Field {
	var f Field
	if e.Source != nil {
		f |= FieldSource
	}
	if e.Destination != nil {
		f |= FieldDestination
	}
	if e.Client != nil {
		f |= FieldClient
	}
	if e.Network != nil {
		f |= FieldNetwork
	}
	if e.Event != nil {
		f |= FieldEvent
	}
	if e.URL != nil {
		f |= FieldURL
	}
	if e.HTTP != nil {
		if e.HTTP.Version != "" {
			f |= FieldHTTPVersion
		}
		if e.HTTP.Request != nil {
			f |= FieldHTTPRequest
		}
		if e.HTTP.Response != nil {
			f |= FieldHTTPResponse
		}
	}
	if e.UserAgent != nil {
		f |= FieldUserAgent
	}
	return f
}

// Merge copies every group set in src into dst. A group already set in dst is
// only replaced when it is listed in overrides, otherwise Merge returns a
// *CollisionError and leaves dst untouched.
func Merge(dst, src *Entry, overrides Field) error {
	if src == nil {
		return nil
	}
	if collisions := dst.Fields() & src.Fields() &^ overrides; collisions != 0 {
		return &CollisionError{Fields: collisions}
	}

	if src.Source != nil {
		dst.Source = src.Source
	}
	if src.Destination != nil {
		dst.Destination = src.Destination
	}
	if src.Client != nil {
		dst.Client = src.Client
	}
	if src.Network != nil {
		dst.Network = src.Network
	}
	if src.Event != nil {
		dst.Event = src.Event
	}
	if src.URL != nil {
		dst.URL = src.URL
	}
	if src.UserAgent != nil {
		dst.UserAgent = src.UserAgent
	}
	if src.HTTP != nil {
		if dst.HTTP == nil {
			dst.HTTP = &HTTP{}
		}
		if src.HTTP.Version != "" {
			dst.HTTP.Version = src.HTTP.Version
		}
		if src.HTTP.Request != nil {
			dst.HTTP.Request = src.HTTP.Request
		}
		if src.HTTP.Response != nil {
			dst.HTTP.Response = src.HTTP.Response
		}
	}
	return nil
}
