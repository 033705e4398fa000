package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_DisjointPartials(t *testing.T) {
	var entry Entry

	request := &Entry{
		URL:  &URL{Path: "/"},
		HTTP: &HTTP{Version: "1.1", Request: &HTTPRequest{Method: "GET"}},
	}
	response := &Entry{HTTP: &HTTP{Response: &HTTPResponse{StatusCode: 200}}}
	conn := &Entry{Source: &Endpoint{IP: "10.0.0.1", Port: 5555}, Network: &Network{Transport: "tcp"}}

	require.NoError(t, Merge(&entry, request, 0))
	require.NoError(t, Merge(&entry, response, 0))
	require.NoError(t, Merge(&entry, conn, ConnectionFields))

	assert.Equal(t, "GET", entry.HTTP.Request.Method)
	assert.Equal(t, 200, entry.HTTP.Response.StatusCode)
	assert.Equal(t, "1.1", entry.HTTP.Version)
	assert.Equal(t, "10.0.0.1", entry.Source.IP)
	assert.Equal(t, FieldSource|FieldNetwork|FieldURL|FieldHTTPVersion|FieldHTTPRequest|FieldHTTPResponse, entry.Fields())
}

func TestMerge_CollisionLeavesDestinationUntouched(t *testing.T) {
	entry := Entry{
		HTTP: &HTTP{Request: &HTTPRequest{Method: "GET"}},
		URL:  &URL{Path: "/a"},
	}
	other := &Entry{
		HTTP:      &HTTP{Request: &HTTPRequest{Method: "POST"}},
		UserAgent: &UserAgent{Original: "curl"},
	}

	err := Merge(&entry, other, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFieldCollision))

	var collision *CollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, FieldHTTPRequest, collision.Fields)
	assert.Contains(t, err.Error(), "http.request")

	assert.Equal(t, "GET", entry.HTTP.Request.Method)
	assert.Nil(t, entry.UserAgent)
}

func TestMerge_ConnectionFieldsOverride(t *testing.T) {
	entry := Entry{Source: &Endpoint{IP: "192.0.2.1"}}
	conn := &Entry{Source: &Endpoint{IP: "10.0.0.1"}, Destination: &Endpoint{IP: "10.0.0.2"}}

	require.NoError(t, Merge(&entry, conn, ConnectionFields))
	assert.Equal(t, "10.0.0.1", entry.Source.IP)
	assert.Equal(t, "10.0.0.2", entry.Destination.IP)

	// overrides do not extend to message fields
	entry.Event = &Event{Start: time.Unix(1, 0)}
	err := Merge(&entry, &Entry{Event: &Event{}}, ConnectionFields)
	assert.ErrorIs(t, err, ErrFieldCollision)
}

func TestMerge_DoesNotAliasSourceHTTP(t *testing.T) {
	var entry Entry
	src := &Entry{HTTP: &HTTP{Request: &HTTPRequest{Method: "GET"}}}
	require.NoError(t, Merge(&entry, src, 0))
	require.NoError(t, Merge(&entry, &Entry{HTTP: &HTTP{Response: &HTTPResponse{StatusCode: 404}}}, 0))

	assert.Nil(t, src.HTTP.Response)
	assert.Equal(t, 404, entry.HTTP.Response.StatusCode)
}

func TestField_String(t *testing.T) {
	assert.Equal(t, "none", Field(0).String())
	assert.Equal(t, "source,network", (FieldSource | FieldNetwork).String())
}
