package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorEntry_Unmarshal(t *testing.T) {
	line := `{"remote_addr":"10.0.0.1","remote_port":"5555","request":{"raw_base64":"R0VUIC8gSFRUUC8xLjENCg0K","time":1700000000.5},` +
		`"response":{"headers":{"Content-Type":"text/plain"},"body_base64":"aGk=","duration":"0.125","status":200}}`

	var entry MirrorEntry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))

	assert.Equal(t, "10.0.0.1", entry.RemoteAddr)
	assert.Equal(t, Port(5555), entry.RemotePort)
	assert.False(t, entry.HasConnectionMetadata())
	assert.Equal(t, 1700000000.5, entry.Request.Time)
	require.NotNil(t, entry.Response)
	assert.Equal(t, 200, entry.Response.Status)
	require.NotNil(t, entry.Response.Duration)
	assert.Equal(t, 125*time.Millisecond, entry.Response.Duration.Duration())
}

func TestMirrorEntry_ConnectionMetadata(t *testing.T) {
	line := `{"remote_addr":"::1","remote_port":1,"server_addr":"10.0.0.2","server_port":443,"scheme":"https",` +
		`"request":{"raw_base64":"","time":1}}`

	var entry MirrorEntry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))

	assert.True(t, entry.HasConnectionMetadata())
	require.NotNil(t, entry.ServerPort)
	assert.Equal(t, Port(443), *entry.ServerPort)
	assert.Equal(t, "https", *entry.Scheme)
	assert.Nil(t, entry.Response)
}

func TestPort_Invalid(t *testing.T) {
	tests := []string{`"http"`, `70000`, `-1`, `""`}
	for _, tc := range tests {
		var p Port
		assert.Error(t, json.Unmarshal([]byte(tc), &p), tc)
	}
}

func TestSeconds_Forms(t *testing.T) {
	var s Seconds
	require.NoError(t, json.Unmarshal([]byte(`"0.125"`), &s))
	assert.Equal(t, 125*time.Millisecond, s.Duration())

	require.NoError(t, json.Unmarshal([]byte(`2.5`), &s))
	assert.Equal(t, 2500*time.Millisecond, s.Duration())

	assert.Error(t, json.Unmarshal([]byte(`"NaN"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &s))

	out, err := json.Marshal(Seconds(125 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"0.125"`, string(out))
}

func TestHeaderMap_PreservesRepeatedValuesInOrder(t *testing.T) {
	raw := `{"Content-Type":"text/html","Set-Cookie":["a=1","b=2"],"X-Count":3,"X-Null":null}`

	var headers HeaderMap
	require.NoError(t, json.Unmarshal([]byte(raw), &headers))

	assert.Equal(t, HeaderMap{
		{Name: "Content-Type", Value: "text/html"},
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "Set-Cookie", Value: "b=2"},
		{Name: "X-Count", Value: "3"},
	}, headers)
}

func TestHeaderMap_DuplicateKeys(t *testing.T) {
	var headers HeaderMap
	require.NoError(t, json.Unmarshal([]byte(`{"Via":"a","Via":"b"}`), &headers))
	assert.Equal(t, []string{"a", "b"}, HeaderValues(headers, "via"))
}

func TestHeaderMap_RejectsObjects(t *testing.T) {
	var headers HeaderMap
	assert.Error(t, json.Unmarshal([]byte(`{"X":{"y":1}}`), &headers))
	assert.Error(t, json.Unmarshal([]byte(`["X"]`), &headers))
}

func TestHeaderMap_MarshalGroupsRepeats(t *testing.T) {
	headers := HeaderMap{
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "Content-Type", Value: "text/plain"},
		{Name: "Set-Cookie", Value: "b=2"},
	}
	out, err := json.Marshal(headers)
	require.NoError(t, err)
	assert.Equal(t, `{"Set-Cookie":["a=1","b=2"],"Content-Type":"text/plain"}`, string(out))

	var back HeaderMap
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, []string{"a=1", "b=2"}, HeaderValues(back, "Set-Cookie"))
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "direct_capture", ShapeDirectCapture.String())
	assert.Equal(t, "request_response", ShapeRequestResponse.String())
	assert.Equal(t, "exchange", ShapeExchange.String())
	assert.Equal(t, "unknown", Shape(42).String())
}
