package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev, err := New(EventTypeCubeMoved, &CubeMoved{
		RoomID:    "r1",
		PlayerID:  "p1",
		Move:      "U'",
		Timestamp: ts,
	})
	require.NoError(t, err)

	b, err := Encode(ev)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, EventTypeCubeMoved, decoded.Type)

	var moved CubeMoved
	require.NoError(t, decoded.DecodeValue(&moved))
	assert.Equal(t, "r1", moved.RoomID)
	assert.Equal(t, "p1", moved.PlayerID)
	assert.Equal(t, "U'", moved.Move)
	assert.True(t, ts.Equal(moved.Timestamp))
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"Telemetry","value":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

func TestEnvelopeShape(t *testing.T) {
	ev, err := New(EventTypeError, &Error{Message: "nope"})
	require.NoError(t, err)
	b, err := Encode(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Error","value":{"message":"nope"}}`, string(b))
}
