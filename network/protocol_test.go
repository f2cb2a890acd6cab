package network

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	frame, err := Encode(EventCaretUpdated, map[string]interface{}{"playerId": "p1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"caretUpdated","data":{"playerId":"p1"}}`, string(frame))

	packet, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, EventCaretUpdated, packet.Event)

	var data map[string]string
	require.NoError(t, json.Unmarshal(packet.Data, &data))
	assert.Equal(t, "p1", data["playerId"])
}

func TestEncode_NilPayload(t *testing.T) {
	frame, err := Encode(EventGameStarted, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"gameStarted"}`, string(frame))
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}
