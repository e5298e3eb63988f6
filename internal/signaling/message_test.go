package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChat(t *testing.T) {
	env, err := Decode([]byte(`{"type":"chat","username":"bob","message":"<script>","timestamp":"2024-05-01T09:30:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, Chat{Username: "bob", Message: "<script>", Timestamp: "2024-05-01T09:30:00Z"}, env)
}

func TestDecodeKeepsSignalingOpaque(t *testing.T) {
	raw := `{"type":"offer","sdp":"v=0\r\n","extra":[1,2]}`
	env, err := Decode([]byte(`{"type":"webrtc_offer","offer":` + raw + `,"username":"alice"}`))
	require.NoError(t, err)

	offer, ok := env.(Offer)
	require.True(t, ok)
	assert.Equal(t, "alice", offer.Username)
	assert.JSONEq(t, raw, string(offer.Offer))
}

func TestDecodeTimerWithoutMinutes(t *testing.T) {
	env, err := Decode([]byte(`{"type":"timer","action":"paused","username":"bob"}`))
	require.NoError(t, err)
	timer := env.(Timer)
	assert.Nil(t, timer.Minutes)
	assert.Equal(t, "paused", timer.Action)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"presence","username":"bob"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`{"username":"bob"}`))
	assert.ErrorIs(t, err, ErrMissingType)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"chat","message":42}`))
	assert.Error(t, err)
}

func TestEncodeWritesTag(t *testing.T) {
	data, err := Encode(Chat{Message: "hi", Avatar: "/a.png"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat","message":"hi","avatar":"/a.png"}`, string(data))

	data, err = Encode(ICE{Candidate: json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`), Username: "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"webrtc_ice","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"},"username":"alice"}`, string(data))

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeICE, back.Type())
}

func TestRoomURL(t *testing.T) {
	u, err := RoomURL("http://localhost:8000", "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws/rooms/ABC123/", u)

	u, err = RoomURL("https://cafe.example.com/some/page?x=1", "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "wss://cafe.example.com/ws/rooms/ABC123/", u)

	_, err = RoomURL("http://localhost:8000", "")
	assert.Error(t, err)

	_, err = RoomURL("ftp://example.com", "ABC")
	assert.Error(t, err)

	_, err = RoomURL("localhost", "ABC")
	assert.Error(t, err)
}
