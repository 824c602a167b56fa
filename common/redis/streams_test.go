package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	id, err := PublishJSONToStream(ctx, client, "power:actions", 0, map[string]interface{}{
		"action_type": "POWER_CUTOFF",
		"room_id":     12,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := client.XRange(ctx, "power:actions", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"action_type":"POWER_CUTOFF","room_id":12}`, entries[0].Values[StreamFieldData].(string))
	assert.NotEmpty(t, entries[0].Values[StreamFieldTimestamp])

	var decoded struct {
		ActionType string `json:"action_type"`
		RoomID     int64  `json:"room_id"`
	}
	require.NoError(t, DecodeStreamJSON(entries[0], &decoded))
	assert.Equal(t, "POWER_CUTOFF", decoded.ActionType)
	assert.Equal(t, int64(12), decoded.RoomID)
}

func TestPublishJSONToStream_MarshalError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := PublishJSONToStream(context.Background(), client, "s", 0, func() {})
	assert.Error(t, err)
	assert.False(t, mr.Exists("s"))
}

func TestDecodeStreamJSON_MissingField(t *testing.T) {
	var out map[string]interface{}
	err := DecodeStreamJSON(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"other": "x"}}, &out)
	assert.Error(t, err)
}
