package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Stream entry fields written by PublishJSONToStream
const (
	StreamFieldData      = "data"
	StreamFieldTimestamp = "timestamp"
)

// PublishJSONToStream appends data as one JSON "data" field plus a unix timestamp.
// maxLen > 0 trims the stream approximately.
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, maxLen int64, data interface{}) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream entry: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			StreamFieldData:      string(payload),
			StreamFieldTimestamp: time.Now().Unix(),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return client.XAdd(ctx, args).Result()
}

// DecodeStreamJSON unmarshals the "data" field of one stream entry into out
func DecodeStreamJSON(msg redis.XMessage, out interface{}) error {
	raw, ok := msg.Values[StreamFieldData].(string)
	if !ok {
		return fmt.Errorf("stream entry %s has no %s field", msg.ID, StreamFieldData)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode stream entry %s: %w", msg.ID, err)
	}
	return nil
}
