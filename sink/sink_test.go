package sink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedisSinkPublishes(t *testing.T) {
	server := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: server.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "bot:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	s := NewRedisSink(client, "bot:events")
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	require.NoError(t, s.Publish(ctx, 42, "user_registered", "Anna"))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, Message{
		UserID:  42,
		Command: "user_registered",
		Content: "Anna",
		SentAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}, got)
}

func TestRedisSinkReportsFailure(t *testing.T) {
	server := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()
	server.Close()

	err := NewRedisSink(client, "").Publish(context.Background(), 1, "user_registered", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultChannel)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	require.NoError(t, NewLogSink(zap.New(core)).Publish(context.Background(), 7, "user_registered", "Bob"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(7), fields["chat_id"])
	assert.Equal(t, "Bob", fields["content"])
}
