// Package sink forwards CommandToExternal parts out of the bot.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "weatherbot:external"

// Message is the JSON document published for every external command.
type Message struct {
	UserID  int64     `json:"user_id"`
	Command string    `json:"command"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// RedisSink publishes external commands on a redis pub/sub channel.
type RedisSink struct {
	client  *backend.Client
	channel string
	now     func() time.Time
}

func NewRedisSink(client *backend.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{client: client, channel: channel, now: time.Now}
}

func (s *RedisSink) Publish(ctx context.Context, userID int64, command, content string) error {
	payload, err := json.Marshal(Message{
		UserID:  userID,
		Command: command,
		Content: content,
		SentAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal external command: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.channel, err)
	}
	return nil
}

// LogSink only logs external commands. It is used when no redis is
// configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, userID int64, command, content string) error {
	s.logger.Info("external command",
		zap.Int64("chat_id", userID),
		zap.String("command", command),
		zap.String("content", content),
	)
	return nil
}
