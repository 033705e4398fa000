package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/pb33f/mirrorlog/motor/model"
	redis "github.com/redis/go-redis/v9"
)

// RedisConfig describes the stream entries are appended to.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string

	// MaxLen trims the stream approximately, zero keeps everything
	MaxLen int64
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisSink appends each entry to a Redis stream under the "entry" field.
type RedisSink struct {
	client streamAdder
	stream string
	maxLen int64
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, config RedisConfig) (*RedisSink, error) {
	if config.Stream == "" {
		config.Stream = "http-mirror"
	}
	client := redis.NewClient(&redis.Options{Addr: config.Addr, Password: config.Password, DB: config.DB})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}
	return &RedisSink{client: client, stream: config.Stream, maxLen: config.MaxLen}, nil
}

func (s *RedisSink) Emit(ctx context.Context, entry *model.Entry) error {
	body, err := entry.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"entry": body},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", s.stream, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
