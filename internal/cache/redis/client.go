package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/pkg/logger"
	"github.com/ask-cricket/backend/pkg/utils"
)

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient connects to Redis. A zero ttl keeps entries until evicted.
func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func questionKey(question string) string {
	return fmt.Sprintf("sqlcache:%s", utils.HashString(question))
}

func (c *Client) LookupSQL(ctx context.Context, question string) (string, bool, error) {
	sql, err := c.client.Get(ctx, questionKey(question)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get sql cache: %w", err)
	}

	logger.Debug("Redis sql cache hit", zap.String("question", question))
	return sql, true, nil
}

func (c *Client) InsertSQL(ctx context.Context, question, sql string) error {
	if err := c.client.Set(ctx, questionKey(question), sql, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set sql cache: %w", err)
	}
	return nil
}
