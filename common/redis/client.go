// common/redis/client.go
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/backoff"
	"github.com/YaganovValera/crypto-realtime/common/logger"
)

// Client: тонкая обёртка над go-redis с префиксом ключей и TTL.
type Client struct {
	rdb *goredis.Client
	cfg Config
	log *logger.Logger
}

// Open создаёт клиента без проверки соединения (go-redis подключается лениво).
func Open(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return &Client{rdb: rdb, cfg: cfg, log: log.Named("redis")}, nil
}

// Connect = Open + PING с back-off.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	c, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := backoff.Execute(ctx, "redis-ping", c.cfg.Backoff, c.log, c.Ping); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", c.cfg.Addr, err)
	}
	c.log.Info("redis connected", zap.String("addr", c.cfg.Addr), zap.Int("db", c.cfg.DB))
	return c, nil
}

// Key добавляет сконфигурированный префикс.
func (c *Client) Key(name string) string {
	return c.cfg.KeyPrefix + name
}

// Set пишет value под Key(name) с TTL из конфига.
func (c *Client) Set(ctx context.Context, name string, value []byte) error {
	if err := c.rdb.Set(ctx, c.Key(name), value, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", name, err)
	}
	return nil
}

// Get возвращает (nil, nil), если ключа нет.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, c.Key(name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", name, err)
	}
	return b, nil
}

// Ping проверяет соединение.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close закрывает пул соединений.
func (c *Client) Close() error {
	return c.rdb.Close()
}
