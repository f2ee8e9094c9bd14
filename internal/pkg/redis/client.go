// internal/pkg/redis/client.go
package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client 封装了 go-redis 客户端
type Client struct {
	rdb *goredis.Client
}

// NewClient 创建客户端并立即 PING 一次，连接不可用时直接返回错误
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}

	log.Info().Str("addr", addr).Msg("✅ Successfully connected to Redis.")
	return &Client{rdb: rdb}, nil
}

// NewClientFrom 包装一个已有的 go-redis 客户端
func NewClientFrom(rdb *goredis.Client) *Client {
	return &Client{rdb: rdb}
}

// GetClient 返回底层客户端
func (c *Client) GetClient() *goredis.Client {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
