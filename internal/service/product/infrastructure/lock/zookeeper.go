package lock

import (
	"context"
	"net/url"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/zookeeper"

	"github.com/pkg/errors"
)

// ZookeeperLocker 多实例部署时按商品加分布式锁，锁节点为 /distributed_locks/product-<ref>
type ZookeeperLocker struct {
	conn zookeeper.Conn
}

func NewZookeeperLocker(conn zookeeper.Conn) *ZookeeperLocker {
	return &ZookeeperLocker{conn: conn}
}

func (l *ZookeeperLocker) Lock(ctx context.Context, key string) (func(), error) {
	dl, err := zookeeper.NewDistributedLock(l.conn, "product-"+url.PathEscape(key))
	if err != nil {
		return nil, errors.Wrapf(err, "prepare lock for %s", key)
	}
	if err := dl.Lock(ctx); err != nil {
		return nil, errors.Wrapf(err, "acquire lock for %s", key)
	}
	return func() {
		if err := dl.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("product_ref", key).Msg("failed to release zookeeper lock")
		}
	}, nil
}
