// internal/service/order/infrastructure/pending_store.go
package infrastructure

import (
	"context"
	"sort"
	"sync"

	"fulfillment/internal/pkg/redis"
	"fulfillment/internal/service/order/domain/port"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const pendingReservationKey = "reservation:pending"

// RedisPendingStore 使用 Redis Set 记录等待对账的订单号，多个实例共享同一份数据
type RedisPendingStore struct {
	rdb *goredis.Client
	key string
}

func NewRedisPendingStore(client *redis.Client) *RedisPendingStore {
	return &RedisPendingStore{rdb: client.GetClient(), key: pendingReservationKey}
}

var _ port.PendingReservationStore = (*RedisPendingStore)(nil)

func (s *RedisPendingStore) Add(ctx context.Context, orderNumber string) error {
	return errors.Wrap(s.rdb.SAdd(ctx, s.key, orderNumber).Err(), "redis sadd")
}

func (s *RedisPendingStore) Members(ctx context.Context) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis smembers")
	}
	sort.Strings(members)
	return members, nil
}

func (s *RedisPendingStore) Remove(ctx context.Context, orderNumber string) error {
	return errors.Wrap(s.rdb.SRem(ctx, s.key, orderNumber).Err(), "redis srem")
}

// MemoryPendingStore 单实例或测试使用
type MemoryPendingStore struct {
	mu      sync.Mutex
	members map[string]struct{}
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{members: make(map[string]struct{})}
}

var _ port.PendingReservationStore = (*MemoryPendingStore)(nil)

func (s *MemoryPendingStore) Add(_ context.Context, orderNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[orderNumber] = struct{}{}
	return nil
}

func (s *MemoryPendingStore) Members(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryPendingStore) Remove(_ context.Context, orderNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, orderNumber)
	return nil
}
