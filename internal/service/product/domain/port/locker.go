package port

import "context"

// Locker 按 key 互斥，用于串行化同一商品的库存分配
type Locker interface {
	// Lock 阻塞直到拿到锁或 ctx 结束，返回的 unlock 必须被调用
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
