package zookeeper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryConn 是一个只实现锁所需语义的内存版 ZooKeeper
type memoryConn struct {
	mu       sync.Mutex
	nodes    map[string]bool
	watchers map[string][]chan zk.Event
	seq      int
}

func newMemoryConn() *memoryConn {
	return &memoryConn{nodes: map[string]bool{}, watchers: map[string][]chan zk.Event{}}
}

func (c *memoryConn) Exists(path string) (bool, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[path], &zk.Stat{}, nil
}

func (c *memoryConn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan zk.Event, 1)
	c.watchers[path] = append(c.watchers[path], ch)
	return c.nodes[path], &zk.Stat{}, ch, nil
}

func (c *memoryConn) Create(path string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nodes[path] {
		return "", zk.ErrNodeExists
	}
	c.nodes[path] = true
	return path, nil
}

func (c *memoryConn) CreateProtectedEphemeralSequential(path string, _ []byte, _ []zk.ACL) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	dir := path[:strings.LastIndex(path, "/")]
	name := fmt.Sprintf("_c_%d-%s%010d", 100-c.seq, path[len(dir)+1:], c.seq)
	full := dir + "/" + name
	c.nodes[full] = true
	return full, nil
}

func (c *memoryConn) Children(path string) ([]string, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for node := range c.nodes {
		if strings.HasPrefix(node, path+"/") && !strings.Contains(node[len(path)+1:], "/") {
			out = append(out, node[len(path)+1:])
		}
	}
	return out, &zk.Stat{}, nil
}

func (c *memoryConn) Delete(path string, _ int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.nodes[path] {
		return zk.ErrNoNode
	}
	delete(c.nodes, path)
	for _, ch := range c.watchers[path] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
	}
	delete(c.watchers, path)
	return nil
}

func TestDistributedLockSerializesHolders(t *testing.T) {
	conn := newMemoryConn()

	first, err := NewDistributedLock(conn, "product-p1")
	require.NoError(t, err)
	second, err := NewDistributedLock(conn, "product-p1")
	require.NoError(t, err)

	require.NoError(t, first.Lock(context.Background()))

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		assert.NoError(t, second.Lock(context.Background()))
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first still holds it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Unlock())

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
	require.NoError(t, second.Unlock())
}

func TestDistributedLockHonoursContext(t *testing.T) {
	conn := newMemoryConn()
	holder, err := NewDistributedLock(conn, "product-p2")
	require.NoError(t, err)
	waiter, err := NewDistributedLock(conn, "product-p2")
	require.NoError(t, err)

	require.NoError(t, holder.Lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = waiter.Lock(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// 放弃排队后，等待者的节点应当被删除
	children, _, _ := conn.Children(lockRoot + "/product-p2")
	assert.Len(t, children, 1)
}

func TestUnlockWithoutLock(t *testing.T) {
	l, err := NewDistributedLock(newMemoryConn(), "product-p3")
	require.NoError(t, err)
	assert.Error(t, l.Unlock())
}
