// internal/service/push/hub.go
package push

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// wildcard 订阅所有订单的事件
const wildcard = ""

// Hub 维护所有活跃的订阅，并负责按订单号分发消息
type Hub struct {
	lock    sync.RWMutex
	clients map[string]map[*Client]struct{} // orderNumber -> 订阅者
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Register 登记一个订阅者
func (h *Hub) Register(c *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	set, ok := h.clients[c.orderNumber]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.orderNumber] = set
	}
	set[c] = struct{}{}
	log.Debug().Str("order_number", c.orderNumber).Msg("subscriber registered")
}

// Unregister 移除订阅者并关闭它的发送队列，可以重复调用
func (h *Hub) Unregister(c *Client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	set, ok := h.clients[c.orderNumber]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.orderNumber)
	}
}

// Publish 把消息发给订阅了该订单的客户端以及通配订阅者，返回送达的数量。
// 发送队列已满的客户端会被丢弃。
func (h *Hub) Publish(orderNumber string, payload []byte) int {
	delivered := 0
	var slow []*Client

	// 持有读锁期间 Unregister 无法关闭发送队列
	h.lock.RLock()
	deliver := func(set map[*Client]struct{}) {
		for c := range set {
			select {
			case c.send <- payload:
				delivered++
			default:
				slow = append(slow, c)
			}
		}
	}
	deliver(h.clients[orderNumber])
	if orderNumber != wildcard {
		deliver(h.clients[wildcard])
	}
	h.lock.RUnlock()

	for _, c := range slow {
		log.Warn().Str("order_number", c.orderNumber).Msg("subscriber too slow, dropping")
		h.Unregister(c)
	}
	return delivered
}

// Subscribers 当前订阅某个订单的客户端数量
func (h *Hub) Subscribers(orderNumber string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[orderNumber])
}
