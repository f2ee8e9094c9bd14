package nacos

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Resolver 把逻辑服务名解析为 http://ip:port。
// 同一时刻对同一服务的并发解析会被合并成一次 Nacos 查询。
type Resolver struct {
	client      *Client
	serviceName string
	group       singleflight.Group
}

func NewResolver(client *Client, serviceName string) *Resolver {
	return &Resolver{client: client, serviceName: serviceName}
}

func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	ch := r.group.DoChan(r.serviceName, func() (any, error) {
		ip, port, err := r.client.DiscoverServiceInstance(r.serviceName)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("http://%s:%d", ip, port), nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
