package adapter

import "context"

// EndpointResolver 解析 product-service 的 base URL，例如 http://10.0.0.3:8082
type EndpointResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticEndpoint 未启用服务发现时直接使用配置中的地址
type StaticEndpoint string

func (e StaticEndpoint) Resolve(context.Context) (string, error) {
	return string(e), nil
}
