// internal/service/product/domain/product.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product 商品目录中的一项。库存以 ItemInstance 的形式单独跟踪。
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Categories  []string
	Tags        []string
	CreatedAt   time.Time
}

// NewProduct 工厂函数
func NewProduct(name, description string, price float64, categories, tags []string, now time.Time) (*Product, error) {
	name = strings.TrimSpace(name)
	verr := &ValidationError{}
	if name == "" {
		verr.Add("name", "must not be blank")
	}
	if price < 0 {
		verr.Add("price", "must not be negative")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return &Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Price:       price,
		Categories:  categories,
		Tags:        tags,
		CreatedAt:   now,
	}, nil
}

// ProductStock 商品以及它的库存统计
type ProductStock struct {
	Product
	AvailableCount int
	TotalCount     int
}
