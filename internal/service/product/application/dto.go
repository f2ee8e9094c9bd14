// internal/service/product/application/dto.go
package application

// CreateProductRequest 创建商品用例的输入
type CreateProductRequest struct {
	Name        string
	Description string
	Price       float64
	Categories  []string
	Tags        []string
}
