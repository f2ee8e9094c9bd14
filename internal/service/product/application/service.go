// internal/service/product/application/service.go
package application

import (
	"context"
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/product/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CatalogService 商品目录与入库操作
type CatalogService struct {
	repo   domain.LedgerRepository
	tracer trace.Tracer
	now    func() time.Time
}

func NewCatalogService(repo domain.LedgerRepository, tracer trace.Tracer) *CatalogService {
	return &CatalogService{repo: repo, tracer: tracer, now: time.Now}
}

func (s *CatalogService) CreateProduct(ctx context.Context, req CreateProductRequest) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateProduct")
	defer span.End()

	p, err := domain.NewProduct(req.Name, req.Description, req.Price, req.Categories, req.Tags, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save product")
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("product_ref", p.ID).Str("name", p.Name).Msg("product created")
	return p, nil
}

// GetProduct 返回商品和它的库存统计
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.ProductStock, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.ref", id))

	p, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	available, total, err := s.repo.CountItems(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &domain.ProductStock{Product: *p, AvailableCount: available, TotalCount: total}, nil
}

// AddItemInstance 为商品入库一个新的实例，序列号在商品内唯一
func (s *CatalogService) AddItemInstance(ctx context.Context, productID, serialNumber string) (*domain.ItemInstance, error) {
	ctx, span := s.tracer.Start(ctx, "app.AddItemInstance")
	defer span.End()
	span.SetAttributes(attribute.String("product.ref", productID), attribute.String("serial.number", serialNumber))

	if _, err := s.repo.FindProduct(ctx, productID); err != nil {
		return nil, err
	}
	item, err := domain.NewItemInstance(productID, serialNumber, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddItem(ctx, item); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add item")
		return nil, err
	}
	return item, nil
}

func (s *CatalogService) GetItem(ctx context.Context, id string) (*domain.ItemInstance, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetItem")
	defer span.End()
	return s.repo.FindItem(ctx, id)
}
