// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"

	"fulfillment/internal/service/order/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

var _ domain.OrderRepository = (*GormOrderRepository)(nil)

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	// 关联的订单行和地址会一并插入
	return errors.Wrap(r.db.WithContext(ctx).Create(fromDomainOrder(order)).Error, "insert order")
}

func (r *GormOrderRepository) find(ctx context.Context, query string, args ...interface{}) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Address").
		Where(query, args...).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "query order")
	}
	return toDomainOrder(&model), nil
}

func (r *GormOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return r.find(ctx, "order_number = ?", orderNumber)
}

func (r *GormOrderRepository) FindByNumberAndVersion(ctx context.Context, orderNumber string, version int64) (*domain.Order, error) {
	return r.find(ctx, "order_number = ? AND version = ?", orderNumber, version)
}

// Update 使用 version 做条件更新，RowsAffected 为 0 说明订单不存在或已被并发修改
func (r *GormOrderRepository) Update(ctx context.Context, order *domain.Order, expectedVersion int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("order_number = ? AND version = ?", order.OrderNumber, expectedVersion).
			Updates(map[string]interface{}{
				"state":      string(order.State),
				"reason":     order.Reason,
				"version":    gorm.Expr("version + 1"),
				"updated_at": order.UpdatedAt,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update order")
		}
		if res.RowsAffected == 0 {
			return domain.ErrOrderNotFound
		}

		// 订单行整体替换
		if err := tx.Where("order_number = ?", order.OrderNumber).Delete(&OrderLineModel{}).Error; err != nil {
			return errors.Wrap(err, "delete order lines")
		}
		if lines := fromDomainLines(order); len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return errors.Wrap(err, "insert order lines")
			}
		}
		addr := fromDomainAddress(order)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&addr).Error; err != nil {
			return errors.Wrap(err, "upsert order address")
		}
		return nil
	})
	if err != nil {
		return err
	}
	order.Version = expectedVersion + 1
	return nil
}

func (r *GormOrderRepository) Delete(ctx context.Context, orderNumber string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("order_number = ?", orderNumber).Delete(&OrderModel{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "delete order")
		}
		if res.RowsAffected == 0 {
			return domain.ErrOrderNotFound
		}
		if err := tx.Where("order_number = ?", orderNumber).Delete(&OrderLineModel{}).Error; err != nil {
			return errors.Wrap(err, "delete order lines")
		}
		return errors.Wrap(tx.Where("order_number = ?", orderNumber).Delete(&OrderAddressModel{}).Error, "delete order address")
	})
}
