// internal/service/product/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"fulfillment/internal/pkg/database"
	"fulfillment/internal/service/product/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository 是 LedgerRepository 的 GORM 实现
type GormLedgerRepository struct {
	db *gorm.DB
}

func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

func (r *GormLedgerRepository) WithTx(ctx context.Context, fn func(repo domain.LedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormLedgerRepository{db: tx})
	})
}

func (r *GormLedgerRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(fromDomainProduct(p)).Error, "insert product")
}

func (r *GormLedgerRepository) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, errors.Wrap(err, "query product")
	}
	return toDomainProduct(&model), nil
}

func (r *GormLedgerRepository) CountItems(ctx context.Context, productRef string) (int, int, error) {
	var row struct {
		Total     int
		Available int
	}
	err := r.db.WithContext(ctx).Model(&ItemInstanceModel{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN availability = ? THEN 1 ELSE 0 END), 0) AS available", string(domain.Available)).
		Where("product_ref = ?", productRef).
		Scan(&row).Error
	if err != nil {
		return 0, 0, errors.Wrap(err, "count item instances")
	}
	return row.Available, row.Total, nil
}

func (r *GormLedgerRepository) AddItem(ctx context.Context, item *domain.ItemInstance) error {
	err := r.db.WithContext(ctx).Create(fromDomainItem(item)).Error
	if database.IsDuplicateKey(err) {
		return domain.ErrDuplicateSerialNumber
	}
	return errors.Wrap(err, "insert item instance")
}

func (r *GormLedgerRepository) FindItem(ctx context.Context, id string) (*domain.ItemInstance, error) {
	var model ItemInstanceModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "query item instance")
	}
	return toDomainItem(&model), nil
}

// ListAvailable 在事务里使用 SELECT ... FOR UPDATE 锁住候选行
func (r *GormLedgerRepository) ListAvailable(ctx context.Context, productRef string, limit int) ([]*domain.ItemInstance, error) {
	var models []*ItemInstanceModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_ref = ? AND availability = ?", productRef, string(domain.Available)).
		Order("seq").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list available item instances")
	}
	items := make([]*domain.ItemInstance, len(models))
	for i, m := range models {
		items[i] = toDomainItem(m)
	}
	return items, nil
}

func (r *GormLedgerRepository) MarkReserved(ctx context.Context, ids []string, orderNumber string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&ItemInstanceModel{}).
		Where("id IN ? AND availability = ?", ids, string(domain.Available)).
		Updates(map[string]interface{}{
			"availability":             string(domain.Reserved),
			"reservation_time_date":    at,
			"reservation_order_number": orderNumber,
			"updated_at":               at,
		})
	return res.RowsAffected, errors.Wrap(res.Error, "mark item instances reserved")
}

func (r *GormLedgerRepository) MarkAvailable(ctx context.Context, ids []string, orderNumber string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&ItemInstanceModel{}).
		Where("id IN ? AND availability = ? AND reservation_order_number = ?", ids, string(domain.Reserved), orderNumber).
		Updates(map[string]interface{}{
			"availability":             string(domain.Available),
			"reservation_time_date":    nil,
			"reservation_order_number": "",
			"updated_at":               at,
		})
	return res.RowsAffected, errors.Wrap(res.Error, "mark item instances available")
}

func (r *GormLedgerRepository) CreateReservation(ctx context.Context, res *domain.Reservation) error {
	err := r.db.WithContext(ctx).Create(fromDomainReservation(res)).Error
	if database.IsDuplicateKey(err) {
		return domain.ErrReservationExists
	}
	return errors.Wrap(err, "insert reservation")
}

func (r *GormLedgerRepository) FindActiveReservation(ctx context.Context, orderNumber string) (*domain.Reservation, error) {
	var model ReservationModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("active_order_number = ?", orderNumber).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, errors.Wrap(err, "query reservation")
	}
	return toDomainReservation(&model), nil
}

func (r *GormLedgerRepository) ReleaseReservation(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("id = ? AND status = ?", id, string(domain.ReservationActive)).
		Updates(map[string]interface{}{
			"status":              string(domain.ReservationReleased),
			"active_order_number": nil,
			"released_at":         at,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "release reservation")
	}
	if res.RowsAffected == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *GormLedgerRepository) ClaimReservation(ctx context.Context, id string, orderVersion int64) error {
	err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("id = ? AND status = ? AND order_version < ?", id, string(domain.ReservationActive), orderVersion).
		Update("order_version", orderVersion).Error
	return errors.Wrap(err, "claim reservation")
}

var _ domain.LedgerRepository = (*GormLedgerRepository)(nil)
