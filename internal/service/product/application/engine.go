// internal/service/product/application/engine.go
package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/service/product/domain"
	"fulfillment/internal/service/product/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReservationEngine 负责从库存账本中分配、预留和释放具体的库存实例。
// 同一商品的分配过程通过 Locker 串行化，账本写入在同一个事务里完成。
type ReservationEngine struct {
	repo   domain.LedgerRepository
	locker port.Locker
	tracer trace.Tracer
	now    func() time.Time
}

func NewReservationEngine(repo domain.LedgerRepository, locker port.Locker, tracer trace.Tracer) *ReservationEngine {
	return &ReservationEngine{repo: repo, locker: locker, tracer: tracer, now: time.Now}
}

// Reserve 为订单预留库存实例，返回被预留的实例 ID。
// 同一订单已有 ACTIVE 预留时直接返回原有结果，不会重复分配；
// 请求的订单版本更高时，预留的版本随之提升。
func (e *ReservationEngine) Reserve(ctx context.Context, req domain.ReservationRequest) (ids []string, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.number", req.OrderNumber),
		attribute.Int64("order.version", req.OrderVersion),
		attribute.Int("lines", len(req.Lines)),
	)

	result := "success"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reservation failed")
			result = reserveFailureLabel(err)
		}
		reservationsTotal.WithLabelValues(result).Inc()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 1. 幂等：重试或超时后的重复请求直接拿到上一次的结果
	if existing, err := e.repo.FindActiveReservation(ctx, req.OrderNumber); err == nil {
		if existing.OrderVersion >= req.OrderVersion {
			result = "replayed"
			span.AddEvent("active reservation replayed")
			return existing.ProductItemIDs, nil
		}
	} else if !errors.Is(err, domain.ErrReservationNotFound) {
		return nil, errors.Wrap(err, "lookup active reservation")
	}

	// 2. 按商品 ref 排序后加锁，避免不同订单之间死锁；分配仍按请求顺序
	lines := req.Merged()
	unlock, err := e.lockProducts(ctx, lines)
	if err != nil {
		return nil, err
	}
	defer unlock()

	replayed := false
	err = e.repo.WithTx(ctx, func(tx domain.LedgerRepository) error {
		if existing, err := tx.FindActiveReservation(ctx, req.OrderNumber); err == nil {
			ids, replayed = existing.ProductItemIDs, true
			return claim(ctx, tx, existing, req.OrderVersion)
		} else if !errors.Is(err, domain.ErrReservationNotFound) {
			return err
		}

		allocated, err := e.allocate(ctx, tx, lines)
		if err != nil {
			return err
		}

		at := e.now()
		flipped, err := tx.MarkReserved(ctx, allocated, req.OrderNumber, at)
		if err != nil {
			return err
		}
		if flipped != int64(len(allocated)) {
			return errors.Errorf("reserved %d of %d selected item instances, aborting", flipped, len(allocated))
		}
		if err := tx.CreateReservation(ctx, domain.NewReservation(req.OrderNumber, req.OrderVersion, allocated, at)); err != nil {
			return err
		}
		ids = allocated
		return nil
	})

	// 同一订单的并发请求抢先写入了预留记录
	if errors.Is(err, domain.ErrReservationExists) {
		replayed = true
		err = e.repo.WithTx(ctx, func(tx domain.LedgerRepository) error {
			existing, err := tx.FindActiveReservation(ctx, req.OrderNumber)
			if err != nil {
				return errors.Wrap(err, "lookup concurrent reservation")
			}
			ids = existing.ProductItemIDs
			return claim(ctx, tx, existing, req.OrderVersion)
		})
	}
	if err != nil {
		return nil, err
	}

	if replayed {
		result = "replayed"
		span.AddEvent("active reservation replayed")
		return ids, nil
	}
	itemsReservedTotal.Add(float64(len(ids)))
	span.SetAttributes(attribute.StringSlice("reserved.ids", ids))
	logger.Ctx(ctx).Info().
		Str("order_number", req.OrderNumber).
		Int64("order_version", req.OrderVersion).
		Int("instances", len(ids)).
		Msg("✅ item instances reserved")
	return ids, nil
}

func claim(ctx context.Context, tx domain.LedgerRepository, res *domain.Reservation, orderVersion int64) error {
	if orderVersion <= res.OrderVersion {
		return nil
	}
	return tx.ClaimReservation(ctx, res.ID, orderVersion)
}

// allocate 为每一行挑选前 count 个可用实例。未知商品跳过；任一行不足则整体失败。
func (e *ReservationEngine) allocate(ctx context.Context, tx domain.LedgerRepository, lines []domain.ReservationLine) ([]string, error) {
	var allocated []string
	for _, line := range lines {
		if _, err := tx.FindProduct(ctx, line.ProductRef); err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				logger.Ctx(ctx).Warn().Str("product_ref", line.ProductRef).Msg("unknown product skipped during reservation")
				continue
			}
			return nil, err
		}

		items, err := tx.ListAvailable(ctx, line.ProductRef, line.Count)
		if err != nil {
			return nil, err
		}
		if len(items) < line.Count {
			return nil, errors.Wrapf(domain.ErrInsufficientInventory, "product %s: requested %d, available %d", line.ProductRef, line.Count, len(items))
		}
		for _, item := range items {
			allocated = append(allocated, item.ID)
		}
	}
	if len(allocated) == 0 {
		return nil, domain.ErrEmptyReservation
	}
	return allocated, nil
}

func (e *ReservationEngine) lockProducts(ctx context.Context, lines []domain.ReservationLine) (func(), error) {
	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	refs := make([]string, len(lines))
	for i, line := range lines {
		refs[i] = line.ProductRef
	}
	sort.Strings(refs)
	for _, ref := range refs {
		unlock, err := e.locker.Lock(ctx, ref)
		if err != nil {
			release()
			return nil, errors.Wrapf(err, "lock product %s", ref)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// Unlock 释放订单的有效预留，不看版本。没有有效预留时什么也不做。
func (e *ReservationEngine) Unlock(ctx context.Context, orderNumber string) error {
	return e.unlock(ctx, orderNumber, nil)
}

// UnlockUpTo 只在有效预留的版本不高于 orderVersion 时释放它。
// 更高版本的 accept 已经接管的预留保持不动。
func (e *ReservationEngine) UnlockUpTo(ctx context.Context, orderNumber string, orderVersion int64) error {
	return e.unlock(ctx, orderNumber, &orderVersion)
}

func (e *ReservationEngine) unlock(ctx context.Context, orderNumber string, upTo *int64) error {
	ctx, span := e.tracer.Start(ctx, "engine.Unlock")
	defer span.End()
	span.SetAttributes(attribute.String("order.number", orderNumber))
	if upTo != nil {
		span.SetAttributes(attribute.Int64("order.up_to_version", *upTo))
	}

	if strings.TrimSpace(orderNumber) == "" {
		verr := &domain.ValidationError{}
		verr.Add("orderNumber", "must not be blank")
		return verr
	}

	var (
		released int64
		held     bool
	)
	err := e.repo.WithTx(ctx, func(tx domain.LedgerRepository) error {
		res, err := tx.FindActiveReservation(ctx, orderNumber)
		if errors.Is(err, domain.ErrReservationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if upTo != nil && !res.ReleasableUpTo(*upTo) {
			held = true
			return nil
		}
		at := e.now()
		if released, err = tx.MarkAvailable(ctx, res.ProductItemIDs, orderNumber, at); err != nil {
			return err
		}
		return tx.ReleaseReservation(ctx, res.ID, at)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unlock failed")
		return errors.Wrap(err, "unlock reservation")
	}

	if held {
		span.AddEvent("reservation held by a newer order version")
		logger.Ctx(ctx).Info().Str("order_number", orderNumber).Int64("up_to_version", *upTo).Msg("reservation kept, claimed by a newer order version")
		return nil
	}
	if released == 0 {
		span.AddEvent("nothing to release")
		return nil
	}
	itemsReleasedTotal.Add(float64(released))
	logger.Ctx(ctx).Info().Str("order_number", orderNumber).Int64("instances", released).Msg("item instances released")
	return nil
}

func reserveFailureLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return "insufficient"
	case errors.Is(err, domain.ErrEmptyReservation):
		return "empty"
	default:
		return "error"
	}
}
