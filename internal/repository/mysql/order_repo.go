package mysql

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储。
// 需要跟其他写入共用事务时，直接传入事务中的 *gorm.DB 即可。
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order, items []*order.Item) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return err
	}
	for _, it := range items {
		it.OrderID = o.ID
	}
	if len(items) > 0 {
		if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByCode(ctx context.Context, code string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).Where("order_code = ?", code).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetGrandTotal 对账用：只读应付金额字段本身，避免误用整单缓存
func (r *orderRepo) GetGrandTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).
		Select("grand_total").
		First(&o, orderID).Error; err != nil {
		return decimal.Zero, err
	}
	return o.GrandTotal, nil
}

// SetPaid 置为已付款。重复调用写入相同值，对账重放无副作用。
func (r *orderRepo) SetPaid(ctx context.Context, orderID int64, confirmedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&order.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_status":       order.PaymentPaid,
			"payment_confirmed_at": confirmedAt,
		}).Error
}

func (r *orderRepo) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&order.Order{}).
		Where("id = ?", orderID).
		Update("order_status", status).Error
}

// AppendStatusHistory 追加状态变更记录。
// from == to 属于正常情况（例如付款完成但出货状态不变），静默跳过，
// 保证表里永远不会出现自我转移的行。
func (r *orderRepo) AppendStatusHistory(ctx context.Context, orderID int64, from, to, note string) error {
	if from == to {
		return nil
	}
	h := order.StatusHistory{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		ChangedAt:  time.Now(),
	}
	return r.db.WithContext(ctx).Create(&h).Error
}

func (r *orderRepo) ListItems(ctx context.Context, orderID int64) ([]*order.Item, error) {
	var list []*order.Item
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListHistory(ctx context.Context, orderID int64) ([]*order.StatusHistory, error) {
	var list []*order.StatusHistory
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
