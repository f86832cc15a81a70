package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
)

type auditRepo struct {
	db *gorm.DB
}

// NewAuditRepository 创建金流审计仓储
func NewAuditRepository(db *gorm.DB) payment.AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, a *payment.Audit) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *auditRepo) ListByOrder(ctx context.Context, orderID int64) ([]*payment.Audit, error) {
	var list []*payment.Audit
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]*payment.Audit, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*payment.Audit
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
