package promotion

import (
	"context"
	"time"
)

// Promotion 促销活动模型
type Promotion struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"size:128;not null"`          // 活动名称
	Description string    `gorm:"size:512"`                   // 活动描述
	StartTime   time.Time `gorm:"index"`                      // 开始时间
	EndTime     time.Time `gorm:"index"`                      // 结束时间
	Discount    float64   `gorm:"type:decimal(5,2);not null"` // 折扣（0.1-1.0，如 0.8 表示 8 折）
	Status      int       `gorm:"index;default:0"`            // 状态：0-未开始 1-进行中 2-已结束 3-已取消
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PromotionProduct 活动商品关联表（多对多）
type PromotionProduct struct {
	ID          int64 `gorm:"primaryKey"`
	PromotionID int64 `gorm:"index;not null"`
	ProductID   int64 `gorm:"index;not null"`
	CreatedAt   time.Time
}

// Repository 促销活动仓储接口
type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	GetByID(ctx context.Context, id int64) (*Promotion, error)
	ListAll(ctx context.Context) ([]*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id int64) error

	AddProduct(ctx context.Context, promotionID, productID int64) error
	RemoveProduct(ctx context.Context, promotionID, productID int64) error
	// GetActiveByProduct 取指定商品在 at 时刻正在进行中的活动，没有则返回 nil
	GetActiveByProduct(ctx context.Context, productID int64, at time.Time) (*Promotion, error)
}
