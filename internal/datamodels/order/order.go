package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 出货状态机（与付款状态互相独立，已付款的订单可能尚未出货）
const (
	StatusCreated    = "created"    // 已建立，待付款/备货
	StatusProcessing = "processing" // 备货中
	StatusShipped    = "shipped"    // 已出货
	StatusCompleted  = "completed"  // 已完成
	StatusCancelled  = "cancelled"  // 已取消
)

// 付款状态机：unpaid -> paid，单向，本系统不做冲正
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// Order 订单模型
// GrandTotal 是对账时唯一可信的应付金额，金流核心只会改动
// PaymentStatus / PaymentConfirmedAt 两个字段，出货状态由后台与出货流程维护。
type Order struct {
	ID                 int64           `gorm:"primaryKey"`
	OrderCode          string          `gorm:"uniqueIndex;size:12;not null"` // OR + 10 位流水号
	UserID             int64           `gorm:"index;not null"`
	GrandTotal         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	OrderStatus        string          `gorm:"size:32;index;not null"`
	PaymentStatus      string          `gorm:"size:16;index;not null"`
	PaymentConfirmedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Item 订单明细
type Item struct {
	ID          int64           `gorm:"primaryKey"`
	OrderID     int64           `gorm:"index;not null"`
	ProductID   int64           `gorm:"index;not null"`
	ProductName string          `gorm:"size:128;not null"` // 下单当下的商品名快照
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity    int64           `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time
}

// StatusHistory 出货状态变更记录，只追加不修改。
// 仓储层保证 FromStatus != ToStatus，相同状态的写入会被静默跳过。
type StatusHistory struct {
	ID         int64     `gorm:"primaryKey"`
	OrderID    int64     `gorm:"index;not null"`
	FromStatus string    `gorm:"size:32;not null"`
	ToStatus   string    `gorm:"size:32;not null"`
	Note       string    `gorm:"size:255"`
	ChangedAt  time.Time `gorm:"index;not null"`
}

// Repository 订单仓储接口
type Repository interface {
	Create(ctx context.Context, o *Order, items []*Item) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByCode(ctx context.Context, code string) (*Order, error)
	// GetGrandTotal 重新从库里读应付金额，对账时不允许用任何缓存值
	GetGrandTotal(ctx context.Context, orderID int64) (decimal.Decimal, error)
	// SetPaid 将付款状态置为已付款，重复设置相同值无副作用
	SetPaid(ctx context.Context, orderID int64, confirmedAt time.Time) error
	// UpdateOrderStatus 更新出货状态（不经手付款状态）
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	// AppendStatusHistory 追加状态变更记录，from == to 时静默跳过
	AppendStatusHistory(ctx context.Context, orderID int64, from, to, note string) error

	ListItems(ctx context.Context, orderID int64) ([]*Item, error)
	ListHistory(ctx context.Context, orderID int64) ([]*StatusHistory, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
}
