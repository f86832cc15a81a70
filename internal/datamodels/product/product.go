package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 上下架状态
const (
	StatusOffline = 0
	StatusOnline  = 1
)

// 商品所属平台
const (
	PlatformPC     = "pc"
	PlatformPS5    = "ps5"
	PlatformSwitch = "switch"
	PlatformXbox   = "xbox"
)

// 商品分类
const (
	CategoryGame       = "game"       // 游戏
	CategoryPeripheral = "peripheral" // 周边
	CategoryFigure     = "figure"     // 模型
)

// Product 商品模型
type Product struct {
	ID          int64           `gorm:"primaryKey"`
	Name        string          `gorm:"size:128;not null"`
	Description string          `gorm:"size:512"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Stock       int64           `gorm:"not null"`
	Platform    string          `gorm:"size:32;index"`
	Category    string          `gorm:"size:32;index"`
	Status      int             `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidPlatform 是否为认识的平台取值
func ValidPlatform(p string) bool {
	switch p {
	case PlatformPC, PlatformPS5, PlatformSwitch, PlatformXbox:
		return true
	}
	return false
}

// ValidCategory 是否为认识的分类取值
func ValidCategory(c string) bool {
	switch c {
	case CategoryGame, CategoryPeripheral, CategoryFigure:
		return true
	}
	return false
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	// ListVisible 前台商品墙：只返回上架商品，platform / category
	// 传空串表示不过滤
	ListVisible(ctx context.Context, platform, category string) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
