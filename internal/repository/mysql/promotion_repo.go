package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/promotion"
)

type promotionRepo struct {
	db *gorm.DB
}

// NewPromotionRepository 创建促销活动仓储
func NewPromotionRepository(db *gorm.DB) promotion.Repository {
	return &promotionRepo{db: db}
}

func (r *promotionRepo) Create(ctx context.Context, p *promotion.Promotion) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *promotionRepo) GetByID(ctx context.Context, id int64) (*promotion.Promotion, error) {
	var p promotion.Promotion
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *promotionRepo) ListAll(ctx context.Context) ([]*promotion.Promotion, error) {
	var list []*promotion.Promotion
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *promotionRepo) Update(ctx context.Context, p *promotion.Promotion) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *promotionRepo) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).
		Where("promotion_id = ?", id).
		Delete(&promotion.PromotionProduct{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&promotion.Promotion{}, id).Error
}

func (r *promotionRepo) AddProduct(ctx context.Context, promotionID, productID int64) error {
	link := promotion.PromotionProduct{
		PromotionID: promotionID,
		ProductID:   productID,
	}
	return r.db.WithContext(ctx).Create(&link).Error
}

func (r *promotionRepo) RemoveProduct(ctx context.Context, promotionID, productID int64) error {
	return r.db.WithContext(ctx).
		Where("promotion_id = ? AND product_id = ?", promotionID, productID).
		Delete(&promotion.PromotionProduct{}).Error
}

// GetActiveByProduct 取商品当前进行中的活动；同一时刻多个活动时取最新建立的
func (r *promotionRepo) GetActiveByProduct(ctx context.Context, productID int64, at time.Time) (*promotion.Promotion, error) {
	var p promotion.Promotion
	err := r.db.WithContext(ctx).
		Joins("JOIN promotion_products pp ON pp.promotion_id = promotions.id").
		Where("pp.product_id = ?", productID).
		Where("promotions.status = ?", 1).
		Where("promotions.start_time <= ? AND promotions.end_time > ?", at, at).
		Order("promotions.id DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
