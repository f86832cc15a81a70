package service

import (
	"context"
	"errors"
	"time"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/promotion"
)

// PromotionService 促销活动领域服务
// 负责：
//   - 活动的创建 / 更新 / 删除
//   - 活动与商品的关联维护
//   - 根据时间窗口自动更新活动状态

type PromotionService struct {
	promotionRepo promotion.Repository
	productRepo   product.Repository
}

// NewPromotionService 创建促销活动服务
func NewPromotionService(promotionRepo promotion.Repository, productRepo product.Repository) *PromotionService {
	return &PromotionService{
		promotionRepo: promotionRepo,
		productRepo:   productRepo,
	}
}

// CreatePromotionRequest 创建活动请求
type CreatePromotionRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Discount    float64   `json:"discount"`
	ProductIDs  []int64   `json:"product_ids"`
}

// CreatePromotion 创建促销活动并关联商品
func (s *PromotionService) CreatePromotion(ctx context.Context, req *CreatePromotionRequest) (*promotion.Promotion, error) {
	if req.Discount <= 0 || req.Discount > 1 {
		return nil, errors.New("折扣必须在 (0, 1] 之间")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, errors.New("结束时间必须晚于开始时间")
	}

	p := &promotion.Promotion{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Discount:    req.Discount,
		Status:      0, // 默认未开始
	}
	if err := s.promotionRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	for _, productID := range req.ProductIDs {
		if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
			// 商品不存在则跳过
			continue
		}
		if err := s.promotionRepo.AddProduct(ctx, p.ID, productID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ListAll 列出所有活动
func (s *PromotionService) ListAll(ctx context.Context) ([]*promotion.Promotion, error) {
	return s.promotionRepo.ListAll(ctx)
}

// GetByID 查询活动
func (s *PromotionService) GetByID(ctx context.Context, id int64) (*promotion.Promotion, error) {
	return s.promotionRepo.GetByID(ctx, id)
}

// Update 更新活动
func (s *PromotionService) Update(ctx context.Context, p *promotion.Promotion) error {
	return s.promotionRepo.Update(ctx, p)
}

// Delete 删除活动及其商品关联
func (s *PromotionService) Delete(ctx context.Context, id int64) error {
	return s.promotionRepo.Delete(ctx, id)
}

// RefreshStatus 根据时间窗口推进活动状态（后台定时或手动触发）
func (s *PromotionService) RefreshStatus(ctx context.Context) error {
	list, err := s.promotionRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, p := range list {
		if p.Status == 3 {
			continue // 已取消的不动
		}
		next := p.Status
		switch {
		case now.Before(p.StartTime):
			next = 0
		case now.After(p.EndTime):
			next = 2
		default:
			next = 1
		}
		if next != p.Status {
			p.Status = next
			if err := s.promotionRepo.Update(ctx, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActiveDiscount 商品当前有效折扣，没有活动时返回 1
func (s *PromotionService) ActiveDiscount(ctx context.Context, productID int64) (float64, error) {
	p, err := s.promotionRepo.GetActiveByProduct(ctx, productID, time.Now())
	if err != nil {
		return 1, err
	}
	if p == nil {
		return 1, nil
	}
	return p.Discount, nil
}
