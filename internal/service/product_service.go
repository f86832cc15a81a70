package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
)

// ProductService 商品目录服务。前台只看得到上架中的商品，
// 下架商品对买家视同不存在（购物车读取时也会被剔除）。
type ProductService struct {
	repo product.Repository
}

func NewProductService(repo product.Repository) *ProductService {
	return &ProductService{repo: repo}
}

// ListStorefront 前台商品墙。platform / category 为空不过滤；
// 不认识的取值当作空处理，筛选参数不构成报错面。
func (s *ProductService) ListStorefront(ctx context.Context, platform, category string) ([]*product.Product, error) {
	if !product.ValidPlatform(platform) {
		platform = ""
	}
	if !product.ValidCategory(category) {
		category = ""
	}
	return s.repo.ListVisible(ctx, platform, category)
}

// GetVisible 前台商品详情，下架商品一律按查无处理
func (s *ProductService) GetVisible(ctx context.Context, id int64) (*product.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != product.StatusOnline {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

// ListAll 后台用，不分上下架
func (s *ProductService) ListAll(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListAll(ctx)
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, p *product.Product) error {
	return s.repo.Create(ctx, p)
}

func (s *ProductService) Update(ctx context.Context, p *product.Product) error {
	return s.repo.Update(ctx, p)
}

func (s *ProductService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
