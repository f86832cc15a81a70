package service

import (
	"context"
	"fmt"
	"strconv"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
)

const redisCartKey = "gamespace:cart:%d" // userID

// CartItem 购物车里的一项（已带出商品信息）
type CartItem struct {
	Product  *product.Product `json:"product"`
	Quantity int64            `json:"quantity"`
}

// CartService 购物车服务，内容放 Redis hash：field 为商品 ID，value 为数量
type CartService struct {
	redis       radix.Client
	productRepo product.Repository
}

// NewCartService 创建购物车服务
func NewCartService(redis radix.Client, productRepo product.Repository) *CartService {
	return &CartService{redis: redis, productRepo: productRepo}
}

// SetItem 设置商品数量，qty <= 0 时移除
func (s *CartService) SetItem(ctx context.Context, userID, productID, qty int64) error {
	key := fmt.Sprintf(redisCartKey, userID)
	if qty <= 0 {
		return s.redis.Do(radix.FlatCmd(nil, "HDEL", key, productID))
	}
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("商品不存在: %w", err)
	}
	if p.Status != product.StatusOnline {
		return fmt.Errorf("商品已下架")
	}
	return s.redis.Do(radix.FlatCmd(nil, "HSET", key, productID, qty))
}

// List 列出购物车内容，已下架的商品顺手清掉
func (s *CartService) List(ctx context.Context, userID int64) ([]*CartItem, error) {
	key := fmt.Sprintf(redisCartKey, userID)
	var raw map[string]string
	if err := s.redis.Do(radix.Cmd(&raw, "HGETALL", key)); err != nil {
		return nil, err
	}

	items := make([]*CartItem, 0, len(raw))
	for field, val := range raw {
		productID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.ParseInt(val, 10, 64)
		if err != nil || qty <= 0 {
			continue
		}
		p, err := s.productRepo.GetByID(ctx, productID)
		if err != nil || p.Status != product.StatusOnline {
			_ = s.redis.Do(radix.FlatCmd(nil, "HDEL", key, productID))
			continue
		}
		items = append(items, &CartItem{Product: p, Quantity: qty})
	}
	return items, nil
}

// Clear 清空购物车
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	key := fmt.Sprintf(redisCartKey, userID)
	return s.redis.Do(radix.Cmd(nil, "DEL", key))
}
