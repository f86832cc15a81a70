package service

import (
	"context"
	"fmt"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
)

// 出货状态机允许的流转，付款状态不在此列（由金流核心单独维护）
var allowedTransitions = map[string][]string{
	order.StatusCreated:    {order.StatusProcessing, order.StatusCancelled},
	order.StatusProcessing: {order.StatusShipped, order.StatusCancelled},
	order.StatusShipped:    {order.StatusCompleted},
}

// OrderService 订单查询与出货状态维护
type OrderService struct {
	repo order.Repository
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository) *OrderService {
	return &OrderService{repo: repo}
}

// ListRecent 查询最新的订单记录
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}

// ListByUser 查询用户自己的订单
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// GetByID 查询订单
func (s *OrderService) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode 按订单编号查询
func (s *OrderService) GetByCode(ctx context.Context, code string) (*order.Order, error) {
	return s.repo.GetByCode(ctx, code)
}

// ListItems 查询订单明细
func (s *OrderService) ListItems(ctx context.Context, orderID int64) ([]*order.Item, error) {
	return s.repo.ListItems(ctx, orderID)
}

// ListHistory 查询订单状态变更记录
func (s *OrderService) ListHistory(ctx context.Context, orderID int64) ([]*order.StatusHistory, error) {
	return s.repo.ListHistory(ctx, orderID)
}

// ChangeStatus 推进出货状态并留下变更记录。
// 不合法的流转直接拒绝；目标状态与当前相同时视为幂等操作，不报错也不记录。
func (s *OrderService) ChangeStatus(ctx context.Context, orderID int64, to, note string) error {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.OrderStatus == to {
		return nil
	}
	if !transitionAllowed(o.OrderStatus, to) {
		return fmt.Errorf("不允许从 %s 转到 %s", o.OrderStatus, to)
	}
	if err := s.repo.UpdateOrderStatus(ctx, orderID, to); err != nil {
		return err
	}
	return s.repo.AppendStatusHistory(ctx, orderID, o.OrderStatus, to, note)
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
