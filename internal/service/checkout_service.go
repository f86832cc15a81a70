package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/promotion"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
)

// CheckoutService 结账：把购物车转成订单，并产生送往金流网关的表单。
// 订单的应付金额在这里一次算定，之后对账只认库里这个数。
type CheckoutService struct {
	db            *gorm.DB
	cart          *CartService
	promotionRepo promotion.Repository
	signer        *gateway.Signer
	payCfg        *config.PaymentConfig
}

// NewCheckoutService 创建结账服务
func NewCheckoutService(db *gorm.DB, cart *CartService, promotionRepo promotion.Repository, signer *gateway.Signer, payCfg *config.PaymentConfig) *CheckoutService {
	return &CheckoutService{
		db:            db,
		cart:          cart,
		promotionRepo: promotionRepo,
		signer:        signer,
		payCfg:        payCfg,
	}
}

// Checkout 把用户当前购物车转成一张待付款订单
func (s *CheckoutService) Checkout(ctx context.Context, userID int64) (*order.Order, error) {
	cartItems, err := s.cart.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		return nil, errors.New("购物车是空的")
	}

	now := time.Now()
	var created *order.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total := decimal.Zero
		items := make([]*order.Item, 0, len(cartItems))

		for _, ci := range cartItems {
			// 锁定商品行，避免超卖
			var p product.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&p, ci.Product.ID).Error; err != nil {
				return fmt.Errorf("商品不存在: %w", err)
			}
			if p.Status != product.StatusOnline {
				return fmt.Errorf("商品 %s 已下架", p.Name)
			}
			if p.Stock < ci.Quantity {
				return fmt.Errorf("商品 %s 库存不足", p.Name)
			}

			unit := p.Price
			// 有进行中的促销活动时按折扣计价
			promo, err := s.promotionRepo.GetActiveByProduct(ctx, p.ID, now)
			if err != nil {
				return err
			}
			if promo != nil {
				unit = unit.Mul(decimal.NewFromFloat(promo.Discount)).Round(2)
			}

			subtotal := unit.Mul(decimal.NewFromInt(ci.Quantity))
			total = total.Add(subtotal)
			items = append(items, &order.Item{
				ProductID:   p.ID,
				ProductName: p.Name,
				UnitPrice:   unit,
				Quantity:    ci.Quantity,
				Subtotal:    subtotal,
			})

			if err := tx.Model(&p).Update("stock", p.Stock-ci.Quantity).Error; err != nil {
				return err
			}
		}

		o := &order.Order{
			// 先占位，拿到自增 ID 后立刻改成正式编号
			OrderCode:     fmt.Sprintf("TMP%d%d", userID, now.UnixNano()%1e8),
			UserID:        userID,
			GrandTotal:    total,
			OrderStatus:   order.StatusCreated,
			PaymentStatus: order.PaymentUnpaid,
		}
		orderRepo := mysql.NewOrderRepository(tx)
		if err := orderRepo.Create(ctx, o, items); err != nil {
			return err
		}

		// OR + 10 位流水号，基于自增 ID，保证唯一且可读
		o.OrderCode = fmt.Sprintf("OR%010d", o.ID)
		if err := tx.Model(&order.Order{}).
			Where("id = ?", o.ID).
			Update("order_code", o.OrderCode).Error; err != nil {
			return err
		}

		if err := orderRepo.AppendStatusHistory(ctx, o.ID, "", order.StatusCreated, "订单建立"); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 下单成功后清空购物车；清不掉不影响订单
	_ = s.cart.Clear(ctx, userID)
	return created, nil
}

// BuildPaymentForm 产生跳转网关收银台所需的表单栏位（含检核码）。
// 前端拿到后以 POST 送往 CheckoutURL。
func (s *CheckoutService) BuildPaymentForm(o *order.Order) url.Values {
	form := url.Values{}
	form.Set("MerchantID", s.payCfg.MerchantID)
	form.Set("MerchantTradeNo", o.OrderCode)
	form.Set("MerchantTradeDate", time.Now().Format("2006/01/02 15:04:05"))
	form.Set("TradeAmt", o.GrandTotal.String())
	form.Set("ReturnURL", s.payCfg.ReturnURL)
	form.Set("NotifyURL", s.payCfg.NotifyURL)
	form.Set(gateway.SignField, s.signer.Sign(form))
	return form
}

// CheckoutURL 网关收银台地址
func (s *CheckoutService) CheckoutURL() string {
	return s.payCfg.CheckoutURL
}
