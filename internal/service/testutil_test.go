package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
)

// newTestDB 开一个测试用的内存库。限制为单连接：
// 一是 :memory: 每个连接各是一个库，二是让并发事务串行化，
// 测试关注的是唯一索引仲裁的正确性而不是 sqlite 的锁。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&product.Product{},
		&order.Order{},
		&order.Item{},
		&order.StatusHistory{},
		&payment.Transaction{},
		&payment.Audit{},
	))
	return db
}

func testPaymentConfig() *config.PaymentConfig {
	cfg := config.DefaultConfig().Payment
	return &cfg
}

func seedOrder(t *testing.T, db *gorm.DB, code string, total string) *order.Order {
	t.Helper()
	amt, err := decimal.NewFromString(total)
	require.NoError(t, err)
	o := &order.Order{
		OrderCode:     code,
		UserID:        1,
		GrandTotal:    amt,
		OrderStatus:   order.StatusCreated,
		PaymentStatus: order.PaymentUnpaid,
	}
	require.NoError(t, db.Create(o).Error)
	return o
}

// signedForm 组一份带合法检核码的网关确认事件表单
func signedForm(signer *gateway.Signer, cfg *config.PaymentConfig, orderCode, tradeNo, amount, rtnCode, paymentDate string) url.Values {
	form := url.Values{}
	form.Set("MerchantID", cfg.MerchantID)
	form.Set("MerchantTradeNo", orderCode)
	form.Set("TradeNo", tradeNo)
	form.Set("TradeAmt", amount)
	form.Set("RtnCode", rtnCode)
	form.Set("RtnMsg", "交易成功")
	form.Set("PaymentType", "Credit_CreditCard")
	if paymentDate != "" {
		form.Set("PaymentDate", paymentDate)
	}
	form.Set(gateway.SignField, signer.Sign(form))
	return form
}

func reloadOrder(t *testing.T, db *gorm.DB, id int64) *order.Order {
	t.Helper()
	var o order.Order
	require.NoError(t, db.First(&o, id).Error)
	return &o
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

var testCtx = context.Background()

func mustParsePaymentDate(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006/01/02 15:04:05", s, time.Local)
	require.NoError(t, err)
	return ts
}
