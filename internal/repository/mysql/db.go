package mysql

import (
	"log"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/promotion"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/user"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构。
// TranslateError 打开后，唯一键冲突会以 gorm.ErrDuplicatedKey 暴露，
// 交易 Upsert 的并发仲裁依赖这一点。
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}

		if err = db.AutoMigrate(
			&user.User{},
			&product.Product{},
			&promotion.Promotion{},
			&promotion.PromotionProduct{},
			&order.Order{},
			&order.Item{},
			&order.StatusHistory{},
			&payment.Transaction{},
			&payment.Audit{},
		); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	})
	return db
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
