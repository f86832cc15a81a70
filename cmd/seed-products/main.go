package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
)

// 本地开发用：灌入一批示例商品
func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	db := mysql.Init(&cfg.MySQL)
	repo := mysql.NewProductRepository(db)
	ctx := context.Background()

	seeds := []*product.Product{
		{Name: "薩爾達傳說 王國之淚", Description: "Switch 冒險大作", Price: decimal.NewFromInt(1690), Stock: 50, Platform: product.PlatformSwitch, Category: product.CategoryGame, Status: product.StatusOnline},
		{Name: "艾爾登法環 黃金樹幽影", Description: "PC 版擴充內容", Price: decimal.NewFromInt(1190), Stock: 100, Platform: product.PlatformPC, Category: product.CategoryGame, Status: product.StatusOnline},
		{Name: "DualSense 無線控制器", Description: "PS5 原廠手把", Price: decimal.NewFromInt(2180), Stock: 30, Platform: product.PlatformPS5, Category: product.CategoryPeripheral, Status: product.StatusOnline},
		{Name: "馬里奧 明星大亂鬥 模型", Description: "13 公分收藏模型", Price: decimal.NewFromInt(890), Stock: 20, Platform: product.PlatformSwitch, Category: product.CategoryFigure, Status: product.StatusOnline},
		{Name: "機械鍵盤 GS-87", Description: "茶軸、白光", Price: decimal.NewFromInt(1490), Stock: 40, Platform: product.PlatformPC, Category: product.CategoryPeripheral, Status: product.StatusOnline},
	}

	for _, p := range seeds {
		if err := repo.Create(ctx, p); err != nil {
			log.Printf("create %s failed: %v", p.Name, err)
			continue
		}
		log.Printf("created product %d: %s", p.ID, p.Name)
	}
	log.Println("seed done")
}
