package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/product"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
)

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	seeds := []*product.Product{
		{Name: "上架游戏", Price: decimal.NewFromInt(1690), Stock: 10, Platform: product.PlatformSwitch, Category: product.CategoryGame, Status: product.StatusOnline},
		{Name: "上架周边", Price: decimal.NewFromInt(890), Stock: 5, Platform: product.PlatformPC, Category: product.CategoryPeripheral, Status: product.StatusOnline},
		{Name: "下架游戏", Price: decimal.NewFromInt(990), Stock: 3, Platform: product.PlatformPC, Category: product.CategoryGame, Status: product.StatusOffline},
	}
	for _, p := range seeds {
		require.NoError(t, db.Create(p).Error)
	}
}

func TestListStorefrontHidesOffline(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := NewProductService(mysql.NewProductRepository(db))

	list, err := svc.ListStorefront(testCtx, "", "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, p := range list {
		assert.Equal(t, product.StatusOnline, p.Status)
	}
}

func TestListStorefrontFilters(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := NewProductService(mysql.NewProductRepository(db))

	list, err := svc.ListStorefront(testCtx, product.PlatformPC, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "上架周边", list[0].Name)

	list, err = svc.ListStorefront(testCtx, "", product.CategoryGame)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "上架游戏", list[0].Name)

	// 不认识的筛选值当作不过滤，而不是报错
	list, err = svc.ListStorefront(testCtx, "dreamcast", "weird")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGetVisibleHidesOffline(t *testing.T) {
	db := newTestDB(t)
	seedCatalog(t, db)
	svc := NewProductService(mysql.NewProductRepository(db))

	var offline product.Product
	require.NoError(t, db.Where("status = ?", product.StatusOffline).First(&offline).Error)

	_, err := svc.GetVisible(testCtx, offline.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var online product.Product
	require.NoError(t, db.Where("status = ?", product.StatusOnline).First(&online).Error)
	got, err := svc.GetVisible(testCtx, online.ID)
	require.NoError(t, err)
	assert.Equal(t, online.ID, got.ID)
}
