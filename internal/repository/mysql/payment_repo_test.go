package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
)

func newPaymentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	tdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := tdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, tdb.AutoMigrate(&payment.Transaction{}, &payment.Audit{}))
	return tdb
}

func newTxn(provider, txnID, amount, status string) *payment.Transaction {
	amt, _ := decimal.NewFromString(amount)
	return &payment.Transaction{
		OrderID:       1,
		Provider:      provider,
		ProviderTxnID: txnID,
		Amount:        amt,
		Status:        status,
		Note:          "交易成功",
		RawPayload:    "RtnCode=1",
	}
}

func TestUpsertInsertThenRefresh(t *testing.T) {
	db := newPaymentTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.Local)
	first := newTxn("ecpay", "T001", "100.00", payment.StatusSuccess)
	first.ConfirmedAt = &at

	created, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.PaymentCode, 16)
	assert.Equal(t, "PA", first.PaymentCode[:2])

	// 重复投递：编号不变、首次确认时间不被覆盖
	later := time.Date(2026, 8, 31, 10, 5, 0, 0, time.Local)
	second := newTxn("ecpay", "T001", "100.00", payment.StatusSuccess)
	second.ConfirmedAt = &later
	second.Note = "重送"

	created, err = repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PaymentCode, second.PaymentCode)
	require.NotNil(t, second.ConfirmedAt)
	assert.WithinDuration(t, at, *second.ConfirmedAt, 0)

	got, err := repo.GetByProviderTxn(ctx, "ecpay", "T001")
	require.NoError(t, err)
	assert.Equal(t, "重送", got.Note)
	require.NotNil(t, got.ConfirmedAt)
	assert.WithinDuration(t, at, *got.ConfirmedAt, 0)
}

func TestUpsertSuccessNeverRegresses(t *testing.T) {
	db := newPaymentTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	at := time.Now()
	ok := newTxn("ecpay", "T002", "100.00", payment.StatusSuccess)
	ok.ConfirmedAt = &at
	_, err := repo.Upsert(ctx, ok)
	require.NoError(t, err)

	// 迟到的失败投递不许把 success 退回去
	late := newTxn("ecpay", "T002", "100.00", payment.StatusFailed)
	created, err := repo.Upsert(ctx, late)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, payment.StatusSuccess, late.Status)

	got, err := repo.GetByProviderTxn(ctx, "ecpay", "T002")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, got.Status)
}

func TestUpsertFailedUpgradesToSuccess(t *testing.T) {
	db := newPaymentTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, newTxn("ecpay", "T003", "100.00", payment.StatusFailed))
	require.NoError(t, err)

	at := time.Now()
	ok := newTxn("ecpay", "T003", "100.00", payment.StatusSuccess)
	ok.ConfirmedAt = &at
	created, err := repo.Upsert(ctx, ok)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetByProviderTxn(ctx, "ecpay", "T003")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
}

func TestUpsertPaymentCodeCollision(t *testing.T) {
	db := newPaymentTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	code := payment.GenerateCode(time.Now())

	first := newTxn("ecpay", "T004", "100.00", payment.StatusSuccess)
	first.PaymentCode = code
	created, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	// 同一秒的另一笔新交易拿到同一个时间戳编号，要换随机编号重试
	second := newTxn("ecpay", "T005", "200.00", payment.StatusSuccess)
	second.PaymentCode = code
	created, err = repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, code, second.PaymentCode)
	assert.Len(t, second.PaymentCode, 16)

	var n int64
	require.NoError(t, db.Model(&payment.Transaction{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

// 模拟输掉并发插入：在 INSERT 执行前让「赢家」抢先落下同一自然键，
// 输家撞上唯一索引后必须退回刷新既有行，而不是错判成撞号再报错
func TestUpsertLosesInsertRaceFallsBackToRefresh(t *testing.T) {
	// 关掉 gorm 每次写入的隐式事务，赢家的行才不会跟着失败的
	// INSERT 一起回滚
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
		Logger:                 glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&payment.Transaction{}))

	at := time.Date(2026, 8, 31, 14, 0, 0, 0, time.Local)
	winner := newTxn("ecpay", "T100", "300.00", payment.StatusSuccess)
	winner.ConfirmedAt = &at
	winner.PaymentCode = payment.RandomCode()

	raced := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("concurrent_winner", func(tx *gorm.DB) {
			if raced {
				return
			}
			raced = true
			require.NoError(t, db.Session(&gorm.Session{NewDB: true}).Create(winner).Error)
		}))

	repo := NewPaymentRepository(db)
	later := time.Date(2026, 8, 31, 14, 0, 5, 0, time.Local)
	loser := newTxn("ecpay", "T100", "300.00", payment.StatusSuccess)
	loser.ConfirmedAt = &later
	loser.Note = "输家重送"

	created, err := repo.Upsert(context.Background(), loser)
	require.NoError(t, err)
	assert.False(t, created)

	// 落在赢家那一行上：编号沿用，首次确认时间不被覆盖
	assert.Equal(t, winner.PaymentCode, loser.PaymentCode)
	require.NotNil(t, loser.ConfirmedAt)
	assert.WithinDuration(t, at, *loser.ConfirmedAt, 0)

	var n int64
	require.NoError(t, db.Model(&payment.Transaction{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	got, err := repo.GetByProviderTxn(context.Background(), "ecpay", "T100")
	require.NoError(t, err)
	assert.Equal(t, "输家重送", got.Note)
	assert.Equal(t, payment.StatusSuccess, got.Status)
}

func TestGenerateCodeWidth(t *testing.T) {
	code := payment.GenerateCode(time.Date(2026, 8, 31, 9, 30, 15, 0, time.Local))
	assert.Equal(t, "PA20260831093015", code)

	random := payment.RandomCode()
	assert.Len(t, random, 16)
	assert.Equal(t, "PA", random[:2])
	assert.NotEqual(t, random, payment.RandomCode())
}
