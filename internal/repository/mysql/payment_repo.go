package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
)

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepository 创建金流交易仓储
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepo{db: db}
}

// Upsert 按 (provider, provider_txn_id) 落一行：没有就插入，有就刷新。
// 并发插入同一笔交易时靠唯一索引仲裁，输掉的一方退回刷新路径；
// 交易编号撞号（同一秒两笔新交易）换随机编号重试一次。
func (r *paymentRepo) Upsert(ctx context.Context, t *payment.Transaction) (bool, error) {
	existing, err := r.GetByProviderTxn(ctx, t.Provider, t.ProviderTxnID)
	switch {
	case err == nil:
		return false, r.refresh(ctx, existing, t)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 继续走插入
	default:
		return false, err
	}

	if t.PaymentCode == "" {
		t.PaymentCode = payment.GenerateCode(time.Now())
	}
	err = r.db.WithContext(ctx).Create(t).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	// 撞了唯一键：先确认是不是输掉了同一笔交易的并发插入
	existing, err2 := r.getByProviderTxnLatest(ctx, t.Provider, t.ProviderTxnID)
	switch {
	case err2 == nil:
		return false, r.refresh(ctx, existing, t)
	case errors.Is(err2, gorm.ErrRecordNotFound):
		// 自然键没人占，说明是 payment_code 撞号
	default:
		return false, err2
	}

	t.ID = 0
	t.PaymentCode = payment.RandomCode()
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 重试窗口内又输掉了自然键竞争
			if existing, e := r.getByProviderTxnLatest(ctx, t.Provider, t.ProviderTxnID); e == nil {
				return false, r.refresh(ctx, existing, t)
			}
		}
		return false, err
	}
	return true, nil
}

// refresh 重复投递的纯刷新：只动 status/note/raw_payload，
// payment_code 与 provider_txn_id 不重写，success 不回退，
// 首次确认时间不被后来的投递覆盖。
func (r *paymentRepo) refresh(ctx context.Context, existing, t *payment.Transaction) error {
	updates := map[string]interface{}{
		"note":        t.Note,
		"raw_payload": t.RawPayload,
	}
	if existing.Status != payment.StatusSuccess {
		updates["status"] = t.Status
	}
	if existing.ConfirmedAt == nil && t.ConfirmedAt != nil {
		updates["confirmed_at"] = t.ConfirmedAt
	}
	if err := r.db.WithContext(ctx).
		Model(&payment.Transaction{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return err
	}

	// 把库里的既成事实带回给调用方
	t.ID = existing.ID
	t.PaymentCode = existing.PaymentCode
	if existing.ConfirmedAt != nil {
		t.ConfirmedAt = existing.ConfirmedAt
	}
	if existing.Status == payment.StatusSuccess {
		t.Status = payment.StatusSuccess
	}
	return nil
}

// getByProviderTxnLatest 冲突回退专用的读取。MySQL REPEATABLE READ 下
// 普通 SELECT 读的是事务开始时建立的快照，看不到并发赢家在快照之后
// 提交的那一行，回退路径必须用锁定读取最新版本，否则输家会错判成
// 交易编号撞号、重试插入再次撞自然键而报错。sqlite 的写事务本身是
// 串行的，没有这个问题，而且不支持 FOR UPDATE 语法。
func (r *paymentRepo) getByProviderTxnLatest(ctx context.Context, provider, providerTxnID string) (*payment.Transaction, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t payment.Transaction
	if err := q.Where("provider = ? AND provider_txn_id = ?", provider, providerTxnID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *paymentRepo) GetByProviderTxn(ctx context.Context, provider, providerTxnID string) (*payment.Transaction, error) {
	var t payment.Transaction
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_txn_id = ?", provider, providerTxnID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *paymentRepo) ListByOrder(ctx context.Context, orderID int64) ([]*payment.Transaction, error) {
	var list []*payment.Transaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *paymentRepo) ListRecent(ctx context.Context, limit int) ([]*payment.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*payment.Transaction
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
