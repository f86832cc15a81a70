package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 单笔交易状态机：pending -> {success, failed}。
// 同一笔网关交易可能被重复投递，重复投递只允许刷新备注/原始报文，
// 不允许把 success 退回 pending。
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// 审计结果分类，每一次进站尝试固定落一笔
const (
	ResultSuccess          = "success"
	ResultDuplicate        = "duplicate"
	ResultSignatureInvalid = "signature_invalid"
	ResultAmountMismatch   = "amount_mismatch"
	ResultOrderNotFound    = "order_not_found"
)

// 事件来源通道
const (
	PhaseNotify = "notify" // 网关服务器主动回调，权威来源
	PhaseReturn = "return" // 浏览器跳转回传，可被重放/伪造
)

// Transaction 金流交易记录。
// (provider, provider_txn_id) 是幂等键：同一笔网关交易只会有一行，
// 后续投递落在同一行上做刷新。PaymentCode 与 ProviderTxnID 写入后不再改动。
type Transaction struct {
	ID            int64           `gorm:"primaryKey"`
	PaymentCode   string          `gorm:"uniqueIndex;size:16;not null"`
	OrderID       int64           `gorm:"index;not null"`
	Provider      string          `gorm:"size:32;not null;uniqueIndex:uk_provider_txn"`
	ProviderTxnID string          `gorm:"size:64;not null;uniqueIndex:uk_provider_txn"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status        string          `gorm:"size:16;index;not null"`
	ConfirmedAt   *time.Time      // 首次确认时间，后续投递不覆盖
	Note          string          `gorm:"size:255"`
	RawPayload    string          `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Audit 金流审计流水，只追加不修改：每一次进站尝试一笔，
// 不论结果如何。重复投递和首次投递只有在这张表上分得出来。
type Audit struct {
	ID            int64     `gorm:"primaryKey"`
	PaymentCode   string    `gorm:"size:16;index"`
	ProviderTxnID string    `gorm:"size:64;index"`
	OrderID       int64     `gorm:"index"`
	Phase         string    `gorm:"size:16;not null"`
	Action        string    `gorm:"size:32;not null"`
	Result        string    `gorm:"size:32;index;not null"`
	Message       string    `gorm:"size:255"`
	RawPayload    string    `gorm:"size:1024"` // 截断后的原始报文，供事后排查重放
	HappenedAt    time.Time `gorm:"index;not null"`
}

// Repository 交易仓储接口。
// Upsert 的语义是「插入；撞上唯一键就改为刷新」，并发插入同一自然键时
// 输掉的一方必须退回更新而不是报错，唯一索引是唯一的仲裁者。
type Repository interface {
	// Upsert 按 (provider, provider_txn_id) 落一行，返回是否为新建
	Upsert(ctx context.Context, t *Transaction) (created bool, err error)
	GetByProviderTxn(ctx context.Context, provider, providerTxnID string) (*Transaction, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*Transaction, error)
	ListRecent(ctx context.Context, limit int) ([]*Transaction, error)
}

// AuditRepository 审计仓储接口，只有追加和查询
type AuditRepository interface {
	Append(ctx context.Context, a *Audit) error
	ListByOrder(ctx context.Context, orderID int64) ([]*Audit, error)
	ListRecent(ctx context.Context, limit int) ([]*Audit, error)
}

// GenerateCode 生成交易编号：PA + 14 位时间戳，定宽 16 字元。
// 同一秒内两笔新交易会撞号，由仓储层用 RandomCode 重试一次。
func GenerateCode(now time.Time) string {
	return "PA" + now.Format("20060102150405")
}

// RandomCode 撞号重试用的随机编号，宽度与 GenerateCode 一致
func RandomCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "PA" + raw[:14]
}
