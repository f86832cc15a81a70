package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
)

func TestNotifyConfirmsOrder(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000001", "1790.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831001", "1790.00", "1", "2026/08/31 10:00:00")

	res, err := svc.ProcessNotify(testCtx, form)
	require.NoError(t, err)

	assert.Equal(t, payment.ResultSuccess, res.Outcome)
	assert.Equal(t, gateway.AckSuccess, res.Ack)
	assert.True(t, res.Flipped)

	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	require.NotNil(t, got.PaymentConfirmedAt)
	want := mustParsePaymentDate(t, "2026/08/31 10:00:00")
	assert.WithinDuration(t, want, *got.PaymentConfirmedAt, 0)

	// 交易一行，编号定宽 16
	txns, err := svc.ListTransactionsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, payment.StatusSuccess, txns[0].Status)
	assert.Len(t, txns[0].PaymentCode, 16)
	assert.Equal(t, "T20260831001", txns[0].ProviderTxnID)

	// 审计一笔，动作是 confirm
	audits, err := svc.ListAuditsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, payment.PhaseNotify, audits[0].Phase)
	assert.Equal(t, actionConfirm, audits[0].Action)
	assert.Equal(t, payment.ResultSuccess, audits[0].Result)
	assert.NotEmpty(t, audits[0].RawPayload)
}

func TestNotifyReplayRefreshesOnly(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000002", "990.00")
	first := signedForm(signer, cfg, o.OrderCode, "T20260831002", "990.00", "1", "2026/08/31 10:00:00")
	res, err := svc.ProcessNotify(testCtx, first)
	require.NoError(t, err)
	require.True(t, res.Flipped)

	// 网关带着更晚的确认时间重送同一笔交易
	replay := signedForm(signer, cfg, o.OrderCode, "T20260831002", "990.00", "1", "2026/08/31 10:05:00")
	res, err = svc.ProcessNotify(testCtx, replay)
	require.NoError(t, err)

	assert.Equal(t, payment.ResultDuplicate, res.Outcome)
	assert.Equal(t, gateway.AckSuccess, res.Ack)
	assert.False(t, res.Flipped)

	// 还是只有一行交易，首次确认时间不被覆盖
	assert.EqualValues(t, 1, countRows(t, db, &payment.Transaction{}, "order_id = ?", o.ID))
	txns, err := svc.ListTransactionsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	want := mustParsePaymentDate(t, "2026/08/31 10:00:00")
	require.NotNil(t, txns[0].ConfirmedAt)
	assert.WithinDuration(t, want, *txns[0].ConfirmedAt, 0)

	got := reloadOrder(t, db, o.ID)
	require.NotNil(t, got.PaymentConfirmedAt)
	assert.WithinDuration(t, want, *got.PaymentConfirmedAt, 0)

	// 审计两笔：confirm + refresh，重复投递只有在审计上分得出来
	audits, err := svc.ListAuditsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, actionConfirm, audits[0].Action)
	assert.Equal(t, actionRefresh, audits[1].Action)
	assert.Equal(t, payment.ResultDuplicate, audits[1].Result)
}

func TestNotifyAmountMismatch(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000003", "1790.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831003", "1.00", "1", "2026/08/31 10:00:00")

	res, err := svc.ProcessNotify(testCtx, form)
	require.NoError(t, err)

	// 业务拒绝：零状态写入，但回成功应答止住重送
	assert.Equal(t, payment.ResultAmountMismatch, res.Outcome)
	assert.Equal(t, gateway.AckSuccess, res.Ack)
	assert.False(t, res.Flipped)

	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.PaymentUnpaid, got.PaymentStatus)
	assert.Nil(t, got.PaymentConfirmedAt)
	assert.EqualValues(t, 0, countRows(t, db, &payment.Transaction{}, ""))

	audits, err := svc.ListAuditsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, actionReject, audits[0].Action)
	assert.Equal(t, payment.ResultAmountMismatch, audits[0].Result)
}

func TestNotifyUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	form := signedForm(signer, cfg, "OR9999999999", "T20260831004", "100.00", "1", "")
	res, err := svc.ProcessNotify(testCtx, form)
	require.NoError(t, err)

	assert.Equal(t, payment.ResultOrderNotFound, res.Outcome)
	assert.Equal(t, gateway.AckSuccess, res.Ack)
	assert.EqualValues(t, 0, countRows(t, db, &payment.Transaction{}, ""))

	// 查无订单也要留审计，供人工排查
	var audits []*payment.Audit
	require.NoError(t, db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, payment.ResultOrderNotFound, audits[0].Result)
	assert.Equal(t, "T20260831004", audits[0].ProviderTxnID)
}

func TestNotifyForgedSignature(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000005", "500.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831005", "500.00", "1", "")
	form.Set(gateway.SignField, "0000DEADBEEF0000DEADBEEF0000DEAD")

	res, err := svc.ProcessNotify(testCtx, form)
	require.NoError(t, err)

	// 安全边界：验签失败回失败应答，订单和交易表零写入
	assert.Equal(t, payment.ResultSignatureInvalid, res.Outcome)
	assert.Equal(t, gateway.AckSignatureFail, res.Ack)

	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.PaymentUnpaid, got.PaymentStatus)
	assert.EqualValues(t, 0, countRows(t, db, &payment.Transaction{}, ""))

	// 但审计照落，伪造尝试要留痕
	var audits []*payment.Audit
	require.NoError(t, db.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, actionReject, audits[0].Action)
	assert.Equal(t, payment.ResultSignatureInvalid, audits[0].Result)
}

func TestNotifyFailedThenSuccess(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000006", "880.00")

	// 先收到付款失败
	failed := signedForm(signer, cfg, o.OrderCode, "T20260831006", "880.00", "10300066", "")
	res, err := svc.ProcessNotify(testCtx, failed)
	require.NoError(t, err)
	assert.Equal(t, payment.ResultSuccess, res.Outcome)
	assert.False(t, res.Flipped)
	assert.Equal(t, order.PaymentUnpaid, reloadOrder(t, db, o.ID).PaymentStatus)

	// 同一笔交易后来成功了（使用者换卡重试，网关沿用交易号）
	ok := signedForm(signer, cfg, o.OrderCode, "T20260831006", "880.00", "1", "2026/08/31 11:00:00")
	res, err = svc.ProcessNotify(testCtx, ok)
	require.NoError(t, err)
	assert.Equal(t, payment.ResultDuplicate, res.Outcome)
	assert.True(t, res.Flipped)

	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	txns, err := svc.ListTransactionsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, payment.StatusSuccess, txns[0].Status)

	// 再重放一次失败事件，success 不允许回退
	res, err = svc.ProcessNotify(testCtx, failed)
	require.NoError(t, err)
	txns, err = svc.ListTransactionsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, txns[0].Status)
	assert.Equal(t, order.PaymentPaid, reloadOrder(t, db, o.ID).PaymentStatus)
}

func TestReturnUntrustedObservesOnly(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	cfg.TrustReturn = false
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000007", "1200.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831007", "1200.00", "1", "2026/08/31 12:00:00")

	res, err := svc.ProcessReturn(testCtx, form)
	require.NoError(t, err)

	// 验签、查单、核金额都做了，但全程零状态写入
	assert.Equal(t, payment.ResultSuccess, res.Outcome)
	assert.False(t, res.Flipped)
	assert.Equal(t, order.PaymentUnpaid, reloadOrder(t, db, o.ID).PaymentStatus)
	assert.EqualValues(t, 0, countRows(t, db, &payment.Transaction{}, ""))

	audits, err := svc.ListAuditsByOrder(testCtx, o.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, payment.PhaseReturn, audits[0].Phase)
	assert.Equal(t, actionObserve, audits[0].Action)
}

func TestReturnTrustedMutates(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	cfg.TrustReturn = true
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000008", "650.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831008", "650.00", "1", "2026/08/31 12:30:00")

	res, err := svc.ProcessReturn(testCtx, form)
	require.NoError(t, err)
	assert.True(t, res.Flipped)
	assert.Equal(t, order.PaymentPaid, reloadOrder(t, db, o.ID).PaymentStatus)
	assert.EqualValues(t, 1, countRows(t, db, &payment.Transaction{}, "order_id = ?", o.ID))
}

// 两条通道同时确认同一笔交易，订单只允许翻转一次
func TestConcurrentDeliveriesFlipOnce(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000009", "2490.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831009", "2490.00", "1", "2026/08/31 13:00:00")

	const n = 8
	var wg sync.WaitGroup
	results := make([]*ProcessResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ProcessNotify(testCtx, form)
		}(i)
	}
	wg.Wait()

	flips := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, gateway.AckSuccess, results[i].Ack)
		if results[i].Flipped {
			flips++
		}
	}
	assert.Equal(t, 1, flips)

	assert.EqualValues(t, 1, countRows(t, db, &payment.Transaction{}, "order_id = ?", o.ID))
	assert.Equal(t, order.PaymentPaid, reloadOrder(t, db, o.ID).PaymentStatus)

	// 每一次投递固定一笔审计
	assert.EqualValues(t, n, countRows(t, db, &payment.Audit{}, "order_id = ?", o.ID))
}

// 存储层暂时性故障要以 error 形式传出去：不产生应答（HTTP 层回 5xx），
// 让网关的重送机制稍后补投，本次尝试也不落审计结论
func TestTransientStoreFailurePropagates(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000011", "450.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831011", "450.00", "1", "")

	// 把交易表拆掉，Upsert 必然失败，模拟库暂时不可用
	require.NoError(t, db.Migrator().DropTable(&payment.Transaction{}))

	res, err := svc.ProcessNotify(testCtx, form)
	require.Error(t, err)
	assert.Nil(t, res)

	// 订单原封不动，这次尝试也没有审计行
	assert.Equal(t, order.PaymentUnpaid, reloadOrder(t, db, o.ID).PaymentStatus)
	assert.EqualValues(t, 0, countRows(t, db, &payment.Audit{}, "order_id = ?", o.ID))

	// 表修好后同一笔投递重送即可补上
	require.NoError(t, db.AutoMigrate(&payment.Transaction{}))
	res, err = svc.ProcessNotify(testCtx, form)
	require.NoError(t, err)
	assert.Equal(t, payment.ResultSuccess, res.Outcome)
	assert.Equal(t, gateway.AckSuccess, res.Ack)
	assert.True(t, res.Flipped)
	assert.Equal(t, order.PaymentPaid, reloadOrder(t, db, o.ID).PaymentStatus)
}

// 付款确认不经手出货状态机
func TestPaymentLeavesShippingStateAlone(t *testing.T) {
	db := newTestDB(t)
	cfg := testPaymentConfig()
	signer := gateway.NewSigner(cfg)
	svc := NewPaymentService(db, signer, nil, cfg)

	o := seedOrder(t, db, "OR0000000010", "300.00")
	form := signedForm(signer, cfg, o.OrderCode, "T20260831010", "300.00", "1", "")

	_, err := svc.ProcessNotify(testCtx, form)
	require.NoError(t, err)

	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.StatusCreated, got.OrderStatus)
	// from == to 的变更被静默跳过，不应多出历史行
	assert.EqualValues(t, 0, countRows(t, db, &order.StatusHistory{}, "order_id = ?", o.ID))
}
