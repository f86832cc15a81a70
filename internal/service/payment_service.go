package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
)

const (
	orderPaidQueue = "order_paid_queue"

	// 审计留存的原始报文截断长度，跟 payment.Audit.RawPayload 栏宽一致
	auditPayloadLimit = 1024
)

// 审计动作分类
const (
	actionConfirm    = "confirm"     // 成功事件落库并确认订单
	actionRefresh    = "refresh"     // 重复投递，纯刷新
	actionMarkFailed = "mark_failed" // 网关回报付款失败
	actionReject     = "reject"      // 业务拒绝，零状态写入
	actionObserve    = "observe"     // 浏览器回传通道只读观察
)

// OrderPaidMessage 订单确认付款后发往 MQ 的消息，出货 worker 消费
type OrderPaidMessage struct {
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
}

// ProcessResult 一次进站确认事件的处理结果
type ProcessResult struct {
	Outcome string // payment.Result* 之一
	Ack     string // 回给网关的应答字面值
	Message string
	Order   *order.Order
	Txn     *payment.Transaction
	// Flipped 本次投递是否把订单从未付款翻成已付款
	Flipped bool
}

// PaymentService 金流对账核心。
// 两条通道（notify / return）送进来的确认事件都走同一条管线：
// 验签 -> 单一事务内（查订单、核金额、按自然键落交易、确认订单）->
// 审计落一笔 -> 按协议应答。重复、乱序、并发的投递在这里收敛成
// 恰好一次的「订单已付款」效果。
type PaymentService struct {
	db        *gorm.DB
	auditRepo payment.AuditRepository
	signer    *gateway.Signer
	mqConn    *amqp.Connection
	cfg       *config.PaymentConfig
}

// NewPaymentService 创建金流服务。mqConn 可为 nil（测试或不需要出货通知时）。
func NewPaymentService(db *gorm.DB, signer *gateway.Signer, mqConn *amqp.Connection, cfg *config.PaymentConfig) *PaymentService {
	return &PaymentService{
		db:        db,
		auditRepo: mysql.NewAuditRepository(db),
		signer:    signer,
		mqConn:    mqConn,
		cfg:       cfg,
	}
}

// ProcessNotify 处理网关服务器回调（权威通道，允许落库）
func (s *PaymentService) ProcessNotify(ctx context.Context, form url.Values) (*ProcessResult, error) {
	return s.process(ctx, payment.PhaseNotify, form, true)
}

// ProcessReturn 处理浏览器跳转回传。浏览器不可信，默认只读观察；
// 仅当配置明确打开 TrustReturn（开发环境对接无公网回调的网关）才允许落库。
func (s *PaymentService) ProcessReturn(ctx context.Context, form url.Values) (*ProcessResult, error) {
	return s.process(ctx, payment.PhaseReturn, form, s.cfg.TrustReturn)
}

// process 是两条通道共用的管线。mutate 为 false 时全程零状态写入
// （审计除外）。返回 error 表示存储层暂时性故障：调用方不得回成功应答，
// 让网关的重送机制稍后补投。
func (s *PaymentService) process(ctx context.Context, phase string, form url.Values, mutate bool) (*ProcessResult, error) {
	GetMonitor().RecordDelivery(phase)
	notif := gateway.ParseNotification(form)

	// 1) 验签。失败立即终止，零状态写入，回失败应答。
	// 这里是安全边界：伪造事件不会因为重送就变成合法。
	if !s.signer.Verify(form) {
		res := &ProcessResult{
			Outcome: payment.ResultSignatureInvalid,
			Ack:     gateway.AckSignatureFail,
			Message: "check mac value mismatch",
		}
		s.appendAudit(ctx, phase, actionReject, notif, res)
		return res, nil
	}

	var res *ProcessResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := mysql.NewOrderRepository(tx)
		payRepo := mysql.NewPaymentRepository(tx)

		// 2) 查订单。查无订单属于业务拒绝：回成功应答止住重送，
		// 留给人工从审计流水排查。
		o, err := orderRepo.GetByCode(ctx, notif.OrderCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				res = &ProcessResult{
					Outcome: payment.ResultOrderNotFound,
					Ack:     gateway.AckSuccess,
					Message: "order " + notif.OrderCode + " not found",
				}
				return nil
			}
			return err
		}

		// 3) 核对金额：重新读库里的应付金额，不信事件声称的期望值。
		// 金额不符零状态写入，但仍回成功应答（业务拒绝不是投递失败）。
		total, err := orderRepo.GetGrandTotal(ctx, o.ID)
		if err != nil {
			return err
		}
		if !notif.Amount.Equal(total) {
			res = &ProcessResult{
				Outcome: payment.ResultAmountMismatch,
				Ack:     gateway.AckSuccess,
				Message: "claimed " + notif.Amount.String() + ", expected " + total.String(),
				Order:   o,
			}
			return nil
		}

		status := payment.StatusFailed
		var confirmedAt *time.Time
		if notif.Succeeded() {
			status = payment.StatusSuccess
			ts := notif.PaymentDate
			if ts.IsZero() {
				ts = time.Now()
			}
			confirmedAt = &ts
		}

		txn := &payment.Transaction{
			OrderID:       o.ID,
			Provider:      s.cfg.Provider,
			ProviderTxnID: notif.TradeNo,
			Amount:        notif.Amount,
			Status:        status,
			ConfirmedAt:   confirmedAt,
			Note:          notif.RtnMsg,
			RawPayload:    notif.Raw.Encode(),
		}

		// 浏览器通道未被信任时到此为止：验签、查单、核金额都做了，
		// 结果只用来渲染页面，不留任何痕迹在订单和交易表上。
		if !mutate {
			res = &ProcessResult{
				Outcome: payment.ResultSuccess,
				Ack:     gateway.AckSuccess,
				Message: "observed only, return channel untrusted",
				Order:   o,
				Txn:     txn,
			}
			return nil
		}

		// 4) 按自然键落交易。重复投递在这里退化成纯刷新。
		created, err := payRepo.Upsert(ctx, txn)
		if err != nil {
			return err
		}

		flipped := false
		if txn.Status == payment.StatusSuccess {
			// 5) 确认订单付款。重复设置相同值无副作用；
			// 首次确认时间以交易记录上既有的为准。
			if o.PaymentStatus != order.PaymentPaid {
				at := time.Now()
				if txn.ConfirmedAt != nil {
					at = *txn.ConfirmedAt
				}
				if err := orderRepo.SetPaid(ctx, o.ID, at); err != nil {
					return err
				}
				o.PaymentStatus = order.PaymentPaid
				o.PaymentConfirmedAt = &at
				flipped = true
			}
			// 6) 状态变更记录：付款不动出货状态，from == to 会被静默跳过。
			// 这一步存在是为了让所有状态流转都走同一个追加器。
			if err := orderRepo.AppendStatusHistory(ctx, o.ID, o.OrderStatus, o.OrderStatus, "付款完成"); err != nil {
				return err
			}
		}

		outcome := payment.ResultSuccess
		if !created {
			outcome = payment.ResultDuplicate
		}
		res = &ProcessResult{
			Outcome: outcome,
			Ack:     gateway.AckSuccess,
			Message: notif.RtnMsg,
			Order:   o,
			Txn:     txn,
			Flipped: flipped,
		}
		return nil
	})
	if err != nil {
		// 存储层暂时性故障：不落审计结论也不回应答，等网关重送
		GetMonitor().RecordDBError()
		zap.L().Error("payment event processing failed",
			zap.String("phase", phase),
			zap.String("order_code", notif.OrderCode),
			zap.String("trade_no", notif.TradeNo),
			zap.Error(err))
		return nil, err
	}

	// 7) 审计：每一次进站尝试固定一笔，不论结果
	action := actionFor(phase, mutate, res)
	s.appendAudit(ctx, phase, action, notif, res)
	GetMonitor().RecordOutcome(res.Outcome)

	zap.L().Info("payment event processed",
		zap.String("phase", phase),
		zap.String("order_code", notif.OrderCode),
		zap.String("trade_no", notif.TradeNo),
		zap.String("outcome", res.Outcome),
		zap.Bool("order_flipped", res.Flipped))

	// 8) 只有真正翻转了付款状态才通知出货流程
	if res.Flipped {
		s.publishOrderPaid(ctx, res.Order)
	}
	return res, nil
}

func actionFor(phase string, mutate bool, res *ProcessResult) string {
	if !mutate {
		return actionObserve
	}
	switch res.Outcome {
	case payment.ResultDuplicate:
		return actionRefresh
	case payment.ResultAmountMismatch, payment.ResultOrderNotFound:
		return actionReject
	}
	if res.Txn != nil && res.Txn.Status == payment.StatusFailed {
		return actionMarkFailed
	}
	return actionConfirm
}

// appendAudit 追加审计流水。审计失败只记日志不影响主流程：
// 应答已经取决于既成的处理结果，不能因为审计写不进去让网关重送。
func (s *PaymentService) appendAudit(ctx context.Context, phase, action string, notif *gateway.Notification, res *ProcessResult) {
	a := &payment.Audit{
		ProviderTxnID: notif.TradeNo,
		Phase:         phase,
		Action:        action,
		Result:        res.Outcome,
		Message:       res.Message,
		RawPayload:    notif.RawEncoded(auditPayloadLimit),
		HappenedAt:    time.Now(),
	}
	if res.Order != nil {
		a.OrderID = res.Order.ID
	}
	if res.Txn != nil {
		a.PaymentCode = res.Txn.PaymentCode
	}
	if err := s.auditRepo.Append(ctx, a); err != nil {
		GetMonitor().RecordDBError()
		zap.L().Error("append payment audit failed",
			zap.String("trade_no", notif.TradeNo),
			zap.Error(err))
	}
}

// publishOrderPaid 发订单已付款消息。发不出去不回滚付款结果，
// 付款事实已经落库，出货晚一点由人工或补偿流程处理。
func (s *PaymentService) publishOrderPaid(ctx context.Context, o *order.Order) {
	if s.mqConn == nil {
		return
	}
	ch, err := s.mqConn.Channel()
	if err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("open mq channel failed", zap.Error(err))
		return
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(orderPaidQueue, true, false, false, false, nil); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("declare order paid queue failed", zap.Error(err))
		return
	}
	body, err := json.Marshal(&OrderPaidMessage{
		OrderID:   o.ID,
		OrderCode: o.OrderCode,
	})
	if err != nil {
		return
	}
	err = ch.PublishWithContext(ctx, "", orderPaidQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		GetMonitor().RecordMQError()
		zap.L().Error("publish order paid failed",
			zap.String("order_code", o.OrderCode),
			zap.Error(err))
	}
}

// ListTransactionsByOrder 后台查询订单下的金流交易
func (s *PaymentService) ListTransactionsByOrder(ctx context.Context, orderID int64) ([]*payment.Transaction, error) {
	return mysql.NewPaymentRepository(s.db).ListByOrder(ctx, orderID)
}

// ListRecentTransactions 后台查询最近的金流交易
func (s *PaymentService) ListRecentTransactions(ctx context.Context, limit int) ([]*payment.Transaction, error) {
	return mysql.NewPaymentRepository(s.db).ListRecent(ctx, limit)
}

// ListRecentAudits 后台查询最近的审计流水
func (s *PaymentService) ListRecentAudits(ctx context.Context, limit int) ([]*payment.Audit, error) {
	return s.auditRepo.ListRecent(ctx, limit)
}

// ListAuditsByOrder 后台查询订单的审计流水
func (s *PaymentService) ListAuditsByOrder(ctx context.Context, orderID int64) ([]*payment.Audit, error) {
	return s.auditRepo.ListByOrder(ctx, orderID)
}
