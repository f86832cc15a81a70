// Package gateway 封装金流网关的报文格式：进站确认事件的解析、
// CheckMacValue 检核码的生成与验证，以及协议要求的应答字面值。
package gateway

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 协议应答字面值。网关只认这两个字符串：
// 收到 AckSuccess 停止重送，收到其他内容（包含 5xx）视为投递失败要重送。
const (
	AckSuccess       = "1|OK"
	AckSignatureFail = "0|CheckMacValue Error"
)

// SignField 检核码栏位名，计算检核码时要排除它自己
const SignField = "CheckMacValue"

// 进站表单栏位
const (
	fieldMerchantID  = "MerchantID"
	fieldOrderCode   = "MerchantTradeNo" // 我方订单编号
	fieldTradeNo     = "TradeNo"         // 网关交易编号
	fieldTradeAmt    = "TradeAmt"
	fieldRtnCode     = "RtnCode" // 1 表示付款成功
	fieldRtnMsg      = "RtnMsg"
	fieldPaymentDate = "PaymentDate"
	fieldPaymentType = "PaymentType"
)

const paymentDateLayout = "2006/01/02 15:04:05"

// Notification 一次进站确认事件解析后的内容。
// 解析是宽容的：缺栏位/格式不对不报错，留给对账流程按业务规则拒绝
// （查无订单、金额不符），错误分类保持封闭。
type Notification struct {
	MerchantID  string
	OrderCode   string
	TradeNo     string
	Amount      decimal.Decimal
	RtnCode     int
	RtnMsg      string
	PaymentDate time.Time // 解析不出来时为零值
	PaymentType string
	Raw         url.Values
}

// ParseNotification 从网关送来的表单（GET query 或 POST form 合并后）解析事件
func ParseNotification(form url.Values) *Notification {
	n := &Notification{
		MerchantID:  form.Get(fieldMerchantID),
		OrderCode:   form.Get(fieldOrderCode),
		TradeNo:     form.Get(fieldTradeNo),
		RtnMsg:      form.Get(fieldRtnMsg),
		PaymentType: form.Get(fieldPaymentType),
		Raw:         form,
	}
	if amt, err := decimal.NewFromString(strings.TrimSpace(form.Get(fieldTradeAmt))); err == nil {
		n.Amount = amt
	}
	if code, err := strconv.Atoi(strings.TrimSpace(form.Get(fieldRtnCode))); err == nil {
		n.RtnCode = code
	}
	if ts, err := time.ParseInLocation(paymentDateLayout, form.Get(fieldPaymentDate), time.Local); err == nil {
		n.PaymentDate = ts
	}
	return n
}

// Succeeded 网关是否回报付款成功
func (n *Notification) Succeeded() bool {
	return n.RtnCode == 1
}

// RawEncoded 原始报文的 urlencoded 形式，截断到 limit 字元供审计留存
func (n *Notification) RawEncoded(limit int) string {
	s := n.Raw.Encode()
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
