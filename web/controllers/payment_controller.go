package controllers

import (
	"github.com/kataras/iris/v12"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/payment"
	"github.com/aa547887/GameSpace-sub003/internal/gateway"
	"github.com/aa547887/GameSpace-sub003/internal/service"
)

// PaymentController 金流网关的两个进站端点。
// Notify 是协议端点，应答内容必须严格按网关规范；
// Return 面向用户浏览器，只负责渲染结果页。
type PaymentController struct {
	paymentService *service.PaymentService
}

// NewPaymentController 构造函数
func NewPaymentController(paySvc *service.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paySvc}
}

// Notify 处理网关服务器回调（GET/POST 表单都可能出现）。
// 回 AckSuccess 网关停止重送；回其他内容（含 5xx）网关会重送，
// 所以业务拒绝（重复、金额不符、查无订单）也要回 AckSuccess，
// 只有验签失败回失败应答、存储故障回 500。
func (c *PaymentController) Notify(ctx iris.Context) {
	if err := ctx.Request().ParseForm(); err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		_, _ = ctx.WriteString(gateway.AckSignatureFail)
		return
	}

	res, err := c.paymentService.ProcessNotify(ctx.Request().Context(), ctx.Request().Form)
	if err != nil {
		// 暂时性存储故障：不回成功应答，让网关稍后重送
		ctx.StatusCode(iris.StatusInternalServerError)
		_, _ = ctx.WriteString("0|Error")
		return
	}
	_, _ = ctx.WriteString(res.Ack)
}

// Return 处理浏览器跳转回传，永远渲染结果页。
// 付款状态是否真的变动由配置决定（见 PaymentConfig.TrustReturn）。
func (c *PaymentController) Return(ctx iris.Context) {
	if err := ctx.Request().ParseForm(); err != nil {
		c.renderResult(ctx, "付款结果异常", "回传参数无法解析，请回订单页确认付款状态。", "")
		return
	}

	res, err := c.paymentService.ProcessReturn(ctx.Request().Context(), ctx.Request().Form)
	if err != nil {
		c.renderResult(ctx, "付款结果确认中", "系统忙碌中，请稍后回订单页确认付款状态。", "")
		return
	}

	orderCode := ""
	if res.Order != nil {
		orderCode = res.Order.OrderCode
	}
	switch res.Outcome {
	case payment.ResultSuccess, payment.ResultDuplicate:
		if res.Txn != nil && res.Txn.Status == payment.StatusFailed {
			c.renderResult(ctx, "付款未完成", "网关回报付款失败："+res.Message, orderCode)
			return
		}
		c.renderResult(ctx, "付款完成", "我们已收到您的付款，订单将尽快安排出货。", orderCode)
	case payment.ResultSignatureInvalid:
		c.renderResult(ctx, "付款结果异常", "验证失败，请勿重复操作；如有疑问请联系客服。", "")
	case payment.ResultAmountMismatch:
		c.renderResult(ctx, "付款结果异常", "付款金额与订单不符，请联系客服核对。", orderCode)
	default:
		c.renderResult(ctx, "付款结果异常", "查无对应订单，请联系客服核对。", "")
	}
}

func (c *PaymentController) renderResult(ctx iris.Context, title, message, orderCode string) {
	ctx.ViewLayout("shared/layout.html")
	if err := ctx.View("payment/result.html", iris.Map{
		"title":      title,
		"message":    message,
		"order_code": orderCode,
	}); err != nil {
		ctx.ContentType("text/html; charset=utf-8")
		_, _ = ctx.WriteString("<h2>" + title + "</h2><p>" + message + "</p>")
	}
}
