package main

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/aa547887/GameSpace-sub003/internal/config"
	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
	"github.com/aa547887/GameSpace-sub003/internal/infra/mq"
	"github.com/aa547887/GameSpace-sub003/internal/logger"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
	"github.com/aa547887/GameSpace-sub003/internal/service"
)

const orderPaidQueue = "order_paid_queue"

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	logger.Init(cfg.Mode)
	defer logger.Sync()

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)

	orderRepo := mysql.NewOrderRepository(db)
	orderSvc := service.NewOrderService(orderRepo)

	ch, err := mqConn.Channel()
	if err != nil {
		zap.L().Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(orderPaidQueue, true, false, false, false, nil); err != nil {
		zap.L().Fatal("failed to declare queue", zap.Error(err))
	}

	// 手动确认模式，处理失败可重回队列
	msgs, err := ch.Consume(orderPaidQueue, "", false, false, false, false, nil)
	if err != nil {
		zap.L().Fatal("failed to consume", zap.Error(err))
	}

	zap.L().Info("fulfill worker started, waiting for paid orders")

	for d := range msgs {
		var m service.OrderPaidMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			zap.L().Warn("invalid message", zap.Error(err))
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}
		handleMessage(context.Background(), orderSvc, &m, d)
	}
}

// handleMessage 把刚付款的订单推进到备货中。
// 推进失败时 Nack 重回队列，由 MQ 稍后再投；
// 状态已经前进（例如人工先处理了）时 ChangeStatus 幂等返回。
func handleMessage(ctx context.Context, orderSvc *service.OrderService, m *service.OrderPaidMessage, d amqp.Delivery) {
	o, err := orderSvc.GetByID(ctx, m.OrderID)
	if err != nil {
		zap.L().Error("get order failed", zap.Int64("order_id", m.OrderID), zap.Error(err))
		service.GetMonitor().RecordDBError()
		_ = d.Nack(false, true)
		return
	}
	if o.PaymentStatus != order.PaymentPaid {
		// 消息比付款事实先到不应该发生，丢回队列等一下
		zap.L().Warn("order not paid yet, requeue", zap.String("order_code", o.OrderCode))
		_ = d.Nack(false, true)
		return
	}
	if o.OrderStatus != order.StatusCreated {
		// 已经被推进过了，确认掉即可
		_ = d.Ack(false)
		return
	}

	if err := orderSvc.ChangeStatus(ctx, o.ID, order.StatusProcessing, "付款完成，转入备货"); err != nil {
		zap.L().Error("advance order failed", zap.String("order_code", o.OrderCode), zap.Error(err))
		service.GetMonitor().RecordDBError()
		_ = d.Nack(false, true)
		return
	}

	zap.L().Info("order moved to processing", zap.String("order_code", o.OrderCode))
	_ = d.Ack(false)
}
