package service

import (
	"sync"
	"time"
)

// Monitor 进程内监控，统计金流通道的投递与错误情况
type Monitor struct {
	mu sync.RWMutex

	// 投递统计
	NotifyReceived    int64
	ReturnReceived    int64
	ConfirmedOrders   int64
	DuplicateEvents   int64
	SignatureInvalid  int64
	AmountMismatches  int64
	OrdersNotFound    int64

	// 错误统计
	DBErrors int64
	MQErrors int64

	// 时间统计
	LastNotifyTime time.Time
	LastDBError    time.Time
	LastMQError    time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordDelivery 记录一次进站投递
func (m *Monitor) RecordDelivery(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if phase == "notify" {
		m.NotifyReceived++
		m.LastNotifyTime = time.Now()
	} else {
		m.ReturnReceived++
	}
}

// RecordOutcome 按对账结果累计计数
func (m *Monitor) RecordOutcome(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch result {
	case "success":
		m.ConfirmedOrders++
	case "duplicate":
		m.DuplicateEvents++
	case "signature_invalid":
		m.SignatureInvalid++
	case "amount_mismatch":
		m.AmountMismatches++
	case "order_not_found":
		m.OrdersNotFound++
	}
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordMQError 记录 MQ 错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

// Snapshot 导出当前计数（后台监控页用）
func (m *Monitor) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"notify_received":   m.NotifyReceived,
		"return_received":   m.ReturnReceived,
		"confirmed_orders":  m.ConfirmedOrders,
		"duplicate_events":  m.DuplicateEvents,
		"signature_invalid": m.SignatureInvalid,
		"amount_mismatches": m.AmountMismatches,
		"orders_not_found":  m.OrdersNotFound,
		"db_errors":         m.DBErrors,
		"mq_errors":         m.MQErrors,
		"last_notify_time":  m.LastNotifyTime,
		"last_db_error":     m.LastDBError,
		"last_mq_error":     m.LastMQError,
	}
}
