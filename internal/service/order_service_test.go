package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aa547887/GameSpace-sub003/internal/datamodels/order"
	"github.com/aa547887/GameSpace-sub003/internal/repository/mysql"
)

func TestChangeStatusFollowsStateMachine(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(mysql.NewOrderRepository(db))
	o := seedOrder(t, db, "OR0000000100", "100.00")

	require.NoError(t, svc.ChangeStatus(testCtx, o.ID, order.StatusProcessing, "转入备货"))
	require.NoError(t, svc.ChangeStatus(testCtx, o.ID, order.StatusShipped, "已出货"))
	require.NoError(t, svc.ChangeStatus(testCtx, o.ID, order.StatusCompleted, ""))

	got := reloadOrder(t, db, o.ID)
	assert.Equal(t, order.StatusCompleted, got.OrderStatus)

	history, err := svc.ListHistory(testCtx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, order.StatusCreated, history[0].FromStatus)
	assert.Equal(t, order.StatusProcessing, history[0].ToStatus)
	assert.Equal(t, order.StatusCompleted, history[2].ToStatus)
}

func TestChangeStatusSameStateIsNoop(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(mysql.NewOrderRepository(db))
	o := seedOrder(t, db, "OR0000000101", "100.00")

	// 出货 worker 可能重复消费同一条消息，相同状态要静默成功
	require.NoError(t, svc.ChangeStatus(testCtx, o.ID, order.StatusCreated, "重复消费"))
	assert.EqualValues(t, 0, countRows(t, db, &order.StatusHistory{}, "order_id = ?", o.ID))
}

func TestChangeStatusRejectsInvalidTransition(t *testing.T) {
	db := newTestDB(t)
	svc := NewOrderService(mysql.NewOrderRepository(db))
	o := seedOrder(t, db, "OR0000000102", "100.00")

	assert.Error(t, svc.ChangeStatus(testCtx, o.ID, order.StatusCompleted, ""))
	assert.Error(t, svc.ChangeStatus(testCtx, o.ID, order.StatusShipped, ""))

	require.NoError(t, svc.ChangeStatus(testCtx, o.ID, order.StatusCancelled, "买家取消"))
	// 取消是终态
	assert.Error(t, svc.ChangeStatus(testCtx, o.ID, order.StatusProcessing, ""))
}
