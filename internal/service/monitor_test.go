package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorSnapshotExportsErrorTimes(t *testing.T) {
	m := GetMonitor()
	m.RecordDBError()
	m.RecordMQError()

	snap := m.Snapshot()
	for _, key := range []string{
		"notify_received", "return_received", "confirmed_orders",
		"duplicate_events", "signature_invalid", "amount_mismatches",
		"orders_not_found", "db_errors", "mq_errors",
		"last_notify_time", "last_db_error", "last_mq_error",
	} {
		_, ok := snap[key]
		require.True(t, ok, "missing key %s", key)
	}

	lastDB, ok := snap["last_db_error"].(time.Time)
	require.True(t, ok)
	assert.False(t, lastDB.IsZero())
	lastMQ, ok := snap["last_mq_error"].(time.Time)
	require.True(t, ok)
	assert.False(t, lastMQ.IsZero())
}
