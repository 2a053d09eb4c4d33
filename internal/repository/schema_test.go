package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaGateConcurrentEnsure(t *testing.T) {
	db := newTestDB(t)
	gate := NewSchemaGate(db, "market_cap_milestone_confirmations", milestoneDDL, testTimeout)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = gate.Ensure(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, gate.Ready())

	// 另一个进程的建表门再次执行 DDL 也不报错
	other := NewSchemaGate(db, "market_cap_milestone_confirmations", milestoneDDL, testTimeout)
	require.NoError(t, other.Ensure(context.Background()))

	var count int64
	require.NoError(t, db.Raw(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		"market_cap_milestone_confirmations").Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSchemaGateRetriesAfterFailure(t *testing.T) {
	db := newTestDB(t)
	gate := NewSchemaGate(db, "broken", []string{"CREATE TABLE broken ("}, testTimeout)

	require.Error(t, gate.Ensure(context.Background()))
	assert.False(t, gate.Ready())

	// 修复 DDL 后下一次调用重新尝试，失败没有被缓存
	gate.ddl = []string{"CREATE TABLE IF NOT EXISTS broken (id INTEGER PRIMARY KEY)"}
	require.NoError(t, gate.Ensure(context.Background()))
	assert.True(t, gate.Ready())
}

func TestSchemaGateBoundsDDL(t *testing.T) {
	db := newTestDB(t)
	deadlines := recordDeadlines(t, db)
	gate := NewSchemaGate(db, "token_price_cache", priceCacheDDL, testTimeout)

	require.NoError(t, gate.Ensure(context.Background()))
	seen := deadlines()
	require.Len(t, seen, len(priceCacheDDL))
	assert.NotContains(t, seen, false)
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, isAlreadyExists(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, isAlreadyExists(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isAlreadyExists(&pgconn.PgError{Code: "42601"}))
	assert.True(t, isAlreadyExists(errors.New("table foo already exists")))
	assert.False(t, isAlreadyExists(errors.New("syntax error")))
}
