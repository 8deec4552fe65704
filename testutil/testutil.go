// Package testutil provides in-memory stores and fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/persistence"
)

var dbSeq atomic.Int64

// OpenDB returns a fresh in-memory SQLite database closed at test end.
func OpenDB(t testing.TB) *persistence.GormDB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", dbSeq.Add(1))

	db, err := persistence.NewGormSQLite(dsn, persistence.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Money parses a decimal literal, failing the test on bad input.
func Money(t testing.TB, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// CreateUser inserts a player account with the given balance.
func CreateUser(t testing.TB, db persistence.Database, email, balance string) *models.User {
	t.Helper()
	user := &models.User{
		Email:   email,
		Role:    models.RolePlayer,
		Balance: Money(t, balance),
	}
	require.NoError(t, db.DB(t.Context()).Create(user).Error)
	return user
}

// Balance reloads a user's balance.
func Balance(t testing.TB, db persistence.Database, userID uint) decimal.Decimal {
	t.Helper()
	var user models.User
	require.NoError(t, db.DB(t.Context()).First(&user, userID).Error)
	return user.Balance
}

// CountTransactions counts ledger entries of kind for userID.
func CountTransactions(t testing.TB, db persistence.Database, userID uint, kind models.TransactionType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.DB(t.Context()).Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", userID, kind).Count(&n).Error)
	return n
}

// FixedRand is a RandSource that replays values in order, cycling.
type FixedRand struct {
	Values []int
	i      atomic.Int64
}

func (f *FixedRand) Intn(n int) int {
	idx := f.i.Add(1) - 1
	v := f.Values[int(idx)%len(f.Values)]
	if v >= n {
		return n - 1
	}
	return v
}
