// Package ledger moves money between player balances. Every balance change
// locks the user row for the whole check-then-write and appends an immutable
// transaction record in the same database transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/persistence"
)

type Ledger struct {
	db             persistence.Database
	initialBalance decimal.Decimal
}

// New returns a ledger. initialBalance is granted to accounts created by
// EnsureAccount.
func New(db persistence.Database, initialBalance decimal.Decimal) *Ledger {
	return &Ledger{db: db, initialBalance: initialBalance}
}

// lockUser reads the user row with SELECT ... FOR UPDATE.
func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.ErrUserNotFound, "user %d", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	return &user, nil
}

// CheckAmount accepts positive amounts with at most two decimal places,
// the precision of the balance columns.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return apperr.Wrap(apperr.ErrInvalidAmount, "at most 2 decimal places")
	}
	return nil
}

// apply changes the balance of userID by delta under a row lock and records
// the entry. amount is the positive magnitude stored on the record.
func apply(tx *gorm.DB, userID uint, amount, delta decimal.Decimal, kind models.TransactionType, gameID *uint) (*models.Transaction, error) {
	if err := CheckAmount(amount); err != nil {
		return nil, err
	}

	user, err := lockUser(tx, userID)
	if err != nil {
		return nil, err
	}

	balance := user.Balance.Add(delta)
	if balance.IsNegative() {
		// figures stay in the log; the message can reach the other player
		logger.Log.Infof("Debit of %s refused for user %d: balance %s",
			amount.StringFixed(2), userID, user.Balance.StringFixed(2))
		return nil, apperr.Wrap(apperr.ErrInsufficientBalance, "%s", user.Email)
	}

	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("balance", balance).Error; err != nil {
		return nil, fmt.Errorf("update balance of user %d: %w", userID, err)
	}

	record := &models.Transaction{
		UserID:       userID,
		GameID:       gameID,
		Type:         kind,
		Amount:       amount,
		BalanceAfter: balance,
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("record %s for user %d: %w", kind, userID, err)
	}
	return record, nil
}

// Debit removes amount from userID inside the caller's transaction. It fails
// with apperr.ErrInsufficientBalance without writing anything when the
// balance would go negative.
func (l *Ledger) Debit(tx *gorm.DB, userID uint, amount decimal.Decimal, kind models.TransactionType, gameID *uint) (*models.Transaction, error) {
	return apply(tx, userID, amount, amount.Neg(), kind, gameID)
}

// Credit adds amount to userID inside the caller's transaction.
func (l *Ledger) Credit(tx *gorm.DB, userID uint, amount decimal.Decimal, kind models.TransactionType, gameID *uint) (*models.Transaction, error) {
	return apply(tx, userID, amount, amount, kind, gameID)
}

// BalanceTx reads the balance without locking, for advisory checks.
func (l *Ledger) BalanceTx(tx *gorm.DB, userID uint) (decimal.Decimal, error) {
	var user models.User
	err := tx.Select("id", "balance").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperr.Wrap(apperr.ErrUserNotFound, "user %d", userID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// Balance returns the current balance of userID.
func (l *Ledger) Balance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	return l.BalanceTx(l.db.DB(ctx), userID)
}

// Deposit credits a top-up as its own atomic unit.
func (l *Ledger) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (*models.Transaction, error) {
	var record *models.Transaction
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = l.Credit(tx, userID, amount, models.TxDeposit, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("User %d deposited %s, balance %s", userID, amount.StringFixed(2), record.BalanceAfter.StringFixed(2))
	return record, nil
}

// Withdraw debits a payout as its own atomic unit.
func (l *Ledger) Withdraw(ctx context.Context, userID uint, amount decimal.Decimal) (*models.Transaction, error) {
	var record *models.Transaction
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = l.Debit(tx, userID, amount, models.TxWithdraw, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("User %d withdrew %s, balance %s", userID, amount.StringFixed(2), record.BalanceAfter.StringFixed(2))
	return record, nil
}

// Refund returns a stake to userID. The game flow never refunds; operators
// call it through the admin RPC to resolve abandoned games.
func (l *Ledger) Refund(ctx context.Context, userID uint, amount decimal.Decimal, gameID uint) (*models.Transaction, error) {
	var record *models.Transaction
	err := l.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = l.Credit(tx, userID, amount, models.TxRefund, &gameID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Warnf("Refunded %s to user %d for game %d", amount.StringFixed(2), userID, gameID)
	return record, nil
}

// History lists the transactions of userID, newest first.
func (l *Ledger) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := l.db.DB(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Find(&txs).Error
	return txs, err
}

// Transactions lists every transaction, optionally filtered by kind.
func (l *Ledger) Transactions(ctx context.Context, kind models.TransactionType) ([]models.Transaction, error) {
	q := l.db.DB(ctx).Order("created_at DESC, id DESC")
	if kind != "" {
		q = q.Where("type = ?", kind)
	}
	var txs []models.Transaction
	err := q.Find(&txs).Error
	return txs, err
}

// EnsureAccount creates the account row for an identity issued by the auth
// service if it does not exist yet. Existing rows are left untouched.
func (l *Ledger) EnsureAccount(ctx context.Context, userID uint, email, role string) error {
	if role == "" {
		role = models.RolePlayer
	}
	user := models.User{
		ID:      userID,
		Email:   email,
		Role:    role,
		Balance: l.initialBalance,
	}
	res := l.db.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user)
	if res.Error != nil {
		return fmt.Errorf("ensure account %d: %w", userID, res.Error)
	}
	if res.RowsAffected > 0 {
		logger.Log.Infof("Provisioned account %d (%s) with balance %s", userID, email, l.initialBalance.StringFixed(2))
	}
	return nil
}
