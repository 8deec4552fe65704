// services/player_service.go
package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/persistence"
)

type PlayerService struct {
	db persistence.Database
}

func NewPlayerService(db persistence.Database) *PlayerService {
	return &PlayerService{db: db}
}

// PlayerStats summarises an account's play history.
type PlayerStats struct {
	GamesPlayed  int64           `json:"games_played"`
	GamesWon     int64           `json:"games_won"`
	InProgress   int64           `json:"in_progress"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	TotalWon     decimal.Decimal `json:"total_won"`
	Net          decimal.Decimal `json:"net"`
}

// PlayerProfile is the account together with its stats.
type PlayerProfile struct {
	ID      uint            `json:"id"`
	Email   string          `json:"email"`
	Role    string          `json:"role"`
	Balance decimal.Decimal `json:"balance"`
	Stats   PlayerStats     `json:"stats"`
}

// GetPlayerWithStats reads the account and its stats in one transaction so
// the balance and totals come from the same snapshot.
func (s *PlayerService) GetPlayerWithStats(ctx context.Context, userID uint) (*PlayerProfile, error) {
	var profile *PlayerProfile

	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		var user models.User
		err := tx.First(&user, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Wrap(apperr.ErrUserNotFound, "user %d", userID)
		}
		if err != nil {
			return err
		}

		stats, err := playerStats(tx, userID)
		if err != nil {
			return err
		}

		profile = &PlayerProfile{
			ID:      user.ID,
			Email:   user.Email,
			Role:    user.Role,
			Balance: user.Balance,
			Stats:   *stats,
		}
		return nil
	})
	return profile, err
}

func playerStats(tx *gorm.DB, userID uint) (*PlayerStats, error) {
	seated := tx.Model(&models.Room{}).Select("id").
		Where("player1_id = ? OR player2_id = ?", userID, userID)

	var stats PlayerStats
	err := tx.Model(&models.Game{}).
		Where("room_id IN (?) AND status = ?", seated, models.GameCompleted).
		Count(&stats.GamesPlayed).Error
	if err != nil {
		return nil, err
	}
	err = tx.Model(&models.Game{}).
		Where("room_id IN (?) AND status = ?", seated, models.GameInProgress).
		Count(&stats.InProgress).Error
	if err != nil {
		return nil, err
	}
	err = tx.Model(&models.Game{}).Where("winner_id = ?", userID).Count(&stats.GamesWon).Error
	if err != nil {
		return nil, err
	}

	if stats.TotalWagered, err = sumAmounts(tx, userID, models.TxBet); err != nil {
		return nil, err
	}
	if stats.TotalWon, err = sumAmounts(tx, userID, models.TxWin); err != nil {
		return nil, err
	}
	stats.Net = stats.TotalWon.Sub(stats.TotalWagered)
	return &stats, nil
}

// sumAmounts adds up in Go; SUM over decimal columns comes back as float on
// SQLite.
func sumAmounts(tx *gorm.DB, userID uint, kind models.TransactionType) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := tx.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", userID, kind).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}
