// Package settings serves the singleton bet settings row from an in-process
// cache. Admin updates write through; Refresh picks up changes made by other
// processes.
package settings

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/persistence"
)

type Store struct {
	db       persistence.Database
	defaults models.BetSettings

	mu     sync.RWMutex
	cached *models.BetSettings
}

// NewStore returns a store that seeds the row with defaults on first use.
func NewStore(db persistence.Database, minBet, maxBet, step decimal.Decimal) *Store {
	return &Store{
		db: db,
		defaults: models.BetSettings{
			ID:     models.BetSettingsID,
			MinBet: minBet,
			MaxBet: maxBet,
			Step:   step,
		},
	}
}

// Validate checks a settings triple.
func Validate(minBet, maxBet, step decimal.Decimal) error {
	switch {
	case !minBet.IsPositive():
		return apperr.Wrap(apperr.ErrInvalidSettings, "min_bet must be greater than 0")
	case minBet.GreaterThanOrEqual(maxBet):
		return apperr.Wrap(apperr.ErrInvalidSettings, "min_bet must be less than max_bet")
	case !step.IsPositive():
		return apperr.Wrap(apperr.ErrInvalidSettings, "step must be greater than 0")
	}
	return nil
}

// Get returns the current settings, loading them on first call.
func (s *Store) Get(ctx context.Context) (models.BetSettings, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads the row, creating it from defaults when missing.
func (s *Store) Refresh(ctx context.Context) (models.BetSettings, error) {
	row := s.defaults
	err := s.db.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return models.BetSettings{}, err
	}

	var current models.BetSettings
	if err := s.db.DB(ctx).First(&current, models.BetSettingsID).Error; err != nil {
		return models.BetSettings{}, err
	}

	s.store(current)
	return current, nil
}

// Update validates and persists new settings, then refreshes the cache.
func (s *Store) Update(ctx context.Context, minBet, maxBet, step decimal.Decimal) (models.BetSettings, error) {
	if err := Validate(minBet, maxBet, step); err != nil {
		return models.BetSettings{}, err
	}

	row := models.BetSettings{
		ID:     models.BetSettingsID,
		MinBet: minBet,
		MaxBet: maxBet,
		Step:   step,
	}
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"min_bet", "max_bet", "step", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return models.BetSettings{}, err
	}

	logger.Log.Infof("Bet settings updated: min=%s max=%s step=%s",
		minBet.StringFixed(2), maxBet.StringFixed(2), step.StringFixed(2))
	s.store(row)
	return row, nil
}

// ValidateStake enforces min <= stake <= max and (stake - min) % step == 0.
func (s *Store) ValidateStake(ctx context.Context, stake decimal.Decimal) error {
	if !stake.IsPositive() {
		return apperr.Wrap(apperr.ErrInvalidStake, "bet amount must be greater than 0")
	}

	cfg, err := s.Get(ctx)
	if err != nil {
		return err
	}
	return CheckStake(cfg, stake)
}

// CheckStake applies cfg to stake without touching the store.
func CheckStake(cfg models.BetSettings, stake decimal.Decimal) error {
	if stake.LessThan(cfg.MinBet) {
		return apperr.Wrap(apperr.ErrInvalidStake, "bet amount must be at least %s", cfg.MinBet.StringFixed(2))
	}
	if stake.GreaterThan(cfg.MaxBet) {
		return apperr.Wrap(apperr.ErrInvalidStake, "bet amount must not exceed %s", cfg.MaxBet.StringFixed(2))
	}
	if !stake.Sub(cfg.MinBet).Mod(cfg.Step).IsZero() {
		return apperr.Wrap(apperr.ErrInvalidStake, "bet amount must be in increments of %s starting from %s",
			cfg.Step.StringFixed(2), cfg.MinBet.StringFixed(2))
	}
	return nil
}

func (s *Store) store(cfg models.BetSettings) {
	s.mu.Lock()
	s.cached = &cfg
	s.mu.Unlock()
}
