package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/testutil"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.OpenDB(t)
	return NewStore(db, testutil.Money(t, "10"), testutil.Money(t, "1000"), testutil.Money(t, "5"))
}

func TestStore_SeedsDefaults(t *testing.T) {
	s := newStore(t)

	cfg, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.BetSettingsID, cfg.ID)
	assert.True(t, cfg.MinBet.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.MaxBet.Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.Step.Equal(decimal.NewFromInt(5)))
}

func TestStore_ValidateStake(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tests := []struct {
		stake string
		ok    bool
	}{
		{"10", true},
		{"15", true},
		{"100", true},
		{"1000", true},
		{"12", false},
		{"5", false},
		{"1005", false},
		{"0", false},
		{"-10", false},
		{"10.50", false},
	}
	for _, tt := range tests {
		t.Run(tt.stake, func(t *testing.T) {
			err := s.ValidateStake(ctx, testutil.Money(t, tt.stake))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, apperr.ErrInvalidStake), "got %v", err)
			}
		})
	}
}

func TestCheckStake_FractionalStep(t *testing.T) {
	cfg := models.BetSettings{
		MinBet: decimal.RequireFromString("0.50"),
		MaxBet: decimal.RequireFromString("10.00"),
		Step:   decimal.RequireFromString("0.25"),
	}

	assert.NoError(t, CheckStake(cfg, decimal.RequireFromString("0.75")))
	assert.NoError(t, CheckStake(cfg, decimal.RequireFromString("10.00")))
	assert.Error(t, CheckStake(cfg, decimal.RequireFromString("0.80")))
}

func TestStore_Update(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, testutil.Money(t, "20"), testutil.Money(t, "500"), testutil.Money(t, "10"))
	require.NoError(t, err)

	cfg, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.MinBet.Equal(decimal.NewFromInt(20)))
	assert.True(t, cfg.Step.Equal(decimal.NewFromInt(10)))

	// the cache is not the only copy
	fresh := NewStore(s.db, decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(1))
	cfg, err = fresh.Get(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.MaxBet.Equal(decimal.NewFromInt(500)))

	assert.True(t, errors.Is(s.ValidateStake(ctx, testutil.Money(t, "10")), apperr.ErrInvalidStake))
	assert.NoError(t, s.ValidateStake(ctx, testutil.Money(t, "30")))
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		min, max, step string
	}{
		{"min not positive", "0", "100", "5"},
		{"min above max", "100", "50", "5"},
		{"min equals max", "100", "100", "5"},
		{"zero step", "10", "100", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Update(ctx, testutil.Money(t, tt.min), testutil.Money(t, tt.max), testutil.Money(t, tt.step))
			assert.True(t, errors.Is(err, apperr.ErrInvalidSettings), "got %v", err)
		})
	}

	cfg, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.MinBet.Equal(decimal.NewFromInt(10)))
}
