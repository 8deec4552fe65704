// Package game runs a room's single playthrough: secret selection, turn
// order, guess evaluation and settlement. Every operation is one database
// transaction holding the room and game row locks, so money and game state
// always change together.
package game

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/persistence"
	"github.com/wfunc/guessduel/room"
	"github.com/wfunc/guessduel/state"
)

// Escrow is the part of the ledger the engine moves stakes through. Both
// calls run inside the engine's transaction.
type Escrow interface {
	Debit(tx *gorm.DB, userID uint, amount decimal.Decimal, kind models.TransactionType, gameID *uint) (*models.Transaction, error)
	Credit(tx *gorm.DB, userID uint, amount decimal.Decimal, kind models.TransactionType, gameID *uint) (*models.Transaction, error)
}

type Engine struct {
	db     persistence.Database
	escrow Escrow
	clock  quartz.Clock
	rng    RandSource
}

// NewEngine returns an engine. A nil rng means CryptoRand.
func NewEngine(db persistence.Database, escrow Escrow, clock quartz.Clock, rng RandSource) *Engine {
	if rng == nil {
		rng = CryptoRand{}
	}
	return &Engine{db: db, escrow: escrow, clock: clock, rng: rng}
}

// GuessResult is what MakeGuess reports back.
type GuessResult struct {
	Guess *models.Guess
	Game  *models.Game
	// Payout is the win entry when the guess ended the game.
	Payout *models.Transaction
}

// Finished reports whether the guess won the game.
func (r *GuessResult) Finished() bool {
	return r.Guess.Feedback == models.FeedbackCorrect
}

// Feedback compares guess to secret from the guesser's point of view:
// HIGHER means the secret is above the guess.
func Feedback(secret, guess int) models.Feedback {
	switch {
	case guess < secret:
		return models.FeedbackHigher
	case guess > secret:
		return models.FeedbackLower
	default:
		return models.FeedbackCorrect
	}
}

func preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Room.Creator").
		Preload("Room.Player1").
		Preload("Room.Player2").
		Preload("CurrentTurn").
		Preload("Winner").
		Preload("Guesses", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Guesses.Player")
}

func load(db *gorm.DB, gameID uint) (*models.Game, error) {
	var g models.Game
	err := preload(db).First(&g, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func lockGame(tx *gorm.DB, gameID uint) (*models.Game, error) {
	var g models.Game
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&g, gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock game %d: %w", gameID, err)
	}
	return &g, nil
}

// StartGame creates the room's game and escrows both stakes. If either
// debit fails nothing is persisted.
func (e *Engine) StartGame(ctx context.Context, roomID uint) (*models.Game, error) {
	var started *models.Game
	err := e.db.Transaction(ctx, func(tx *gorm.DB) error {
		r, err := room.Lock(tx, roomID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Game{}).Where("room_id = ?", roomID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apperr.ErrGameAlreadyExists
		}
		if r.Status != models.RoomFull || !r.IsFull() {
			return apperr.ErrRoomNotFull
		}
		if err := state.Game.Check(state.NoGame, models.GameInProgress); err != nil {
			return err
		}

		players := []uint{*r.Player1ID, *r.Player2ID}
		g := models.Game{
			RoomID:        r.ID,
			Secret:        e.rng.Intn(models.SecretMax-models.SecretMin+1) + models.SecretMin,
			CurrentTurnID: players[e.rng.Intn(2)],
			Status:        models.GameInProgress,
			StartedAt:     e.clock.Now(),
		}
		if err := tx.Create(&g).Error; err != nil {
			return fmt.Errorf("create game for room %d: %w", roomID, err)
		}

		// fixed lock order so two starts touching the same users cannot deadlock
		sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
		for _, id := range players {
			if _, err := e.escrow.Debit(tx, id, r.BetAmount, models.TxBet, &g.ID); err != nil {
				return err
			}
		}

		started, err = load(tx, g.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Infof("Game %d started in room %d, first turn user %d", started.ID, roomID, started.CurrentTurnID)
	return started, nil
}

// MakeGuess records a guess by playerID. A correct guess settles the game
// in the same transaction; otherwise the turn passes to the opponent.
func (e *Engine) MakeGuess(ctx context.Context, gameID, playerID uint, number int) (*GuessResult, error) {
	result := &GuessResult{}
	err := e.db.Transaction(ctx, func(tx *gorm.DB) error {
		g, err := lockGame(tx, gameID)
		if err != nil {
			return err
		}
		r, err := room.Lock(tx, g.RoomID)
		if err != nil {
			return err
		}

		switch {
		case g.Status != models.GameInProgress:
			return apperr.ErrGameNotInProgress
		case !r.HasPlayer(playerID):
			return apperr.ErrNotParticipant
		case g.CurrentTurnID != playerID:
			return apperr.ErrNotYourTurn
		case number < models.SecretMin || number > models.SecretMax:
			return apperr.ErrGuessOutOfRange
		}

		guess := models.Guess{
			GameID:      g.ID,
			PlayerID:    playerID,
			GuessNumber: number,
			Feedback:    Feedback(g.Secret, number),
			CreatedAt:   e.clock.Now(),
		}
		if err := tx.Create(&guess).Error; err != nil {
			return fmt.Errorf("record guess: %w", err)
		}

		if guess.Feedback == models.FeedbackCorrect {
			result.Payout, err = e.settle(tx, g, r, playerID)
			if err != nil {
				return err
			}
		} else {
			next, ok := r.Opponent(playerID)
			if !ok {
				return fmt.Errorf("room %d has no opponent for user %d", r.ID, playerID)
			}
			if err := tx.Model(&models.Game{}).Where("id = ?", g.ID).Update("current_turn_id", next).Error; err != nil {
				return fmt.Errorf("pass turn: %w", err)
			}
		}

		result.Game, err = load(tx, g.ID)
		if err != nil {
			return err
		}
		result.Guess = &guess
		for i := range result.Game.Guesses {
			if result.Game.Guesses[i].ID == guess.ID {
				result.Guess = &result.Game.Guesses[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Debugf("User %d guessed %d in game %d: %s", playerID, number, gameID, result.Guess.Feedback)
	return result, nil
}

// EndGame settles an in-progress game in favour of winnerID.
func (e *Engine) EndGame(ctx context.Context, gameID, winnerID uint) (*models.Game, error) {
	var ended *models.Game
	err := e.db.Transaction(ctx, func(tx *gorm.DB) error {
		g, err := lockGame(tx, gameID)
		if err != nil {
			return err
		}
		r, err := room.Lock(tx, g.RoomID)
		if err != nil {
			return err
		}
		if g.Status != models.GameInProgress {
			return apperr.ErrGameNotInProgress
		}
		if !r.HasPlayer(winnerID) {
			return apperr.ErrNotParticipant
		}
		if _, err := e.settle(tx, g, r, winnerID); err != nil {
			return err
		}
		ended, err = load(tx, g.ID)
		return err
	})
	return ended, err
}

// settle completes g and r and pays the pot to winnerID. Callers hold both
// row locks.
func (e *Engine) settle(tx *gorm.DB, g *models.Game, r *models.Room, winnerID uint) (*models.Transaction, error) {
	if err := state.Game.Check(g.Status, models.GameCompleted); err != nil {
		return nil, err
	}
	if err := state.Room.Check(r.Status, models.RoomCompleted); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	err := tx.Model(&models.Game{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
		"status":    models.GameCompleted,
		"winner_id": winnerID,
		"ended_at":  now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("complete game %d: %w", g.ID, err)
	}
	if err := tx.Model(&models.Room{}).Where("id = ?", r.ID).Update("status", models.RoomCompleted).Error; err != nil {
		return nil, fmt.Errorf("complete room %d: %w", r.ID, err)
	}

	pot := r.BetAmount.Mul(decimal.NewFromInt(2))
	payout, err := e.escrow.Credit(tx, winnerID, pot, models.TxWin, &g.ID)
	if err != nil {
		return nil, err
	}

	logger.Log.Infof("Game %d won by user %d, paid %s", g.ID, winnerID, pot.StringFixed(2))
	return payout, nil
}

// GetGame 获取一局游戏的完整快照
func (e *Engine) GetGame(ctx context.Context, gameID uint) (*models.Game, error) {
	return load(e.db.DB(ctx), gameID)
}

// GameForRoom returns the room's game, or nil when it has not started.
func (e *Engine) GameForRoom(ctx context.Context, roomID uint) (*models.Game, error) {
	var g models.Game
	err := preload(e.db.DB(ctx)).Where("room_id = ?", roomID).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListForUser returns the games played in rooms userID sat in.
func (e *Engine) ListForUser(ctx context.Context, userID uint) ([]models.Game, error) {
	db := e.db.DB(ctx)
	seated := db.Model(&models.Room{}).Select("id").
		Where("player1_id = ? OR player2_id = ?", userID, userID)

	var games []models.Game
	err := preload(db).
		Where("room_id IN (?)", seated).
		Order("started_at DESC, id DESC").
		Find(&games).Error
	return games, err
}

// ListGames returns every game, optionally filtered by status.
func (e *Engine) ListGames(ctx context.Context, status models.GameStatus) ([]models.Game, error) {
	q := preload(e.db.DB(ctx)).Order("started_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var games []models.Game
	err := q.Find(&games).Error
	return games, err
}
