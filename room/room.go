// room/room.go
package room

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
	"github.com/wfunc/guessduel/state"
)

// Balances is the read side of the ledger the manager needs for advisory
// balance checks. Nothing is reserved at room level.
type Balances interface {
	BalanceTx(tx *gorm.DB, userID uint) (decimal.Decimal, error)
}

// StakePolicy validates a stake against the bet settings.
type StakePolicy interface {
	ValidateStake(ctx context.Context, stake decimal.Decimal) error
}

// Manager owns the room lifecycle: creation, admission and lookups.
type Manager struct {
	db       persistence.Database
	balances Balances
	policy   StakePolicy
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(db persistence.Database, balances Balances, policy StakePolicy) *Manager {
	return &Manager{
		db:       db,
		balances: balances,
		policy:   policy,
	}
}

// Preload attaches the player associations used by room snapshots.
func Preload(db *gorm.DB) *gorm.DB {
	return db.Preload("Creator").Preload("Player1").Preload("Player2")
}

// Lock reads a room with SELECT ... FOR UPDATE inside tx.
func Lock(tx *gorm.DB, roomID uint) (*models.Room, error) {
	var room models.Room
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock room %d: %w", roomID, err)
	}
	return &room, nil
}

func load(tx *gorm.DB, roomID uint) (*models.Room, error) {
	var room models.Room
	err := Preload(tx).First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (m *Manager) ensureBalance(tx *gorm.DB, userID uint, stake decimal.Decimal) error {
	balance, err := m.balances.BalanceTx(tx, userID)
	if err != nil {
		return err
	}
	if balance.LessThan(stake) {
		return apperr.Wrap(apperr.ErrInsufficientBalance, "balance %s is below the bet amount %s",
			balance.StringFixed(2), stake.StringFixed(2))
	}
	return nil
}

// CreateRoom opens a room with the creator seated in slot 1. The balance
// check is advisory: stakes are only escrowed when the game starts.
func (m *Manager) CreateRoom(ctx context.Context, creatorID uint, stake decimal.Decimal) (*models.Room, error) {
	if err := m.policy.ValidateStake(ctx, stake); err != nil {
		return nil, err
	}

	var room *models.Room
	err := m.db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := m.ensureBalance(tx, creatorID, stake); err != nil {
			return err
		}

		slot1 := creatorID
		created := models.Room{
			BetAmount: stake,
			Status:    models.RoomOpen,
			CreatorID: creatorID,
			Player1ID: &slot1,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		var err error
		room, err = load(tx, created.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Infof("User %d created room %d with bet %s", creatorID, room.ID, stake.StringFixed(2))
	return room, nil
}

// JoinRoom seats userID in the first empty slot. The room row stays locked
// from the checks to the write, so of two users racing for the last slot
// exactly one gets it and the other sees ErrRoomFull.
func (m *Manager) JoinRoom(ctx context.Context, roomID, userID uint) (*models.Room, error) {
	var room *models.Room
	err := m.db.Transaction(ctx, func(tx *gorm.DB) error {
		locked, err := Lock(tx, roomID)
		if err != nil {
			return err
		}

		switch {
		case locked.Status == models.RoomCompleted:
			return apperr.ErrRoomNotJoinable
		case locked.IsFull():
			return apperr.ErrRoomFull
		case locked.Status != models.RoomOpen:
			return apperr.ErrRoomNotJoinable
		case locked.HasPlayer(userID):
			return apperr.ErrAlreadyJoined
		}

		if err := m.ensureBalance(tx, userID, locked.BetAmount); err != nil {
			return err
		}

		seat := userID
		if locked.Player1ID == nil {
			locked.Player1ID = &seat
		} else {
			locked.Player2ID = &seat
		}
		if locked.IsFull() {
			if err := state.Room.Check(locked.Status, models.RoomFull); err != nil {
				return err
			}
			locked.Status = models.RoomFull
		}

		err = tx.Model(&models.Room{}).Where("id = ?", locked.ID).Updates(map[string]interface{}{
			"player1_id": locked.Player1ID,
			"player2_id": locked.Player2ID,
			"status":     locked.Status,
		}).Error
		if err != nil {
			return fmt.Errorf("seat user %d in room %d: %w", userID, roomID, err)
		}

		room, err = load(tx, roomID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Infof("User %d joined room %d (players=%d, status=%s)", userID, roomID, room.PlayersCount(), room.Status)
	return room, nil
}

// GetRoom 从数据库中获取一个房间
func (m *Manager) GetRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	return load(m.db.DB(ctx), roomID)
}

// IsParticipant reports whether userID occupies a slot of roomID.
func (m *Manager) IsParticipant(ctx context.Context, roomID, userID uint) (bool, error) {
	var room models.Room
	err := m.db.DB(ctx).Select("id", "player1_id", "player2_id").First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperr.ErrRoomNotFound
	}
	if err != nil {
		return false, err
	}
	return room.HasPlayer(userID), nil
}

// ListRooms returns rooms newest first, optionally filtered by status.
func (m *Manager) ListRooms(ctx context.Context, status models.RoomStatus) ([]models.Room, error) {
	q := Preload(m.db.DB(ctx)).Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rooms []models.Room
	err := q.Find(&rooms).Error
	return rooms, err
}

// ListForUser returns the rooms userID sits in, newest first.
func (m *Manager) ListForUser(ctx context.Context, userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := Preload(m.db.DB(ctx)).
		Where("player1_id = ? OR player2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&rooms).Error
	return rooms, err
}

// CountActive counts rooms that are not completed.
func (m *Manager) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := m.db.DB(ctx).Model(&models.Room{}).Where("status <> ?", models.RoomCompleted).Count(&n).Error
	return n, err
}
