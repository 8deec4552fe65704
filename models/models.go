// models/models.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomStatus is the lifecycle tag of a room.
type RoomStatus string

const (
	RoomOpen      RoomStatus = "OPEN"
	RoomFull      RoomStatus = "FULL"
	RoomCompleted RoomStatus = "COMPLETED"
)

// GameStatus is the lifecycle tag of a game.
type GameStatus string

const (
	GameInProgress GameStatus = "IN_PROGRESS"
	GameCompleted  GameStatus = "COMPLETED"
)

// Feedback tells the guesser where the secret lies.
type Feedback string

const (
	FeedbackHigher  Feedback = "HIGHER"
	FeedbackLower   Feedback = "LOWER"
	FeedbackCorrect Feedback = "CORRECT"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxBet      TransactionType = "bet"
	TxWin      TransactionType = "win"
	TxDeposit  TransactionType = "deposit"
	TxWithdraw TransactionType = "withdraw"
	TxRefund   TransactionType = "refund"
)

const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

// SecretMin and SecretMax bound both the secret and every guess.
const (
	SecretMin = 1
	SecretMax = 100
)

// User is the account row owned by the ledger. Balance is only ever changed
// under a row lock.
type User struct {
	ID        uint            `gorm:"primaryKey"`
	Email     string          `gorm:"uniqueIndex;not null"`
	Role      string          `gorm:"type:varchar(20);not null;default:player"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is an immutable ledger history entry.
type Transaction struct {
	ID           uint            `gorm:"primaryKey"`
	UserID       uint            `gorm:"not null;index"`
	User         *User           `gorm:"foreignKey:UserID"`
	GameID       *uint           `gorm:"index"`
	Type         TransactionType `gorm:"type:varchar(20);not null;index"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt    time.Time       `gorm:"index"`
}

// BetSettings is the singleton stake policy, stored under BetSettingsID.
type BetSettings struct {
	ID        uint            `gorm:"primaryKey"`
	MinBet    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MaxBet    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Step      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	UpdatedAt time.Time
}

// BetSettingsID is the fixed key of the settings row.
const BetSettingsID uint = 1

// Room is a two-player lobby. The creator always sits in slot 1.
type Room struct {
	ID        uint            `gorm:"primaryKey"`
	BetAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status    RoomStatus      `gorm:"type:varchar(20);not null;index"`
	CreatorID uint            `gorm:"not null;index"`
	Creator   *User           `gorm:"foreignKey:CreatorID"`
	Player1ID *uint           `gorm:"index"`
	Player1   *User           `gorm:"foreignKey:Player1ID"`
	Player2ID *uint           `gorm:"index"`
	Player2   *User           `gorm:"foreignKey:Player2ID"`
	CreatedAt time.Time       `gorm:"index"`
	UpdatedAt time.Time
}

// PlayersCount returns how many slots are occupied.
func (r *Room) PlayersCount() int {
	n := 0
	if r.Player1ID != nil {
		n++
	}
	if r.Player2ID != nil {
		n++
	}
	return n
}

// IsFull reports whether both slots are occupied.
func (r *Room) IsFull() bool {
	return r.PlayersCount() == 2
}

// HasPlayer reports whether userID sits in either slot.
func (r *Room) HasPlayer(userID uint) bool {
	return (r.Player1ID != nil && *r.Player1ID == userID) ||
		(r.Player2ID != nil && *r.Player2ID == userID)
}

// Opponent returns the other seated player. ok is false when userID is not
// seated or the other slot is empty.
func (r *Room) Opponent(userID uint) (uint, bool) {
	switch {
	case r.Player1ID != nil && *r.Player1ID == userID && r.Player2ID != nil:
		return *r.Player2ID, true
	case r.Player2ID != nil && *r.Player2ID == userID && r.Player1ID != nil:
		return *r.Player1ID, true
	}
	return 0, false
}

// Game is the single playthrough of a room. Secret never leaves the server.
type Game struct {
	ID            uint       `gorm:"primaryKey"`
	RoomID        uint       `gorm:"uniqueIndex;not null"`
	Room          *Room      `gorm:"foreignKey:RoomID"`
	Secret        int        `gorm:"not null"`
	CurrentTurnID uint       `gorm:"not null"`
	CurrentTurn   *User      `gorm:"foreignKey:CurrentTurnID"`
	Status        GameStatus `gorm:"type:varchar(20);not null;index"`
	WinnerID      *uint
	Winner        *User     `gorm:"foreignKey:WinnerID"`
	StartedAt     time.Time `gorm:"index"`
	EndedAt       *time.Time
	Guesses       []Guess `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"`
}

// Guess is append-only: rows are inserted once and never updated.
type Guess struct {
	ID          uint     `gorm:"primaryKey"`
	GameID      uint     `gorm:"not null;index"`
	PlayerID    uint     `gorm:"not null"`
	Player      *User    `gorm:"foreignKey:PlayerID"`
	GuessNumber int      `gorm:"not null"`
	Feedback    Feedback `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Transaction{},
		&BetSettings{},
		&Room{},
		&Game{},
		&Guess{},
	}
}
