package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomView is the client-facing room snapshot. Derived fields are
// recomputed on every render.
type RoomView struct {
	ID           uint            `json:"id"`
	BetAmount    decimal.Decimal `json:"bet_amount"`
	Status       RoomStatus      `json:"status"`
	Creator      uint            `json:"creator"`
	CreatorEmail string          `json:"creator_email"`
	Player1      *uint           `json:"player1"`
	Player1Email *string         `json:"player1_email"`
	Player2      *uint           `json:"player2"`
	Player2Email *string         `json:"player2_email"`
	PlayersCount int             `json:"players_count"`
	IsFull       bool            `json:"is_full"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// GuessView is the client-facing guess snapshot.
type GuessView struct {
	ID          uint      `json:"id"`
	Game        uint      `json:"game"`
	Player      uint      `json:"player"`
	PlayerEmail string    `json:"player_email"`
	GuessNumber int       `json:"guess_number"`
	Feedback    Feedback  `json:"feedback"`
	CreatedAt   time.Time `json:"created_at"`
}

// GameView is the client-facing game snapshot. It never carries the secret.
type GameView struct {
	ID               uint            `json:"id"`
	RoomID           uint            `json:"room_id"`
	BetAmount        decimal.Decimal `json:"bet_amount"`
	Status           GameStatus      `json:"status"`
	Player1Email     string          `json:"player1_email"`
	Player2Email     string          `json:"player2_email"`
	CurrentTurn      uint            `json:"current_turn"`
	CurrentTurnEmail string          `json:"current_turn_email"`
	Winner           *uint           `json:"winner"`
	WinnerEmail      *string         `json:"winner_email"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          *time.Time      `json:"ended_at"`
	Guesses          []GuessView     `json:"guesses"`
}

// TransactionView is the client-facing ledger entry.
type TransactionView struct {
	ID           uint            `json:"id"`
	User         uint            `json:"user"`
	GameID       *uint           `json:"game_id"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BetSettingsView is the client-facing stake policy.
type BetSettingsView struct {
	MinBet decimal.Decimal `json:"min_bet"`
	MaxBet decimal.Decimal `json:"max_bet"`
	Step   decimal.Decimal `json:"step"`
}

func emailOf(u *User) string {
	if u == nil {
		return ""
	}
	return u.Email
}

func optionalEmail(u *User) *string {
	if u == nil {
		return nil
	}
	e := u.Email
	return &e
}

// NewRoomView renders r. Player associations should be preloaded for the
// email fields to be filled.
func NewRoomView(r *Room) RoomView {
	return RoomView{
		ID:           r.ID,
		BetAmount:    r.BetAmount,
		Status:       r.Status,
		Creator:      r.CreatorID,
		CreatorEmail: emailOf(r.Creator),
		Player1:      r.Player1ID,
		Player1Email: optionalEmail(r.Player1),
		Player2:      r.Player2ID,
		Player2Email: optionalEmail(r.Player2),
		PlayersCount: r.PlayersCount(),
		IsFull:       r.IsFull(),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func NewRoomViews(rooms []Room) []RoomView {
	views := make([]RoomView, 0, len(rooms))
	for i := range rooms {
		views = append(views, NewRoomView(&rooms[i]))
	}
	return views
}

func NewGuessView(g *Guess) GuessView {
	return GuessView{
		ID:          g.ID,
		Game:        g.GameID,
		Player:      g.PlayerID,
		PlayerEmail: emailOf(g.Player),
		GuessNumber: g.GuessNumber,
		Feedback:    g.Feedback,
		CreatedAt:   g.CreatedAt,
	}
}

// NewGameView renders g with its room, players and guesses.
func NewGameView(g *Game) GameView {
	v := GameView{
		ID:               g.ID,
		RoomID:           g.RoomID,
		Status:           g.Status,
		CurrentTurn:      g.CurrentTurnID,
		CurrentTurnEmail: emailOf(g.CurrentTurn),
		Winner:           g.WinnerID,
		WinnerEmail:      optionalEmail(g.Winner),
		StartedAt:        g.StartedAt,
		EndedAt:          g.EndedAt,
		Guesses:          make([]GuessView, 0, len(g.Guesses)),
	}
	if g.Room != nil {
		v.BetAmount = g.Room.BetAmount
		v.Player1Email = emailOf(g.Room.Player1)
		v.Player2Email = emailOf(g.Room.Player2)
	}
	for i := range g.Guesses {
		v.Guesses = append(v.Guesses, NewGuessView(&g.Guesses[i]))
	}
	return v
}

func NewGameViews(games []Game) []GameView {
	views := make([]GameView, 0, len(games))
	for i := range games {
		views = append(views, NewGameView(&games[i]))
	}
	return views
}

func NewTransactionView(t *Transaction) TransactionView {
	return TransactionView{
		ID:           t.ID,
		User:         t.UserID,
		GameID:       t.GameID,
		Type:         t.Type,
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.CreatedAt,
	}
}

func NewTransactionViews(txs []Transaction) []TransactionView {
	views := make([]TransactionView, 0, len(txs))
	for i := range txs {
		views = append(views, NewTransactionView(&txs[i]))
	}
	return views
}

func NewBetSettingsView(s BetSettings) BetSettingsView {
	return BetSettingsView{MinBet: s.MinBet, MaxBet: s.MaxBet, Step: s.Step}
}
