package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/models"
)

type createRoomRequest struct {
	BetAmount decimal.Decimal `json:"bet_amount"`
}

type guessRequest struct {
	GuessNumber *int `json:"guess_number"`
}

type betSettingsRequest struct {
	MinBet decimal.Decimal `json:"min_bet"`
	MaxBet decimal.Decimal `json:"max_bet"`
	Step   decimal.Decimal `json:"step"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, apperr.Wrap(apperr.ErrBadRequest, "%v", err))
		return false
	}
	return true
}

func (s *GameServer) createRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := s.rooms.CreateRoom(c.Request.Context(), identity(c).UserID, req.BetAmount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Room created successfully",
		"room":    models.NewRoomView(r),
	})
}

func (s *GameServer) listRooms(c *gin.Context) {
	rooms, err := s.rooms.ListRooms(c.Request.Context(), models.RoomStatus(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewRoomViews(rooms))
}

func (s *GameServer) myRooms(c *gin.Context) {
	rooms, err := s.rooms.ListForUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewRoomViews(rooms))
}

func (s *GameServer) getRoom(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := s.rooms.GetRoom(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewRoomView(r))
}

func (s *GameServer) joinRoom(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := s.rooms.JoinRoom(c.Request.Context(), id, identity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	s.publishRoomUpdate(r)
	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully joined the room",
		"room":    models.NewRoomView(r),
	})
}

func (s *GameServer) startGame(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	member, err := s.rooms.IsParticipant(ctx, id, identity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !member {
		writeError(c, apperr.ErrNotParticipant)
		return
	}

	g, err := s.games.StartGame(ctx, id)
	if errors.Is(err, apperr.ErrGameAlreadyExists) {
		body := gin.H{"error": apperr.ErrGameAlreadyExists.Message, "code": apperr.ErrGameAlreadyExists.Code}
		if existing, _ := s.games.GameForRoom(ctx, id); existing != nil {
			body["game"] = models.NewGameView(existing)
		}
		c.AbortWithStatusJSON(apperr.ErrGameAlreadyExists.HTTPStatus(), body)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	s.publishGameStart(g)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Game started successfully",
		"game":    models.NewGameView(g),
	})
}

func (s *GameServer) myGames(c *gin.Context) {
	games, err := s.games.ListForUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewGameViews(games))
}

// getGame hides games from users who did not play them.
func (s *GameServer) getGame(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	g, err := s.games.GetGame(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	who := identity(c)
	if !who.IsAdmin() && (g.Room == nil || !g.Room.HasPlayer(who.UserID)) {
		writeError(c, apperr.ErrGameNotFound)
		return
	}
	c.JSON(http.StatusOK, models.NewGameView(g))
}

func (s *GameServer) makeGuess(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req guessRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.GuessNumber == nil {
		writeError(c, apperr.Wrap(apperr.ErrBadRequest, "guess_number is required"))
		return
	}

	res, err := s.games.MakeGuess(c.Request.Context(), id, identity(c).UserID, *req.GuessNumber)
	if err != nil {
		writeError(c, err)
		return
	}

	s.publishGuess(res)
	c.JSON(http.StatusOK, gin.H{
		"message": "Guess recorded",
		"guess":   models.NewGuessView(res.Guess),
		"game":    models.NewGameView(res.Game),
	})
}

func (s *GameServer) getBetSettings(c *gin.Context) {
	cfg, err := s.settings.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewBetSettingsView(cfg))
}

func (s *GameServer) updateBetSettings(c *gin.Context) {
	var req betSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	cfg, err := s.settings.Update(c.Request.Context(), req.MinBet, req.MaxBet, req.Step)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewBetSettingsView(cfg))
}

func (s *GameServer) myTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	userID := identity(c).UserID

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	txs, err := s.ledger.History(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":      balance,
		"transactions": models.NewTransactionViews(txs),
	})
}

// me returns the caller's account with play statistics.
func (s *GameServer) me(c *gin.Context) {
	profile, err := s.players.GetPlayerWithStats(c.Request.Context(), identity(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *GameServer) deposit(c *gin.Context) {
	var req amountRequest
	if !bindJSON(c, &req) {
		return
	}
	tx, err := s.ledger.Deposit(c.Request.Context(), identity(c).UserID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": tx.BalanceAfter, "transaction": models.NewTransactionView(tx)})
}

func (s *GameServer) withdraw(c *gin.Context) {
	var req amountRequest
	if !bindJSON(c, &req) {
		return
	}
	tx, err := s.ledger.Withdraw(c.Request.Context(), identity(c).UserID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": tx.BalanceAfter, "transaction": models.NewTransactionView(tx)})
}

func (s *GameServer) adminRooms(c *gin.Context) {
	s.listRooms(c)
}

func (s *GameServer) adminGames(c *gin.Context) {
	games, err := s.games.ListGames(c.Request.Context(), models.GameStatus(c.Query("status")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewGameViews(games))
}

func (s *GameServer) adminTransactions(c *gin.Context) {
	txs, err := s.ledger.Transactions(c.Request.Context(), models.TransactionType(c.Query("type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewTransactionViews(txs))
}
