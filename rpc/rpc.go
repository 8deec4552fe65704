// Package rpc serves the operator-facing admin service over net/rpc.
package rpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/ledger"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/room"
	"github.com/wfunc/guessduel/settings"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers service.
func NewServer(addr string, service *GameService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.Register(service); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	return s.address
}

// Start accepts connections until the listener is closed.
func (s *Server) Start() error {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return nil
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService is the struct that exposes RPC methods. Money travels as
// decimal strings. Calls that change settings or balances must carry the
// admin secret; with no secret configured they are refused.
type GameService struct {
	settings    *settings.Store
	rooms       *room.Manager
	ledger      *ledger.Ledger
	adminSecret string
	timeout     time.Duration
}

func NewGameService(store *settings.Store, rooms *room.Manager, l *ledger.Ledger, adminSecret string) *GameService {
	return &GameService{
		settings:    store,
		rooms:       rooms,
		ledger:      l,
		adminSecret: adminSecret,
		timeout:     5 * time.Second,
	}
}

// authorize checks the secret sent with a mutating call.
func (gs *GameService) authorize(method, secret string) error {
	if gs.adminSecret == "" {
		logger.Log.Warnf("RPC %s refused: no admin secret configured", method)
		return apperr.Wrap(apperr.ErrForbidden, "admin calls are disabled")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(gs.adminSecret)) != 1 {
		logger.Log.Warnf("RPC %s refused: bad admin secret", method)
		return apperr.ErrUnauthenticated
	}
	return nil
}

// GetBetSettingsArgs asks for the cached settings, or a reload from the
// store when Fresh is set.
type GetBetSettingsArgs struct {
	Fresh bool
}

type BetSettingsArgs struct {
	Secret string
	MinBet string
	MaxBet string
	Step   string
}

type BetSettingsReply struct {
	MinBet string
	MaxBet string
	Step   string
}

type ListRoomsArgs struct {
	Status string
}

type RoomSummary struct {
	ID           uint
	BetAmount    string
	Status       string
	CreatorID    uint
	PlayersCount int
}

type ListRoomsReply struct {
	Rooms []RoomSummary
}

type DepositArgs struct {
	Secret string
	UserID uint
	Amount string
}

type DepositReply struct {
	Balance string
}

// RefundArgs returns Amount to UserID against GameID, for games an operator
// resolves by hand.
type RefundArgs struct {
	Secret string
	UserID uint
	GameID uint
	Amount string
}

type RefundReply struct {
	Balance       string
	TransactionID uint
}

func (gs *GameService) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), gs.timeout)
}

func settingsReply(cfg models.BetSettings, reply *BetSettingsReply) {
	reply.MinBet = cfg.MinBet.StringFixed(2)
	reply.MaxBet = cfg.MaxBet.StringFixed(2)
	reply.Step = cfg.Step.StringFixed(2)
}

func parseMoney(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.ErrBadRequest, "%s: %q is not a number", field, s)
	}
	return d, nil
}

func (gs *GameService) GetBetSettings(args *GetBetSettingsArgs, reply *BetSettingsReply) error {
	ctx, cancel := gs.context()
	defer cancel()

	get := gs.settings.Get
	if args.Fresh {
		get = gs.settings.Refresh
	}
	cfg, err := get(ctx)
	if err != nil {
		return err
	}
	settingsReply(cfg, reply)
	return nil
}

func (gs *GameService) UpdateBetSettings(args *BetSettingsArgs, reply *BetSettingsReply) error {
	if err := gs.authorize("UpdateBetSettings", args.Secret); err != nil {
		return err
	}
	minBet, err := parseMoney("min_bet", args.MinBet)
	if err != nil {
		return err
	}
	maxBet, err := parseMoney("max_bet", args.MaxBet)
	if err != nil {
		return err
	}
	step, err := parseMoney("step", args.Step)
	if err != nil {
		return err
	}

	ctx, cancel := gs.context()
	defer cancel()
	cfg, err := gs.settings.Update(ctx, minBet, maxBet, step)
	if err != nil {
		return err
	}
	settingsReply(cfg, reply)
	return nil
}

func (gs *GameService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	ctx, cancel := gs.context()
	defer cancel()

	rooms, err := gs.rooms.ListRooms(ctx, models.RoomStatus(args.Status))
	if err != nil {
		return err
	}
	reply.Rooms = make([]RoomSummary, 0, len(rooms))
	for i := range rooms {
		r := &rooms[i]
		reply.Rooms = append(reply.Rooms, RoomSummary{
			ID:           r.ID,
			BetAmount:    r.BetAmount.StringFixed(2),
			Status:       string(r.Status),
			CreatorID:    r.CreatorID,
			PlayersCount: r.PlayersCount(),
		})
	}
	return nil
}

func (gs *GameService) Deposit(args *DepositArgs, reply *DepositReply) error {
	if err := gs.authorize("Deposit", args.Secret); err != nil {
		return err
	}
	amount, err := parseMoney("amount", args.Amount)
	if err != nil {
		return err
	}

	ctx, cancel := gs.context()
	defer cancel()
	tx, err := gs.ledger.Deposit(ctx, args.UserID, amount)
	if err != nil {
		return err
	}
	reply.Balance = tx.BalanceAfter.StringFixed(2)
	return nil
}

func (gs *GameService) Refund(args *RefundArgs, reply *RefundReply) error {
	if err := gs.authorize("Refund", args.Secret); err != nil {
		return err
	}
	amount, err := parseMoney("amount", args.Amount)
	if err != nil {
		return err
	}

	ctx, cancel := gs.context()
	defer cancel()
	tx, err := gs.ledger.Refund(ctx, args.UserID, amount, args.GameID)
	if err != nil {
		return err
	}
	reply.Balance = tx.BalanceAfter.StringFixed(2)
	reply.TransactionID = tx.ID
	return nil
}
