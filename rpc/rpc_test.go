package rpc

import (
	"context"
	netrpc "net/rpc"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/guessduel/ledger"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/persistence"
	"github.com/wfunc/guessduel/room"
	"github.com/wfunc/guessduel/settings"
	"github.com/wfunc/guessduel/testutil"
)

const testSecret = "operator-secret"

type rpcEnv struct {
	db     *persistence.GormDB
	rooms  *room.Manager
	client *netrpc.Client
}

// dialService serves a GameService configured with secret on a loopback port.
func dialService(t *testing.T, secret string) *rpcEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	l := ledger.New(db, testutil.Money(t, "1000"))
	store := settings.NewStore(db, testutil.Money(t, "10"), testutil.Money(t, "1000"), testutil.Money(t, "5"))
	rooms := room.NewRoomManager(db, l, store)

	srv, err := NewServer("127.0.0.1:0", NewGameService(store, rooms, l, secret))
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	t.Cleanup(srv.Stop)

	client, err := netrpc.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return &rpcEnv{db: db, rooms: rooms, client: client}
}

func TestGameService_OverTheWire(t *testing.T) {
	env := dialService(t, testSecret)
	client := env.client
	alice := testutil.CreateUser(t, env.db, "alice@example.com", "100")

	_, err := env.rooms.CreateRoom(context.Background(), alice.ID, testutil.Money(t, "10"))
	require.NoError(t, err)

	var cfg BetSettingsReply
	require.NoError(t, client.Call("GameService.GetBetSettings", &GetBetSettingsArgs{}, &cfg))
	assert.Equal(t, "10.00", cfg.MinBet)
	assert.Equal(t, "5.00", cfg.Step)

	err = client.Call("GameService.UpdateBetSettings", &BetSettingsArgs{Secret: testSecret, MinBet: "100", MaxBet: "50", Step: "5"}, &cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "min_bet must be less than max_bet"))

	require.NoError(t, client.Call("GameService.UpdateBetSettings", &BetSettingsArgs{Secret: testSecret, MinBet: "20", MaxBet: "200", Step: "10"}, &cfg))
	assert.Equal(t, "200.00", cfg.MaxBet)

	var fresh BetSettingsReply
	require.NoError(t, client.Call("GameService.GetBetSettings", &GetBetSettingsArgs{Fresh: true}, &fresh))
	assert.Equal(t, "20.00", fresh.MinBet)

	var list ListRoomsReply
	require.NoError(t, client.Call("GameService.ListRooms", &ListRoomsArgs{Status: "OPEN"}, &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, "10.00", list.Rooms[0].BetAmount)
	assert.Equal(t, 1, list.Rooms[0].PlayersCount)

	var dep DepositReply
	require.NoError(t, client.Call("GameService.Deposit", &DepositArgs{Secret: testSecret, UserID: alice.ID, Amount: "50"}, &dep))
	assert.Equal(t, "150.00", dep.Balance)

	err = client.Call("GameService.Deposit", &DepositArgs{Secret: testSecret, UserID: alice.ID, Amount: "lots"}, &dep)
	assert.Error(t, err)

	var refund RefundReply
	require.NoError(t, client.Call("GameService.Refund", &RefundArgs{Secret: testSecret, UserID: alice.ID, GameID: 7, Amount: "25"}, &refund))
	assert.Equal(t, "175.00", refund.Balance)
	assert.NotZero(t, refund.TransactionID)
	assert.EqualValues(t, 1, testutil.CountTransactions(t, env.db, alice.ID, models.TxRefund))
}

func TestGameService_MutationsNeedSecret(t *testing.T) {
	env := dialService(t, testSecret)
	alice := testutil.CreateUser(t, env.db, "alice@example.com", "100")

	calls := []struct {
		method string
		args   interface{}
		reply  interface{}
	}{
		{"GameService.Deposit", &DepositArgs{UserID: alice.ID, Amount: "9999999"}, &DepositReply{}},
		{"GameService.Deposit", &DepositArgs{Secret: "guess", UserID: alice.ID, Amount: "9999999"}, &DepositReply{}},
		{"GameService.Refund", &RefundArgs{UserID: alice.ID, GameID: 1, Amount: "50"}, &RefundReply{}},
		{"GameService.UpdateBetSettings", &BetSettingsArgs{MinBet: "1", MaxBet: "2", Step: "1"}, &BetSettingsReply{}},
	}
	for _, c := range calls {
		err := env.client.Call(c.method, c.args, c.reply)
		require.Error(t, err, c.method)
		assert.Contains(t, err.Error(), "authentication required", c.method)
	}

	assert.True(t, testutil.Balance(t, env.db, alice.ID).Equal(testutil.Money(t, "100")))
	assert.EqualValues(t, 0, testutil.CountTransactions(t, env.db, alice.ID, models.TxDeposit))

	// reads stay open
	var cfg BetSettingsReply
	require.NoError(t, env.client.Call("GameService.GetBetSettings", &GetBetSettingsArgs{}, &cfg))
	assert.Equal(t, "10.00", cfg.MinBet)
}

func TestGameService_NoSecretConfigured(t *testing.T) {
	env := dialService(t, "")
	alice := testutil.CreateUser(t, env.db, "alice@example.com", "100")

	var dep DepositReply
	err := env.client.Call("GameService.Deposit", &DepositArgs{UserID: alice.ID, Amount: "10"}, &dep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin calls are disabled")
	assert.True(t, testutil.Balance(t, env.db, alice.ID).Equal(testutil.Money(t, "100")))
}
