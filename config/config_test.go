package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.RPCAddress)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "10.00", cfg.Bet.MinBet)
	assert.Equal(t, "1000.00", cfg.Bet.MaxBet)
	assert.Equal(t, "5.00", cfg.Bet.Step)
	assert.Equal(t, "1000.00", cfg.Ledger.InitialBalance)
	assert.Equal(t, 30*time.Second, cfg.Settings.RefreshInterval)
	assert.Equal(t, 64, cfg.Server.WebSocket.SendBuffer)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":9090"
database:
  driver: sqlite
  sqlite:
    path: /tmp/test.db
auth:
  mode: static
  tokens:
    - token: alice-token
      user_id: 1
      email: alice@example.com
      role: player
bet:
  step: "10.00"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddress)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/test.db", cfg.Database.SQLite.Path)
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, uint(1), cfg.Auth.Tokens[0].UserID)
	assert.Equal(t, "alice@example.com", cfg.Auth.Tokens[0].Email)
	assert.Equal(t, "10.00", cfg.Bet.Step)
	assert.Equal(t, "10.00", cfg.Bet.MinBet)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("GUESS_SERVER_HTTP_ADDRESS", ":7070")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.HTTPAddress)
}
