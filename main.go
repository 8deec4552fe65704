package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/guessduel/auth"
	"github.com/wfunc/guessduel/broadcast"
	"github.com/wfunc/guessduel/config"
	"github.com/wfunc/guessduel/game"
	"github.com/wfunc/guessduel/ledger"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/monitor"
	"github.com/wfunc/guessduel/network"
	"github.com/wfunc/guessduel/persistence"
	"github.com/wfunc/guessduel/room"
	"github.com/wfunc/guessduel/rpc"
	"github.com/wfunc/guessduel/server"
	"github.com/wfunc/guessduel/session"
	"github.com/wfunc/guessduel/settings"
	"github.com/wfunc/guessduel/timer"
)

// CLI is the server command line.
type CLI struct {
	Config string `help:"Directory containing config.yaml." default:"." type:"path"`
	Level  string `help:"Override the configured log level."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("guessduel"),
		kong.Description("Two-player wagered number guessing server."),
	)

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cli.Level != "" {
		cfg.Log.Level = cli.Level
	}

	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Fatalf("Server stopped: %v", err)
	}
	logger.Log.Info("Server exited.")
}

func openDatabase(cfg config.DatabaseConfig) (*persistence.GormDB, error) {
	pool := persistence.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		LogLevel:        cfg.LogLevel,
		SlowThreshold:   cfg.SlowThreshold,
	}

	switch cfg.Driver {
	case "postgres", "":
		return persistence.NewGormPostgreSQL(persistence.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		}, pool)
	case "sqlite":
		return persistence.NewGormSQLite(cfg.SQLite.Path, pool)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func parseMoney(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func run(cfg *config.Config) error {
	initialBalance, err := parseMoney("ledger.initial_balance", cfg.Ledger.InitialBalance)
	if err != nil {
		return err
	}
	minBet, err := parseMoney("bet.min_bet", cfg.Bet.MinBet)
	if err != nil {
		return err
	}
	maxBet, err := parseMoney("bet.max_bet", cfg.Bet.MaxBet)
	if err != nil {
		return err
	}
	step, err := parseMoney("bet.step", cfg.Bet.Step)
	if err != nil {
		return err
	}
	if err := settings.Validate(minBet, maxBet, step); err != nil {
		return err
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Log.Infof("Database connection successful (%s).", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := ledger.New(db, initialBalance)
	store := settings.NewStore(db, minBet, maxBet, step)
	if _, err := store.Refresh(ctx); err != nil {
		return fmt.Errorf("load bet settings: %w", err)
	}
	rooms := room.NewRoomManager(db, l, store)
	games := game.NewEngine(db, l, quartz.NewReal(), nil)

	validator, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mon := monitor.NewMonitor("guessduel", registry)

	gs := server.NewGameServer(cfg.Server.HTTPAddress, server.Deps{
		DB:       db,
		Rooms:    rooms,
		Games:    games,
		Ledger:   l,
		Settings: store,
		Hub:      broadcast.NewHub(),
		Sessions: session.NewManager(),
		Gateway:  session.NewGateway(validator, l, rooms),
		Monitor:  mon,
		WebSocket: network.Options{
			SendBuffer:     cfg.Server.WebSocket.SendBuffer,
			WriteWait:      cfg.Server.WebSocket.WriteWait,
			PongWait:       cfg.Server.WebSocket.PongWait,
			MaxMessageSize: cfg.Server.WebSocket.MaxMessageSize,
		},
		DisableMetrics: !cfg.Server.Metrics,
	})

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewGameService(store, rooms, l, cfg.Auth.AdminSecret))
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}

	scheduler := timer.NewTimerManager(quartz.NewReal(), 100*time.Millisecond)
	if interval := cfg.Settings.RefreshInterval; interval > 0 {
		scheduler.AddTimer(interval, interval, func() {
			if _, err := store.Refresh(ctx); err != nil {
				logger.Log.Warnf("Bet settings refresh failed: %v", err)
			}
		})
	}
	scheduler.AddTimer(0, 15*time.Second, func() {
		n, err := rooms.CountActive(ctx)
		if err != nil {
			logger.Log.Warnf("Counting active rooms failed: %v", err)
			return
		}
		mon.SetActiveRooms(n)
	})
	logger.Log.Infof("Scheduled %d background tasks", scheduler.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(gs.Start)
	g.Go(rpcServer.Start)
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		logger.Log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rpcServer.Stop()
		return gs.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
