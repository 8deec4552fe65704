package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wfunc/guessduel/broadcast"
	"github.com/wfunc/guessduel/game"
	"github.com/wfunc/guessduel/ledger"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/monitor"
	"github.com/wfunc/guessduel/network"
	"github.com/wfunc/guessduel/persistence"
	"github.com/wfunc/guessduel/room"
	"github.com/wfunc/guessduel/services"
	"github.com/wfunc/guessduel/session"
	"github.com/wfunc/guessduel/settings"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	DB        persistence.Database
	Rooms     *room.Manager
	Games     *game.Engine
	Ledger    *ledger.Ledger
	Settings  *settings.Store
	Hub       *broadcast.Hub
	Sessions  *session.Manager
	Gateway   *session.Gateway
	Monitor   *monitor.Monitor
	WebSocket network.Options

	// DisableMetrics drops the /metrics route. Counters are still collected.
	DisableMetrics bool
}

type GameServer struct {
	addr       string
	httpServer *http.Server
	upgrader   websocket.Upgrader
	wsOptions  network.Options

	db       persistence.Database
	rooms    *room.Manager
	games    *game.Engine
	ledger   *ledger.Ledger
	settings *settings.Store
	hub      *broadcast.Hub
	sessions *session.Manager
	gateway  *session.Gateway
	monitor  *monitor.Monitor
	players  *services.PlayerService

	disableMetrics bool
}

func NewGameServer(addr string, deps Deps) *GameServer {
	s := &GameServer{
		addr:      addr,
		wsOptions: deps.WebSocket,
		db:        deps.DB,
		rooms:     deps.Rooms,
		games:     deps.Games,
		ledger:    deps.Ledger,
		settings:  deps.Settings,
		hub:       deps.Hub,
		sessions:  deps.Sessions,
		gateway:   deps.Gateway,
		monitor:   deps.Monitor,
		players:   services.NewPlayerService(deps.DB),

		disableMetrics: deps.DisableMetrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.hub.OnDrop(s.monitor.BroadcastDropped)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s
}

// Handler exposes the router, for tests.
func (s *GameServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every game connection and drains in-flight requests.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.sessions.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *GameServer) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.health)
	if !s.disableMetrics {
		r.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	}
	r.GET("/ws/game/:room_id", s.handleWebSocket)

	api := r.Group("/api", s.authenticate())

	rooms := api.Group("/rooms")
	rooms.GET("", s.listRooms)
	rooms.POST("", s.createRoom)
	rooms.GET("/my", s.myRooms)
	rooms.GET("/:id", s.getRoom)
	rooms.POST("/:id/join", s.joinRoom)
	rooms.POST("/:id/start", s.startGame)

	games := api.Group("/games")
	games.GET("/my", s.myGames)
	games.GET("/:id", s.getGame)
	games.POST("/:id/guess", s.makeGuess)

	api.GET("/players/me", s.me)

	api.GET("/bet-settings", s.getBetSettings)
	api.PUT("/bet-settings", requireAdmin(), s.updateBetSettings)

	wallet := api.Group("/wallet")
	wallet.GET("/transactions", s.myTransactions)
	wallet.POST("/deposit", s.deposit)
	wallet.POST("/withdraw", s.withdraw)

	admin := api.Group("/admin", requireAdmin())
	admin.GET("/rooms", s.adminRooms)
	admin.GET("/games", s.adminGames)
	admin.GET("/transactions", s.adminTransactions)

	return r
}

func (s *GameServer) health(c *gin.Context) {
	if err := s.db.DB(c.Request.Context()).Exec("SELECT 1").Error; err != nil {
		logger.Log.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.sessions.Count(),
		"rooms":       s.hub.Rooms(),
		"uptime":      s.monitor.Uptime().Round(time.Second).String(),
	})
}
