package server

import (
	"github.com/wfunc/guessduel/game"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/network"
)

// Events are pushed only after the transaction that produced them has
// committed, so clients never observe rolled-back state.

func (s *GameServer) publishRoomUpdate(r *models.Room) {
	s.hub.Publish(r.ID, network.RoomUpdate(r))
}

func (s *GameServer) publishGameStart(g *models.Game) {
	s.monitor.GameStarted()
	s.hub.Publish(g.RoomID, network.GameStart(g))
}

func (s *GameServer) publishGuess(res *game.GuessResult) {
	s.monitor.GuessMade(res.Guess.Feedback)
	s.hub.Publish(res.Game.RoomID, network.GuessMade(res.Game, res.Guess))
}
