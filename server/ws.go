package server

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/models"
	"github.com/wfunc/guessduel/network"
	"github.com/wfunc/guessduel/persistence"
	"github.com/wfunc/guessduel/session"
)

// handleWebSocket serves /ws/game/:room_id?token=. The connection is
// upgraded before admission so a refusal reaches the client as a close code.
func (s *GameServer) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	ctx := c.Request.Context()

	roomID, err := parseID(c.Param("room_id"))
	if err != nil {
		_ = network.Reject(conn, network.CloseNotParticipant, "invalid room", s.wsOptions.WriteWait)
		return
	}

	id, err := s.gateway.Admit(ctx, c.Query("token"), roomID)
	if err != nil {
		code, ok := session.CloseCode(err)
		if !ok {
			logger.Log.Errorf("Admission to room %d failed: %v", roomID, err)
			code = websocket.CloseInternalServerErr
		}
		_, reason := apperr.Public(err)
		_ = network.Reject(conn, code, reason, s.wsOptions.WriteWait)
		return
	}

	wsConn := network.NewWSConnection(conn, s.wsOptions)
	sess := session.NewSession(wsConn, id.UserID, roomID)
	sess.Email = id.Email

	// several tabs are allowed; each gets every room event
	for _, other := range s.sessions.GetByUserID(id.UserID) {
		if other.RoomID == roomID {
			logger.Log.Infof("User %d already connected to room %d as session %s", id.UserID, roomID, other.ID())
		}
	}

	s.sessions.Add(sess)
	s.hub.Join(roomID, sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("User %d connected to room %d from %s, session ID: %s, %d listening",
		id.UserID, roomID, wsConn.RemoteAddr(), sess.ID(), s.hub.Members(roomID))

	defer func() {
		s.hub.Leave(roomID, sess.ID())
		s.sessions.Remove(sess.ID())
		s.monitor.DecOnlinePlayers()
		_ = wsConn.Close()
		s.noteDisconnect(sess)
	}()

	s.send(sess, network.ConnectionSuccess(roomID))

	for {
		data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Debugf("Session %s read error: %v", sess.ID(), err)
			}
			return
		}
		sess.Touch()
		s.monitor.IncMessagesReceived()
		start := time.Now()
		s.dispatch(ctx, sess, data)
		s.monitor.ObserveMessageLatency(time.Since(start))
	}
}

func (s *GameServer) dispatch(ctx context.Context, sess *session.Session, data []byte) {
	msg, err := network.DecodeInbound(data)
	var fieldErr *apperr.Error
	if errors.As(err, &fieldErr) {
		s.sendError(sess, fieldErr)
		return
	}
	if err != nil {
		s.send(sess, network.Error(apperr.ErrBadRequest.Code, "Invalid JSON"))
		return
	}

	switch msg.Type {
	case network.MsgJoinGame:
		s.handleJoinGame(ctx, sess)
	case network.MsgMakeGuess:
		if msg.GuessNumber == nil {
			s.send(sess, network.Error(apperr.ErrBadRequest.Code, "guess_number is required"))
			return
		}
		s.handleMakeGuess(ctx, sess, *msg.GuessNumber)
	default:
		s.send(sess, network.Error(apperr.ErrBadRequest.Code, "Unknown event type"))
	}
}

// handleJoinGame replies with the current game, or starts it and tells both
// players. Losing the start race to the other player is not an error.
func (s *GameServer) handleJoinGame(ctx context.Context, sess *session.Session) {
	g, err := s.games.GameForRoom(ctx, sess.RoomID)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	if g != nil {
		s.send(sess, network.GameState(g))
		return
	}

	started, err := s.games.StartGame(ctx, sess.RoomID)
	if errors.Is(err, apperr.ErrGameAlreadyExists) {
		if g, err = s.games.GameForRoom(ctx, sess.RoomID); err == nil && g != nil {
			s.send(sess, network.GameState(g))
			return
		}
	}
	if err != nil {
		s.sendError(sess, err)
		return
	}
	s.publishGameStart(started)
}

func (s *GameServer) handleMakeGuess(ctx context.Context, sess *session.Session, number int) {
	g, err := s.games.GameForRoom(ctx, sess.RoomID)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	if g == nil {
		s.sendError(sess, apperr.ErrGameNotFound)
		return
	}

	res, err := s.games.MakeGuess(ctx, g.ID, sess.UserID, number)
	if err != nil {
		s.sendError(sess, err)
		return
	}
	s.publishGuess(res)
}

func (s *GameServer) send(sess *session.Session, msg *network.Outbound) {
	data, err := network.Encode(msg)
	if err != nil {
		logger.Log.Errorf("Encode %s: %v", msg.Type, err)
		return
	}
	if err := sess.Send(data); err != nil {
		logger.Log.Debugf("Send to session %s failed: %v", sess.ID(), err)
	}
}

// sendError reports err to the sender only.
func (s *GameServer) sendError(sess *session.Session, err error) {
	e := apperr.From(err)
	switch {
	case e.Kind == apperr.KindInternal:
		logger.Log.Errorf("Session %s in room %d: %v", sess.ID(), sess.RoomID, err)
	case persistence.IsConflict(err):
		logger.Log.Infof("Session %s in room %d lost a lock race, told to retry: %v", sess.ID(), sess.RoomID, err)
	}
	s.send(sess, network.Error(e.Code, e.Message))
}

// noteDisconnect flags players leaving a running game. Stakes stay escrowed
// until someone wins; there is no forfeiture.
func (s *GameServer) noteDisconnect(sess *session.Session) {
	logger.Log.Infof("Session %s of user %d left room %d, last active %s ago",
		sess.ID(), sess.UserID, sess.RoomID, time.Since(sess.LastActive()).Round(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	g, err := s.games.GameForRoom(ctx, sess.RoomID)
	if err == nil && g != nil && g.Status == models.GameInProgress {
		logger.Log.Warnf("User %d disconnected from game %d while it is in progress", sess.UserID, g.ID)
	}
}
