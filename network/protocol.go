package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/models"
)

// MessageType tags every JSON frame on the room channel.
type MessageType string

const (
	// client -> server
	MsgJoinGame  MessageType = "JOIN_GAME"
	MsgMakeGuess MessageType = "MAKE_GUESS"

	// server -> client
	MsgConnectionSuccess MessageType = "CONNECTION_SUCCESS"
	MsgGameState         MessageType = "GAME_STATE"
	MsgGameStart         MessageType = "GAME_START"
	MsgTurnUpdate        MessageType = "TURN_UPDATE"
	MsgGameEnd           MessageType = "GAME_END"
	MsgRoomUpdate        MessageType = "ROOM_UPDATE"
	MsgError             MessageType = "ERROR"
)

// Close codes sent before any message when a connection is refused.
const (
	CloseUnauthenticated = 4001
	CloseNotParticipant  = 4003
)

// Inbound is a client frame.
type Inbound struct {
	Type        MessageType `json:"type"`
	GuessNumber *int        `json:"guess_number,omitempty"`
}

// Outbound is a server frame. Only the fields relevant to Type are set.
type Outbound struct {
	Type    MessageType       `json:"type"`
	Message string            `json:"message,omitempty"`
	RoomID  uint              `json:"room_id,omitempty"`
	Room    *models.RoomView  `json:"room,omitempty"`
	Game    *models.GameView  `json:"game,omitempty"`
	Guess   *models.GuessView `json:"guess,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    string            `json:"code,omitempty"`
}

// inboundFrame defers guess_number so a bad value is reported on its own
// rather than as malformed JSON.
type inboundFrame struct {
	Type        MessageType     `json:"type"`
	GuessNumber json.RawMessage `json:"guess_number"`
}

// DecodeInbound parses a client frame. A well-formed frame whose
// guess_number is not an integer yields an *apperr.Error: bad_request for
// fractions and non-numbers, guess_out_of_range for integers that overflow.
func DecodeInbound(data []byte) (*Inbound, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	msg := &Inbound{Type: frame.Type}

	raw := bytes.TrimSpace(frame.GuessNumber)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return msg, nil
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return nil, apperr.Wrap(apperr.ErrBadRequest, "guess_number must be an integer")
	}
	n, err := strconv.ParseInt(num.String(), 10, 0)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return nil, apperr.ErrGuessOutOfRange
		}
		return nil, apperr.Wrap(apperr.ErrBadRequest, "guess_number must be an integer")
	}
	guess := int(n)
	msg.GuessNumber = &guess
	return msg, nil
}

func Encode(msg *Outbound) ([]byte, error) {
	return json.Marshal(msg)
}

func ConnectionSuccess(roomID uint) *Outbound {
	return &Outbound{Type: MsgConnectionSuccess, Message: "Connected to game room", RoomID: roomID}
}

func GameState(g *models.Game) *Outbound {
	v := models.NewGameView(g)
	return &Outbound{Type: MsgGameState, Game: &v}
}

func GameStart(g *models.Game) *Outbound {
	v := models.NewGameView(g)
	return &Outbound{Type: MsgGameStart, Game: &v}
}

// GuessMade is TURN_UPDATE, or GAME_END when the guess won.
func GuessMade(g *models.Game, guess *models.Guess) *Outbound {
	gv := models.NewGameView(g)
	uv := models.NewGuessView(guess)
	t := MsgTurnUpdate
	if guess.Feedback == models.FeedbackCorrect {
		t = MsgGameEnd
	}
	return &Outbound{Type: t, Game: &gv, Guess: &uv}
}

func RoomUpdate(r *models.Room) *Outbound {
	v := models.NewRoomView(r)
	return &Outbound{Type: MsgRoomUpdate, RoomID: r.ID, Room: &v}
}

func Error(code, message string) *Outbound {
	return &Outbound{Type: MsgError, Error: message, Code: code}
}
