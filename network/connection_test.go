package network

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/guessduel/apperr"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// serve upgrades every request and hands the server side to fn.
func serve(t *testing.T, fn func(*websocket.Conn)) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fn(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestWSConnection_SendAndRead(t *testing.T) {
	received := make(chan []byte, 1)
	client := serve(t, func(conn *websocket.Conn) {
		c := NewWSConnection(conn, DefaultOptions())
		_ = c.Send([]byte(`{"type":"CONNECTION_SUCCESS"}`))
		data, err := c.ReadMessage()
		if err == nil {
			received <- data
		}
	})

	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CONNECTION_SUCCESS"}`, string(data))

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"JOIN_GAME"}`)))
	select {
	case got := <-received:
		assert.JSONEq(t, `{"type":"JOIN_GAME"}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the message")
	}
}

func TestWSConnection_SendAfterClose(t *testing.T) {
	result := make(chan error, 1)
	serve(t, func(conn *websocket.Conn) {
		c := NewWSConnection(conn, DefaultOptions())
		_ = c.Close()
		<-c.done
		result <- c.Send([]byte("late"))
	})

	select {
	case err := <-result:
		assert.True(t, errors.Is(err, ErrConnectionClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestReject(t *testing.T) {
	client := serve(t, func(conn *websocket.Conn) {
		_ = Reject(conn, CloseNotParticipant, "not a participant", time.Second)
	})

	_, _, err := client.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr))
	assert.Equal(t, CloseNotParticipant, closeErr.Code)
}

func TestDecodeInbound(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type":"MAKE_GUESS","guess_number":42}`))
	require.NoError(t, err)
	assert.Equal(t, MsgMakeGuess, msg.Type)
	require.NotNil(t, msg.GuessNumber)
	assert.Equal(t, 42, *msg.GuessNumber)

	msg, err = DecodeInbound([]byte(`{"type":"MAKE_GUESS"}`))
	require.NoError(t, err)
	assert.Nil(t, msg.GuessNumber)

	_, err = DecodeInbound([]byte(`not json`))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrBadRequest))
}

func TestDecodeInbound_GuessNumber(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  *apperr.Error
	}{
		{"fraction", `{"type":"MAKE_GUESS","guess_number":50.5}`, apperr.ErrBadRequest},
		{"exponent", `{"type":"MAKE_GUESS","guess_number":1e20}`, apperr.ErrBadRequest},
		{"string", `{"type":"MAKE_GUESS","guess_number":"fifty"}`, apperr.ErrBadRequest},
		{"bool", `{"type":"MAKE_GUESS","guess_number":true}`, apperr.ErrBadRequest},
		{"overflow", `{"type":"MAKE_GUESS","guess_number":100000000000000000000}`, apperr.ErrGuessOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tt.frame))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	msg, err := DecodeInbound([]byte(`{"type":"MAKE_GUESS","guess_number":null}`))
	require.NoError(t, err)
	assert.Nil(t, msg.GuessNumber)

	msg, err = DecodeInbound([]byte(`{"type":"MAKE_GUESS","guess_number":-3}`))
	require.NoError(t, err)
	assert.Equal(t, -3, *msg.GuessNumber)
}
