package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	err := Wrap(ErrInsufficientBalance, "player %d", 7)

	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.False(t, errors.Is(err, ErrRoomFull))
	assert.Equal(t, "insufficient balance: player 7", err.Error())
}

func TestFromUnknownErrorIsInternal(t *testing.T) {
	cause := errors.New("connection refused")
	err := From(fmt.Errorf("load room: %w", cause))

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.True(t, errors.Is(err, cause))

	code, msg := Public(err)
	assert.Equal(t, "internal", code)
	assert.Equal(t, "internal server error", msg)
}

func TestFromWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("join: %w", ErrRoomFull)

	assert.Same(t, ErrRoomFull, From(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ErrInvalidStake, http.StatusBadRequest},
		{ErrNotYourTurn, http.StatusBadRequest},
		{ErrInsufficientBalance, http.StatusBadRequest},
		{ErrConflict, http.StatusConflict},
		{ErrRoomNotFound, http.StatusNotFound},
		{ErrNotParticipant, http.StatusForbidden},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}
