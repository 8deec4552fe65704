package session

import (
	"context"
	"errors"

	"github.com/wfunc/guessduel/apperr"
	"github.com/wfunc/guessduel/auth"
	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/network"
)

// Accounts provisions the ledger row of a newly seen identity.
type Accounts interface {
	EnsureAccount(ctx context.Context, userID uint, email, role string) error
}

// Participants answers room membership.
type Participants interface {
	IsParticipant(ctx context.Context, roomID, userID uint) (bool, error)
}

// Gateway admits connections: the token must resolve to an identity and
// that identity must sit in the requested room.
type Gateway struct {
	validator auth.Validator
	accounts  Accounts
	rooms     Participants
}

func NewGateway(validator auth.Validator, accounts Accounts, rooms Participants) *Gateway {
	return &Gateway{validator: validator, accounts: accounts, rooms: rooms}
}

// Authenticate resolves token and makes sure the account exists.
func (g *Gateway) Authenticate(ctx context.Context, token string) (*auth.Identity, error) {
	id, err := g.validator.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			logger.Log.Warnf("Auth service unavailable: %v", err)
		}
		return nil, apperr.WithCause(apperr.ErrUnauthenticated, err)
	}
	if err := g.accounts.EnsureAccount(ctx, id.UserID, id.Email, id.Role); err != nil {
		return nil, err
	}
	return id, nil
}

// Admit authenticates token and checks membership of roomID. A missing room
// counts as not participating.
func (g *Gateway) Admit(ctx context.Context, token string, roomID uint) (*auth.Identity, error) {
	id, err := g.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	ok, err := g.rooms.IsParticipant(ctx, roomID, id.UserID)
	if err != nil && !errors.Is(err, apperr.ErrRoomNotFound) {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrNotParticipant
	}
	return id, nil
}

// CloseCode maps an Admit failure onto the close code sent to the client.
// ok is false for failures that are not refusals.
func CloseCode(err error) (code int, ok bool) {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return network.CloseUnauthenticated, true
	case errors.Is(err, apperr.ErrNotParticipant):
		return network.CloseNotParticipant, true
	}
	return 0, false
}
