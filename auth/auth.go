// Package auth turns bearer tokens issued by the external auth service into
// player identities.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wfunc/guessduel/config"
	"github.com/wfunc/guessduel/models"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the auth service could not be reached.
	ErrUnavailable = errors.New("auth: unavailable")
)

// Identity is an authenticated player.
type Identity struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Validator validates authentication tokens.
type Validator interface {
	// Validate returns the identity behind token, ErrInvalidToken when the
	// token is rejected, or ErrUnavailable when validation could not happen.
	Validate(ctx context.Context, token string) (*Identity, error)
}

// HTTPValidator validates tokens via HTTP callback to the auth service.
type HTTPValidator struct {
	url         string
	client      *http.Client
	adminSecret string
	timeout     time.Duration
}

func NewHTTPValidator(url, adminSecret string) *HTTPValidator {
	return &HTTPValidator{
		url:         url,
		adminSecret: adminSecret,
		timeout:     2 * time.Second,
		client:      &http.Client{Timeout: 2 * time.Second},
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid  bool   `json:"valid"`
	UserID uint   `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	body, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", v.adminSecret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}
	if !out.Valid || out.UserID == 0 {
		return nil, ErrInvalidToken
	}

	role := out.Role
	if role == "" {
		role = models.RolePlayer
	}
	return &Identity{UserID: out.UserID, Email: out.Email, Role: role}, nil
}

// StaticValidator serves a fixed token table, for local runs and tests.
type StaticValidator struct {
	tokens map[string]Identity
}

func NewStaticValidator(tokens []config.StaticToken) *StaticValidator {
	v := &StaticValidator{tokens: make(map[string]Identity, len(tokens))}
	for _, t := range tokens {
		role := t.Role
		if role == "" {
			role = models.RolePlayer
		}
		v.tokens[t.Token] = Identity{UserID: t.UserID, Email: t.Email, Role: role}
	}
	return v
}

func (v *StaticValidator) Validate(_ context.Context, token string) (*Identity, error) {
	id, ok := v.tokens[token]
	if !ok || token == "" {
		return nil, ErrInvalidToken
	}
	return &id, nil
}

// FromConfig builds the validator selected by cfg.Mode.
func FromConfig(cfg config.AuthConfig) (Validator, error) {
	switch cfg.Mode {
	case "http":
		if cfg.URL == "" {
			return nil, errors.New("auth: http mode requires auth.url")
		}
		return NewHTTPValidator(cfg.URL, cfg.AdminSecret), nil
	case "static", "":
		return NewStaticValidator(cfg.Tokens), nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
}
