package service

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/faultdesk/internal/repository"
	"github.com/iliyamo/faultdesk/internal/utils"
)

// AccessGate turns the Authorization header of a request into a Principal.
// Every request is verified on its own; nothing is cached between calls.
type AccessGate struct {
	secret string
	users  UserDirectory
}

func NewAccessGate(secret string, users UserDirectory) *AccessGate {
	return &AccessGate{secret: secret, users: users}
}

// Authenticate verifies a "Bearer <token>" header and returns the active
// principal it names. The returned error is one of ErrMissingCredential,
// ErrInvalidCredential, ErrExpiredCredential or
// ErrPrincipalInactiveOrNotFound, or a storage error.
func (g *AccessGate) Authenticate(ctx context.Context, header string) (Principal, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Principal{}, ErrMissingCredential
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return Principal{}, ErrMissingCredential
	}

	claims, err := utils.ParseAccessToken(g.secret, strings.TrimSpace(raw))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpiredCredential
		}
		return Principal{}, ErrInvalidCredential
	}
	id, err := claims.ID()
	if err != nil {
		return Principal{}, ErrInvalidCredential
	}

	u, err := g.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, ErrPrincipalInactiveOrNotFound
		}
		return Principal{}, storageErr("load principal", err)
	}
	if !u.IsActive {
		return Principal{}, ErrPrincipalInactiveOrNotFound
	}
	// the stored role wins over the token claim so demotions apply at once
	return Principal{ID: u.ID, Username: u.Username, Role: u.Role}, nil
}
