package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/utils"
)

const testSecret = "test-secret"

func bearer(t *testing.T, id int64, ttlMin int) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, id, "someone", model.RoleAdmin, ttlMin)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)
	g := NewAccessGate(testSecret, h.users)
	ctx := context.Background()

	p, err := g.Authenticate(ctx, bearer(t, 2, 5))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	// identity comes from the user record, not the token claims
	if p != john {
		t.Fatalf("principal = %+v, want %+v", p, john)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	h := newHarness(t)
	g := NewAccessGate(testSecret, h.users)
	other, err := utils.NewAccessToken("other-secret", 1, "admin", model.RoleAdmin, 5)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		header string
		want   error
	}{
		{"empty", "", ErrMissingCredential},
		{"no scheme", "abc", ErrMissingCredential},
		{"basic", "Basic dXNlcjpwYXNz", ErrMissingCredential},
		{"bearer without token", "Bearer ", ErrMissingCredential},
		{"garbage", "Bearer not.a.jwt", ErrInvalidCredential},
		{"wrong secret", "Bearer " + other.Token, ErrInvalidCredential},
		{"expired", bearer(t, 1, -1), ErrExpiredCredential},
		{"unknown user", bearer(t, 77, 5), ErrPrincipalInactiveOrNotFound},
		{"inactive user", bearer(t, 5, 5), ErrPrincipalInactiveOrNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := g.Authenticate(context.Background(), c.header)
			if !errors.Is(err, c.want) {
				t.Fatalf("err = %v, want %v", err, c.want)
			}
			if KindOf(err) != KindAuth {
				t.Fatalf("kind = %s", KindOf(err))
			}
		})
	}
}
