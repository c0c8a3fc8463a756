package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/config"
	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/repository"
	"github.com/iliyamo/faultdesk/internal/service"
	"github.com/iliyamo/faultdesk/internal/utils"
)

type stubUsers struct{ u model.User }

func (s stubUsers) GetByID(_ context.Context, id int64) (model.User, error) {
	if id != s.u.ID {
		return model.User{}, repository.ErrNotFound
	}
	return s.u, nil
}

func (s stubUsers) GetByUsername(context.Context, string) (model.User, error) {
	return model.User{}, repository.ErrNotFound
}

func (s stubUsers) ListActiveByRole(context.Context, string) ([]model.User, error) { return nil, nil }

func TestAuthenticateAndRequireRole(t *testing.T) {
	const secret = "s3cret"
	users := stubUsers{u: model.User{ID: 7, Username: "viewer1", Role: model.RoleViewer, IsActive: true}}
	gate := service.NewAccessGate(secret, users)
	tok, err := utils.NewAccessToken(secret, 7, "viewer1", model.RoleViewer, 5)
	if err != nil {
		t.Fatal(err)
	}

	var seen service.Principal
	ok := func(c echo.Context) error {
		seen, _ = service.PrincipalFrom(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}
	e := echo.New()

	run := func(h echo.HandlerFunc, header string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		err := h(e.NewContext(req, rec))
		return rec, err
	}

	_, err = run(Authenticate(gate)(ok), "")
	if !errors.Is(err, service.ErrMissingCredential) {
		t.Fatalf("no header: err = %v", err)
	}

	rec, err := run(Authenticate(gate)(ok), "Bearer "+tok.Token)
	if err != nil || rec.Code != http.StatusOK {
		t.Fatalf("valid token: err=%v code=%d", err, rec.Code)
	}
	if seen.ID != 7 || seen.Role != model.RoleViewer {
		t.Fatalf("principal = %+v", seen)
	}

	guarded := Authenticate(gate)(RequireRole(model.RoleAdmin, model.RoleTechnician)(ok))
	_, err = run(guarded, "Bearer "+tok.Token)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("viewer on write route: err = %v", err)
	}
}

func TestRequireRoleWithoutPrincipal(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequireRole(model.RoleAdmin)(func(echo.Context) error { return nil })(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("err = %v", err)
	}
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	called := 0
	h := func(echo.Context) error { called++; return nil }
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if err := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil)(h)(c); err != nil {
		t.Fatal(err)
	}
	if err := NewRedisCache(config.CacheConfig{Enabled: false}, nil)(h)(c); err != nil {
		t.Fatal(err)
	}
	if called != 2 {
		t.Fatalf("called = %d", called)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`[{"code":"NETWORK"}]`))
	if err != nil {
		t.Fatal(err)
	}
	status, gotHdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || gotHdr.Get("Content-Type") != "application/json" || string(body) != `[{"code":"NETWORK"}]` {
		t.Fatalf("decoded %d %v %q %v", status, gotHdr, body, ok)
	}
	if _, _, _, ok := decodePayload([]byte{0, 0}); ok {
		t.Fatal("short payload decoded")
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/faults", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/faults")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user"}
	if got := buildRateKey(cfg, c); got != "rl:ip:10.0.0.1:user:anon" {
		t.Fatalf("anon key = %q", got)
	}
	c.Set(principalKey, service.Principal{ID: 3})
	cfg.KeyStrategy = "user_route"
	if got := buildRateKey(cfg, c); got != "rl:user:3:route:POST /v1/faults" {
		t.Fatalf("user key = %q", got)
	}
}
