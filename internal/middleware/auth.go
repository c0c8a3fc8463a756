package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/logging"
	"github.com/iliyamo/faultdesk/internal/service"
)

const principalKey = "principal"

// Authenticate resolves the bearer credential of every request through the
// access gate. On success the principal is stored on the echo context and
// on the request context; on failure the gate's error is returned for the
// error handler to render as 401.
func Authenticate(gate *service.AccessGate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			p, err := gate.Authenticate(req.Context(), req.Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}
			ctx := service.WithPrincipal(req.Context(), p)
			ctx = logging.WithAttrs(ctx, slog.Int64("user_id", p.ID), slog.String("role", p.Role))
			c.SetRequest(req.WithContext(ctx))
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// RequireRole rejects principals whose role is not listed with 403. It must
// run after Authenticate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalOf(c)
			if !ok || !allowed[p.Role] {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}

// PrincipalOf returns the principal stored by Authenticate.
func PrincipalOf(c echo.Context) (service.Principal, bool) {
	p, ok := c.Get(principalKey).(service.Principal)
	return p, ok
}
