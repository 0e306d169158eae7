package httpapi

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"ctxstore.dev/governed-context/ctxauth"
)

const actorContextKey = "actor"

// registerAuth installs the echo-jwt middleware that resolves every
// request's ActorContext, grounded on api/jwt.go's echojwt.WithConfig
// wiring generalized with a custom ParseTokenFunc so token verification
// goes through ctxauth.Verifier's jwx/v2 HS256 parsing rather than
// echo-jwt's default golang-jwt codec. When the verifier is in
// AUTH_DISABLED mode the middleware short-circuits to the fixed dev actor,
// matching original_source/auth.rs's dev_default().
func (s *Server) registerAuth() {
	cfg := echojwt.Config{
		Skipper: func(c echo.Context) bool {
			return s.Verifier.Disabled() || c.Path() == "/health"
		},
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return s.Verifier.VerifyHeader("Bearer " + auth)
		},
		SuccessHandler: func(c echo.Context) {
			if actor, ok := c.Get("user").(ctxauth.ActorContext); ok {
				c.Set(actorContextKey, actor)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		},
	}
	s.Echo.Use(echojwt.WithConfig(cfg))
	s.Echo.Use(devActorFallback(s.Verifier))
}

// devActorFallback runs after the jwt middleware and injects the fixed
// dev actor whenever the verifier is disabled, since the jwt middleware
// itself is skipped in that mode and never populates the context.
func devActorFallback(verifier *ctxauth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if verifier.Disabled() {
				c.Set(actorContextKey, ctxauth.DevDefault())
			}
			return next(c)
		}
	}
}

// actorFrom retrieves the ActorContext the auth middleware resolved for
// this request. Absence indicates a middleware-ordering bug, not a
// request-time condition, so callers may treat it as fatal for the
// handler.
func actorFrom(c echo.Context) (ctxauth.ActorContext, bool) {
	actor, ok := c.Get(actorContextKey).(ctxauth.ActorContext)
	return actor, ok
}

// requireRole returns middleware that 403s any request whose resolved
// actor does not hold role or higher, implementing the "Min role" column
// of spec.md §6's endpoint table.
func requireRole(role ctxauth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := actorFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated actor")
			}
			if !actor.HasRole(role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}
