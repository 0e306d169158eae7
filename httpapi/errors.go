package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"ctxstore.dev/governed-context/mediator"
	"ctxstore.dev/governed-context/store"
)

// writeError maps a store/mediator error to the status-code contract in
// spec.md §6 ("Status code mapping") and writes the JSON body. Policy
// violations get their dedicated 422 shape with the rule list; every other
// kind gets a flat {"error": msg} body.
func writeError(c echo.Context, err error) error {
	if me, ok := mediator.AsMediatorError(err); ok {
		switch me.Kind {
		case mediator.KindForbidden:
			return c.JSON(http.StatusForbidden, map[string]string{"error": me.Msg})
		case mediator.KindPolicyViolation:
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      me.Msg,
				"violations": me.Violations,
			})
		}
	}

	switch store.KindOf(err) {
	case store.KindNotFound:
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case store.KindConflict:
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case store.KindInvalid:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// jsonErrorHandler replaces echo's default HTML error renderer with a
// flat JSON body for framework-level errors (404 route miss, bad bind,
// middleware denials raised via echo.NewHTTPError).
func jsonErrorHandler(logger *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		} else {
			logger.WithError(err).Error("unhandled httpapi error")
		}
		if jsonErr := c.JSON(code, map[string]string{"error": msg}); jsonErr != nil {
			logger.WithError(jsonErr).Error("failed to write error response")
		}
	}
}
