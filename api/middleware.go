package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequesterHeader carries the local account id set by the session gateway.
const RequesterHeader = "X-Pump2Status-User"

type ctxKey string

// RequesterCtxKey holds the requester id in the request context.
const RequesterCtxKey ctxKey = "requester"

// ReceiveRequester copies the gateway header into the request context.
func ReceiveRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if requester := c.Request().Header.Get(RequesterHeader); requester != "" {
			ctx := context.WithValue(c.Request().Context(), RequesterCtxKey, requester)
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}

// Restrict rejects requests without a requester.
func Restrict(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Request().Context().Value(RequesterCtxKey).(string); !ok {
			return c.JSON(http.StatusForbidden, echo.Map{"status": "error", "message": "requester not found"})
		}
		return next(c)
	}
}
