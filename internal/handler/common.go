// Package handler contains the HTTP handlers.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tennis-court-reservation/internal/apperror"
	"github.com/iliyamo/tennis-court-reservation/internal/middleware"
)

// requestTimeout bounds every handler's storage calls.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID returns the authenticated guest id.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.GuestID(c)
	if !ok {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.InvalidArgument("invalid " + name)
	}
	return id, nil
}

// writeError renders err with the status of its kind.  Storage and other
// unclassified failures are logged with the request id.
func writeError(c echo.Context, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request_id=%s %s %s: %v",
			c.Response().Header().Get(echo.HeaderXRequestID), c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, echo.Map{"error": apperror.Message(err)})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
