package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/logging"
	"github.com/shinyyama/goodfinds-backend/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// StatusFor maps an engine error onto an HTTP status and error code.
func StatusFor(err error) (int, string) {
	var ge *service.GuardError
	switch {
	case errors.As(err, &ge):
		switch {
		case ge.Code == service.GuardUnauthenticated:
			return http.StatusUnauthorized, string(ge.Code)
		case ge.ActorRelated():
			return http.StatusForbidden, string(ge.Code)
		default:
			return http.StatusBadRequest, string(ge.Code)
		}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(c echo.Context, funcName string, err error) error {
	status, code := StatusFor(err)
	var ge *service.GuardError
	switch {
	case status == http.StatusInternalServerError:
		logging.LogError("handler", funcName, c.Path(), c.Param("id"), err)
		return c.JSON(status, NewErrorResponse(code, "internal error"))
	case status == http.StatusNotFound:
		return c.JSON(status, NewErrorResponse(code, "not found"))
	case errors.As(err, &ge):
		return c.JSON(status, NewErrorResponse(code, ge.Reason))
	default:
		return c.JSON(status, NewErrorResponse(code, err.Error()))
	}
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", message))
}

func actorUID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}
