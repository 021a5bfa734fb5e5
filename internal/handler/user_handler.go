package handler

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/service"
)

// UserDirectory looks up public profile data at the identity provider.
type UserDirectory interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type UserHandler struct {
	directory  UserDirectory
	reputation service.ReputationService
}

// NewUserHandler accepts a nil directory; profiles then carry only the uid and reputation.
func NewUserHandler(directory UserDirectory, reputation service.ReputationService) *UserHandler {
	return &UserHandler{directory: directory, reputation: reputation}
}

type PublicUserResponse struct {
	UID         string             `json:"uid"`
	DisplayName string             `json:"displayName"`
	PhotoURL    *string            `json:"photoURL"`
	Reputation  ReputationResponse `json:"reputation"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return badRequest(c, "invalid uid")
	}
	resp := PublicUserResponse{UID: uid}
	if h.directory != nil {
		user, err := h.directory.GetUser(c.Request().Context(), uid)
		if err != nil {
			if auth.IsUserNotFound(err) {
				return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
			}
			return writeServiceError(c, "UserHandler.GetPublic", err)
		}
		resp.DisplayName = user.DisplayName
		resp.PhotoURL = strPtrOrNil(user.PhotoURL)
	}
	rep, err := h.reputation.Get(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, "UserHandler.GetPublic", err)
	}
	resp.Reputation = toReputationResponse(rep)
	return c.JSON(http.StatusOK, resp)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
