package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/service"
)

type ReputationHandler struct {
	svc service.ReputationService
}

func NewReputationHandler(svc service.ReputationService) *ReputationHandler {
	return &ReputationHandler{svc: svc}
}

type ReputationResponse struct {
	UID         string  `json:"uid"`
	Reputation  float64 `json:"reputation"`
	ReviewCount int64   `json:"reviewCount"`
	Display     string  `json:"display"`
}

type ReviewListResponse struct {
	Reviews []ReviewResponse `json:"reviews"`
}

func (h *ReputationHandler) Get(c echo.Context) error {
	rep, err := h.svc.Get(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return writeServiceError(c, "ReputationHandler.Get", err)
	}
	return c.JSON(http.StatusOK, toReputationResponse(rep))
}

func (h *ReputationHandler) ListReviews(c echo.Context) error {
	list, err := h.svc.ListReviewsForPoster(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return writeServiceError(c, "ReputationHandler.ListReviews", err)
	}
	resp := ReviewListResponse{Reviews: make([]ReviewResponse, 0, len(list))}
	for i := range list {
		resp.Reviews = append(resp.Reviews, toReviewResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

func toReputationResponse(rep *service.Reputation) ReputationResponse {
	return ReputationResponse{
		UID:         rep.UserUID,
		Reputation:  rep.Reputation,
		ReviewCount: rep.ReviewCount,
		Display:     rep.Display,
	}
}
