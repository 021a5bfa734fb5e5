package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/model"
	"github.com/shinyyama/goodfinds-backend/internal/service"
)

type ListingHandler struct {
	svc service.ListingService
}

func NewListingHandler(svc service.ListingService) *ListingHandler {
	return &ListingHandler{svc: svc}
}

type ListingResponse struct {
	ID          string   `json:"id"`
	OwnerUID    string   `json:"ownerUid"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Location    string   `json:"location"`
	Images      []string `json:"images"`
	Status      string   `json:"status"`
	ClaimedBy   *string  `json:"claimedBy,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

type ListingListResponse struct {
	Listings []ListingResponse `json:"listings"`
	Total    int64             `json:"total"`
}

type ReviewResponse struct {
	ID          string  `json:"id"`
	ReviewerUID string  `json:"reviewerUid"`
	PosterUID   string  `json:"posterUid"`
	PostID      string  `json:"postId"`
	Rating      int     `json:"rating"`
	Comment     *string `json:"comment,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

type PickupResponse struct {
	ListingID string          `json:"listingId"`
	Status    string          `json:"status"`
	Review    *ReviewResponse `json:"review,omitempty"`
}

type CreateListingRequest struct {
	Title       string   `json:"title" validate:"required,max=120"`
	Description string   `json:"description" validate:"max=4000"`
	Category    string   `json:"category" validate:"max=64"`
	Condition   string   `json:"condition" validate:"required,max=32"`
	Location    string   `json:"location" validate:"required,max=255"`
	Images      []string `json:"images" validate:"max=10,dive,max=512,nodatauri"`
}

type UpdateListingRequest struct {
	Title       *string   `json:"title" validate:"omitempty,max=120"`
	Description *string   `json:"description" validate:"omitempty,max=4000"`
	Category    *string   `json:"category" validate:"omitempty,max=64"`
	Condition   *string   `json:"condition" validate:"omitempty,max=32"`
	Location    *string   `json:"location" validate:"omitempty,max=255"`
	Images      *[]string `json:"images" validate:"omitempty,max=10,dive,max=512,nodatauri"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type PickupRequest struct {
	Review *ReviewRequest `json:"review"`
}

func (h *ListingHandler) Create(c echo.Context) error {
	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	l, err := h.svc.Create(c.Request().Context(), actorUID(c), service.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
		Location:    req.Location,
		Images:      req.Images,
	})
	if err != nil {
		return writeServiceError(c, "ListingHandler.Create", err)
	}
	return c.JSON(http.StatusCreated, toListingResponse(l))
}

func (h *ListingHandler) Get(c echo.Context) error {
	l, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeServiceError(c, "ListingHandler.Get", err)
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

func (h *ListingHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	list, total, err := h.svc.ListAvailable(c.Request().Context(), actorUID(c), service.ListingFilter{
		Category:  c.QueryParam("category"),
		Condition: c.QueryParam("condition"),
		Location:  c.QueryParam("location"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return writeServiceError(c, "ListingHandler.List", err)
	}
	return c.JSON(http.StatusOK, ListingListResponse{Listings: toListingResponses(list), Total: total})
}

func (h *ListingHandler) Update(c echo.Context) error {
	var req UpdateListingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	l, err := h.svc.Edit(c.Request().Context(), c.Param("id"), actorUID(c), service.ListingPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
		Location:    req.Location,
		Images:      req.Images,
	})
	if err != nil {
		return writeServiceError(c, "ListingHandler.Update", err)
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

func (h *ListingHandler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id"), actorUID(c)); err != nil {
		return writeServiceError(c, "ListingHandler.Delete", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ListingHandler) Claim(c echo.Context) error {
	l, err := h.svc.Claim(c.Request().Context(), c.Param("id"), actorUID(c))
	if err != nil {
		return writeServiceError(c, "ListingHandler.Claim", err)
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

func (h *ListingHandler) ReportMissing(c echo.Context) error {
	l, err := h.svc.ReportMissing(c.Request().Context(), c.Param("id"), actorUID(c))
	if err != nil {
		return writeServiceError(c, "ListingHandler.ReportMissing", err)
	}
	return c.JSON(http.StatusOK, toListingResponse(l))
}

// ConfirmPickup accepts an empty body, {} or {"review":{...}}.
func (h *ListingHandler) ConfirmPickup(c echo.Context) error {
	var req PickupRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid json")
		}
		if err := c.Validate(&req); err != nil {
			return badRequest(c, err.Error())
		}
	}
	var review *service.ReviewInput
	if req.Review != nil {
		review = &service.ReviewInput{Rating: req.Review.Rating, Comment: req.Review.Comment}
	}
	res, err := h.svc.ConfirmPickup(c.Request().Context(), c.Param("id"), actorUID(c), review)
	if err != nil {
		return writeServiceError(c, "ListingHandler.ConfirmPickup", err)
	}
	resp := PickupResponse{ListingID: res.ListingID, Status: string(res.Status)}
	if res.Review != nil {
		r := toReviewResponse(res.Review)
		resp.Review = &r
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ListingHandler) ListMine(c echo.Context) error {
	list, err := h.svc.ListByOwner(c.Request().Context(), actorUID(c))
	if err != nil {
		return writeServiceError(c, "ListingHandler.ListMine", err)
	}
	return c.JSON(http.StatusOK, ListingListResponse{Listings: toListingResponses(list), Total: int64(len(list))})
}

func (h *ListingHandler) ListClaims(c echo.Context) error {
	list, err := h.svc.ListClaimedBy(c.Request().Context(), actorUID(c))
	if err != nil {
		return writeServiceError(c, "ListingHandler.ListClaims", err)
	}
	return c.JSON(http.StatusOK, ListingListResponse{Listings: toListingResponses(list), Total: int64(len(list))})
}

func toListingResponse(l *model.Listing) ListingResponse {
	return ListingResponse{
		ID:          l.ID,
		OwnerUID:    l.OwnerUID,
		Title:       l.Title,
		Description: l.Description,
		Category:    l.Category,
		Condition:   l.Condition,
		Location:    l.Location,
		Images:      l.ImageURLs(),
		Status:      string(l.Status),
		ClaimedBy:   l.ClaimedBy,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   l.UpdatedAt.Format(time.RFC3339),
	}
}

func toListingResponses(list []model.Listing) []ListingResponse {
	out := make([]ListingResponse, 0, len(list))
	for i := range list {
		out = append(out, toListingResponse(&list[i]))
	}
	return out
}

func toReviewResponse(r *model.Review) ReviewResponse {
	return ReviewResponse{
		ID:          r.ID,
		ReviewerUID: r.ReviewerUID,
		PosterUID:   r.PosterUID,
		PostID:      r.PostID,
		Rating:      r.Rating,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}
