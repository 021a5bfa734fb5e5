package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/ai"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
)

type AIHandler struct {
	suggester  ai.CategorySuggester
	categories repository.CategoryRepository
	timeout    time.Duration
}

func NewAIHandler(suggester ai.CategorySuggester, categories repository.CategoryRepository) *AIHandler {
	return &AIHandler{suggester: suggester, categories: categories, timeout: 15 * time.Second}
}

type SuggestCategoryRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=4000"`
}

type SuggestCategoryResponse struct {
	Category string `json:"category"`
}

func (h *AIHandler) SuggestCategory(c echo.Context) error {
	if h.suggester == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("ai_unavailable", "GEMINI_API_KEY is not set"))
	}
	var req SuggestCategoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	list, err := h.categories.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, "AIHandler.SuggestCategory", err)
	}
	slugs := make([]string, 0, len(list)+1)
	hasFallback := false
	for _, cat := range list {
		slugs = append(slugs, cat.Slug)
		hasFallback = hasFallback || cat.Slug == ai.FallbackCategory
	}
	if !hasFallback {
		slugs = append(slugs, ai.FallbackCategory)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	slug, err := h.suggester.SuggestCategory(ctx, req.Title, req.Description, slugs)
	if err != nil {
		return c.JSON(http.StatusBadGateway, NewErrorResponse("ai_error", "category suggestion failed"))
	}
	return c.JSON(http.StatusOK, SuggestCategoryResponse{Category: slug})
}
