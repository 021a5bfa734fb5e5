package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/goodfinds-backend/internal/repository"
)

type CategoryHandler struct {
	repo repository.CategoryRepository
}

func NewCategoryHandler(repo repository.CategoryRepository) *CategoryHandler {
	return &CategoryHandler{repo: repo}
}

type CategoryResponse struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (h *CategoryHandler) List(c echo.Context) error {
	list, err := h.repo.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, "CategoryHandler.List", err)
	}
	out := make([]CategoryResponse, 0, len(list))
	for _, cat := range list {
		out = append(out, CategoryResponse{Slug: cat.Slug, Name: cat.Name})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"categories": out})
}
