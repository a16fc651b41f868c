package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (h *Handler) CreateCategory(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	var category models.Category
	if !bind(c, &category) {
		return
	}
	category.UserID = owner
	if err := h.svc.CreateCategory(c.Request.Context(), &category); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *Handler) ListCategories(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	categories, err := h.svc.ListCategories(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(c.Request.Context(), owner, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
