package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (h *Handler) GetUserSettings(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	settings, err := h.svc.GetUserSettings(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) UpdateUserSettings(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	var settings models.UserSettings
	if !bind(c, &settings) {
		return
	}
	settings.UserID = owner
	if err := h.svc.UpdateUserSettings(c.Request.Context(), &settings); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
