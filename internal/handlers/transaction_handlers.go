package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (h *Handler) CreateTransaction(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	var tr models.Transaction
	if !bind(c, &tr) {
		return
	}
	tr.UserID = owner
	if err := h.svc.CreateTransaction(c.Request.Context(), &tr); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tr)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	transactions, err := h.svc.ListTransactions(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}
