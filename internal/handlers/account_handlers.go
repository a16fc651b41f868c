package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (h *Handler) CreateAccountType(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	var at models.AccountType
	if !bind(c, &at) {
		return
	}
	at.UserID = owner
	if err := h.svc.CreateAccountType(c.Request.Context(), &at); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, at)
}

func (h *Handler) ListAccountTypes(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	types, err := h.svc.ListAccountTypes(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

func (h *Handler) CreateAccount(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	var a models.Account
	if !bind(c, &a) {
		return
	}
	a.UserID = owner
	if err := h.svc.CreateAccount(c.Request.Context(), &a); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAccounts(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	accounts, err := h.svc.ListAccounts(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// DeleteAccount soft-deletes; rules that still use the account are
// deactivated when they next fire.
func (h *Handler) DeleteAccount(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteAccount(c.Request.Context(), owner, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
