package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

func (h *Handler) ListCurrencies(c *gin.Context) {
	currencies, err := h.svc.ListCurrencies(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, currencies)
}

func (h *Handler) ListExchangeRates(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	rates, err := h.svc.ListExchangeRates(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rates)
}

// SetExchangeRate stores how many units of :currency one unit of the owner's
// base currency buys.
func (h *Handler) SetExchangeRate(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	var body struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if !bind(c, &body) {
		return
	}
	rate := &models.ExchangeRate{UserID: owner, Currency: c.Param("currency"), Rate: body.Rate}
	if err := h.svc.SetExchangeRate(c.Request.Context(), rate); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rate)
}
