package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

const (
	defaultUpcoming = 5
	maxUpcoming     = 50
)

func (h *Handler) CreateScheduledTransaction(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	var rule models.ScheduledTransaction
	if !bind(c, &rule) {
		return
	}
	rule.UserID = owner
	if err := h.svc.CreateScheduledTransaction(c.Request.Context(), &rule); err != nil {
		h.fail(c, err)
		return
	}
	log := h.logFor(c)
	log.Info().Int("rule_id", rule.ID).Int("user_id", owner).Time("next_run_at", rule.NextRunAt).
		Msg("scheduled transaction created")
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) ListScheduledTransactions(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	rules, err := h.svc.ListScheduledTransactions(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// GetScheduledTransaction answers with the rule and its next ?upcoming= occurrences.
func (h *Handler) GetScheduledTransaction(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	n := defaultUpcoming
	if raw := c.Query("upcoming"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > maxUpcoming {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректное количество будущих срабатываний"})
			return
		}
		n = v
	}
	rule, upcoming, err := h.svc.GetScheduledTransaction(c.Request.Context(), owner, id, n)
	if err != nil {
		h.fail(c, err)
		return
	}
	if upcoming == nil {
		upcoming = []time.Time{}
	}
	c.JSON(http.StatusOK, gin.H{"scheduled_transaction": rule, "upcoming": upcoming})
}

func (h *Handler) DeactivateScheduledTransaction(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeactivateScheduledTransaction(c.Request.Context(), owner, id); err != nil {
		h.fail(c, err)
		return
	}
	log := h.logFor(c)
	log.Info().Int("rule_id", id).Int("user_id", owner).Msg("scheduled transaction deactivated")
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListRuleTransactions(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	transactions, err := h.svc.ListRuleTransactions(c.Request.Context(), owner, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}
