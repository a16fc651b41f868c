// Package handlers exposes the ledger over HTTP. The owner is passed
// explicitly as the user_id query parameter.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/ledger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/logger"
	"github.com/valeriaulyamaeva/recurring-ledger/models"
)

type Handler struct {
	svc *ledger.Service
	log zerolog.Logger
}

// New builds the handlers. log is used when a request carries no logger of its own.
func New(svc *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) logFor(c *gin.Context) zerolog.Logger {
	return logger.FromContext(c.Request.Context(), h.log)
}

// userID reads the owner from the query string, answering 400 when it is absent.
func userID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный идентификатор пользователя"})
		return 0, false
	}
	return id, true
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный идентификатор"})
		return 0, false
	}
	return id, true
}

// bind decodes the request body, answering 400 on malformed input.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный формат данных", "details": err.Error()})
		return false
	}
	return true
}

// StatusFor maps ledger and model errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrMissingExchangeRate):
		return http.StatusUnprocessableEntity
	case models.IsValidation(err), ledger.IsPermanent(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log := h.logFor(c)
		log.Error().Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": "Внутренняя ошибка сервера"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
