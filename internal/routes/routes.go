package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/handlers"
)

func SetupRouter(h *handlers.Handler, allowedOrigins []string, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(log), handlers.CORSMiddleware(allowedOrigins))

	api := r.Group("/api")

	api.GET("/currencies", h.ListCurrencies)
	api.GET("/exchange-rates", h.ListExchangeRates)
	api.PUT("/exchange-rates/:currency", h.SetExchangeRate)

	api.GET("/settings", h.GetUserSettings)
	api.PUT("/settings", h.UpdateUserSettings)

	api.POST("/account-types", h.CreateAccountType)
	api.GET("/account-types", h.ListAccountTypes)
	api.POST("/accounts", h.CreateAccount)
	api.GET("/accounts", h.ListAccounts)
	api.DELETE("/accounts/:id", h.DeleteAccount)

	api.POST("/categories", h.CreateCategory)
	api.GET("/categories", h.ListCategories)
	api.DELETE("/categories/:id", h.DeleteCategory)

	api.POST("/transactions", h.CreateTransaction)
	api.GET("/transactions", h.ListTransactions)

	api.POST("/scheduled-transactions", h.CreateScheduledTransaction)
	api.GET("/scheduled-transactions", h.ListScheduledTransactions)
	api.GET("/scheduled-transactions/:id", h.GetScheduledTransaction)
	api.POST("/scheduled-transactions/:id/deactivate", h.DeactivateScheduledTransaction)
	api.GET("/scheduled-transactions/:id/transactions", h.ListRuleTransactions)

	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)

	return r
}
