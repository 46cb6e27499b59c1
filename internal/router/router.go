package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"vendbot/internal/handler/api"
	"vendbot/internal/middleware"
)

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, deps *api.Deps, apiKey string) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	paymentHandler := api.NewPaymentHandler(deps)
	serviceHandler := api.NewServiceHandler(deps)
	cardHandler := api.NewCardHandler(deps)

	// API group with auth middleware; all requests route on the
	// "actions" body field.
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.POST("/payments", paymentHandler.Handle)
	apiGroup.POST("/services", serviceHandler.Handle)
	apiGroup.POST("/cards", cardHandler.Handle)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
