package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendbot/internal/fraud"
	"vendbot/internal/models"
	"vendbot/internal/payment"
	"vendbot/internal/purchase"
	"vendbot/internal/repository"
)

// Deps bundles what the API handlers need.
type Deps struct {
	Store        repository.Store
	Processor    *payment.Processor
	Orchestrator *purchase.Orchestrator
	Detector     *fraud.Detector
	Logger       *zap.Logger
}

// Response helpers shared by all handlers.
func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

// parseBodyAction extracts the "actions" field from the request body.
// Every API request routes on it.
func parseBodyAction(c echo.Context) (string, map[string]interface{}, error) {
	body := make(map[string]interface{})
	if err := c.Bind(&body); err != nil {
		return "", nil, err
	}
	action, _ := body["actions"].(string)
	return action, body, nil
}

func getStringField(body map[string]interface{}, key string) string {
	v, _ := body[key].(string)
	return v
}

func getIntField(body map[string]interface{}, key string, def int) int {
	switch v := body[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func getUintField(body map[string]interface{}, key string) uint {
	return uint(getIntField(body, key, 0))
}

func getInt64Field(body map[string]interface{}, key string) int64 {
	return int64(getIntField(body, key, 0))
}

// getDecimalField accepts both JSON numbers and strings for amounts.
func getDecimalField(body map[string]interface{}, key string) decimal.Decimal {
	switch v := body[key].(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}
