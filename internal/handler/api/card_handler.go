package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/repository"
)

// CardHandler exposes receiving payment cards for the payer UI.
type CardHandler struct {
	deps *Deps
}

func NewCardHandler(deps *Deps) *CardHandler {
	return &CardHandler{deps: deps}
}

// Handle routes card API requests.
// POST /api/cards
func (h *CardHandler) Handle(c echo.Context) error {
	action, _, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "cards":
		return h.list(c)
	case "random_card":
		return h.random(c)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *CardHandler) list(c echo.Context) error {
	cards, err := h.deps.Processor.ActiveCards()
	if err != nil {
		h.deps.Logger.Error("list cards failed", zap.Error(err))
		return errorResponse(c, "Failed to retrieve cards")
	}
	return successResponse(c, "Successful", cards)
}

func (h *CardHandler) random(c echo.Context) error {
	card, err := h.deps.Processor.RandomCard()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "No active card configured")
		}
		h.deps.Logger.Error("random card failed", zap.Error(err))
		return errorResponse(c, "Failed to pick a card")
	}
	return successResponse(c, "Successful", card)
}
