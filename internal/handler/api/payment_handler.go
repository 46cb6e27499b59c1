package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/fraud"
	"vendbot/internal/repository"
)

// PaymentHandler exposes the settlement operations to admin tooling and
// the chat layer.
type PaymentHandler struct {
	deps *Deps
}

func NewPaymentHandler(deps *Deps) *PaymentHandler {
	return &PaymentHandler{deps: deps}
}

// Handle routes payment API requests.
// POST /api/payments
func (h *PaymentHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "topup":
		return h.topup(c, body)
	case "purchase":
		return h.purchase(c, body)
	case "approve":
		return h.approve(c, body)
	case "reject":
		return h.reject(c, body)
	case "deduct":
		return h.deduct(c, body)
	case "transfer":
		return h.transfer(c, body)
	case "pending":
		return h.pending(c, body)
	case "transactions":
		return h.transactions(c, body)
	case "fraud_score":
		return h.fraudScore(c, body)
	case "validate_receipt":
		return h.validateReceipt(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *PaymentHandler) topup(c echo.Context, body map[string]interface{}) error {
	userID := getUintField(body, "user_id")
	amount := getDecimalField(body, "amount")
	receiptRef := getStringField(body, "receipt_ref")

	if userID == 0 || !amount.IsPositive() {
		return errorResponse(c, "user_id and a positive amount are required")
	}
	if receiptRef == "" {
		return errorResponse(c, "receipt_ref is required")
	}

	tx, err := h.deps.Processor.ProcessWalletTopup(c.Request().Context(), userID, amount, receiptRef, getStringField(body, "description"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "User not found")
		}
		h.deps.Logger.Error("topup failed", zap.Error(err))
		return errorResponse(c, "Failed to process top-up")
	}
	return successResponse(c, "Successful", tx)
}

func (h *PaymentHandler) purchase(c echo.Context, body map[string]interface{}) error {
	userID := getUintField(body, "user_id")
	intentID := getUintField(body, "intent_id")
	if userID == 0 || intentID == 0 {
		return errorResponse(c, "user_id and intent_id are required")
	}

	tx, err := h.deps.Processor.ProcessPurchasePayment(c.Request().Context(), userID, intentID, getStringField(body, "receipt_ref"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "Purchase intent not found")
		}
		h.deps.Logger.Error("purchase payment failed", zap.Error(err))
		return errorResponse(c, "Failed to process purchase payment")
	}
	return successResponse(c, "Successful", tx)
}

func (h *PaymentHandler) approve(c echo.Context, body map[string]interface{}) error {
	txID := getUintField(body, "transaction_id")
	adminID := getInt64Field(body, "admin_id")
	if txID == 0 {
		return errorResponse(c, "transaction_id is required")
	}

	ok, err := h.deps.Processor.ApproveTransaction(txID, adminID, getStringField(body, "notes"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "Transaction not found")
		}
		h.deps.Logger.Error("approve failed", zap.Uint("transaction_id", txID), zap.Error(err))
		return errorResponse(c, "Failed to approve transaction")
	}
	if !ok {
		return errorResponse(c, "Transaction is not pending")
	}
	return successResponse(c, "Transaction approved", map[string]interface{}{"transaction_id": txID})
}

func (h *PaymentHandler) reject(c echo.Context, body map[string]interface{}) error {
	txID := getUintField(body, "transaction_id")
	adminID := getInt64Field(body, "admin_id")
	reason := getStringField(body, "reason")
	if txID == 0 || reason == "" {
		return errorResponse(c, "transaction_id and reason are required")
	}

	ok, err := h.deps.Processor.RejectTransaction(txID, adminID, reason)
	if err != nil {
		h.deps.Logger.Error("reject failed", zap.Uint("transaction_id", txID), zap.Error(err))
		return errorResponse(c, "Failed to reject transaction")
	}
	if !ok {
		return errorResponse(c, "Transaction is not pending")
	}
	return successResponse(c, "Transaction rejected", map[string]interface{}{"transaction_id": txID})
}

func (h *PaymentHandler) deduct(c echo.Context, body map[string]interface{}) error {
	userID := getUintField(body, "user_id")
	amount := getDecimalField(body, "amount")
	if userID == 0 || !amount.IsPositive() {
		return errorResponse(c, "user_id and a positive amount are required")
	}

	ok, err := h.deps.Processor.ProcessWalletDeduction(userID, amount, getStringField(body, "description"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "User not found")
		}
		h.deps.Logger.Error("deduction failed", zap.Uint("user_id", userID), zap.Error(err))
		return errorResponse(c, "Failed to deduct from wallet")
	}
	if !ok {
		return errorResponse(c, "Insufficient balance")
	}
	return successResponse(c, "Wallet deducted", nil)
}

func (h *PaymentHandler) transfer(c echo.Context, body map[string]interface{}) error {
	fromID := getUintField(body, "from_user_id")
	toID := getUintField(body, "to_user_id")
	amount := getDecimalField(body, "amount")
	if fromID == 0 || toID == 0 || !amount.IsPositive() {
		return errorResponse(c, "from_user_id, to_user_id and a positive amount are required")
	}

	ok, err := h.deps.Processor.TransferBalance(fromID, toID, amount, getStringField(body, "description"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "User not found")
		}
		h.deps.Logger.Error("transfer failed", zap.Error(err))
		return errorResponse(c, "Failed to transfer balance")
	}
	if !ok {
		return errorResponse(c, "Insufficient balance")
	}
	return successResponse(c, "Balance transferred", nil)
}

func (h *PaymentHandler) pending(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)

	txs, total, err := h.deps.Store.Transactions().FindPending(limit, page)
	if err != nil {
		h.deps.Logger.Error("list pending failed", zap.Error(err))
		return errorResponse(c, "Failed to retrieve pending transactions")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"transactions": txs,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

func (h *PaymentHandler) transactions(c echo.Context, body map[string]interface{}) error {
	userID := getUintField(body, "user_id")
	if userID == 0 {
		return errorResponse(c, "user_id is required")
	}
	txs, err := h.deps.Store.Transactions().FindByUserID(userID, getIntField(body, "limit", 50))
	if err != nil {
		h.deps.Logger.Error("list transactions failed", zap.Error(err))
		return errorResponse(c, "Failed to retrieve transactions")
	}
	return successResponse(c, "Successful", txs)
}

func (h *PaymentHandler) fraudScore(c echo.Context, body map[string]interface{}) error {
	userID := getUintField(body, "user_id")
	amount := getDecimalField(body, "amount")
	if userID == 0 {
		return errorResponse(c, "user_id is required")
	}

	score, err := h.deps.Detector.CalculateFraudScore(userID, amount, getStringField(body, "receipt_ref"))
	if err != nil {
		h.deps.Logger.Error("fraud scoring failed", zap.Uint("user_id", userID), zap.Error(err))
		return errorResponse(c, "Failed to calculate fraud score")
	}
	return successResponse(c, "Successful", map[string]interface{}{"fraud_score": score})
}

func (h *PaymentHandler) validateReceipt(c echo.Context, body map[string]interface{}) error {
	text := getStringField(body, "receipt_text")
	return successResponse(c, "Successful", fraud.ValidateReceiptFormat(text))
}
