package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/repository"
)

// ServiceHandler exposes provisioning operations.
type ServiceHandler struct {
	deps *Deps
}

func NewServiceHandler(deps *Deps) *ServiceHandler {
	return &ServiceHandler{deps: deps}
}

// Handle routes service API requests.
// POST /api/services
func (h *ServiceHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "provision":
		return h.provision(c, body)
	case "renew":
		return h.renew(c, body)
	case "add_traffic":
		return h.addTraffic(c, body)
	case "usage":
		return h.usage(c, body)
	case "reset_uuid":
		return h.resetUUID(c, body)
	case "delete":
		return h.delete(c, body)
	case "services":
		return h.list(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *ServiceHandler) provision(c echo.Context, body map[string]interface{}) error {
	userID := getUintField(body, "user_id")
	planID := getUintField(body, "plan_id")
	serverID := getUintField(body, "server_id")
	remark := getStringField(body, "remark")
	if userID == 0 || planID == 0 || serverID == 0 || remark == "" {
		return errorResponse(c, "user_id, plan_id, server_id and remark are required")
	}

	svc, err := h.deps.Orchestrator.CreateServiceAfterPayment(c.Request().Context(), userID, planID, serverID, remark)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "User, plan or server not found")
		}
		// Payment has already settled; surface for manual remediation.
		h.deps.Logger.Error("provisioning failed after settled payment",
			zap.Uint("user_id", userID), zap.Uint("plan_id", planID), zap.Error(err))
		return errorResponse(c, "Provisioning failed; payment remains settled")
	}
	return successResponse(c, "Successful", svc)
}

func (h *ServiceHandler) renew(c echo.Context, body map[string]interface{}) error {
	svcID := getUintField(body, "service_id")
	addDays := getIntField(body, "add_days", 0)
	if svcID == 0 || addDays <= 0 {
		return errorResponse(c, "service_id and a positive add_days are required")
	}

	outcome, err := h.deps.Orchestrator.RenewService(c.Request().Context(), svcID, addDays)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "Service not found")
		}
		h.deps.Logger.Error("renew failed", zap.Uint("service_id", svcID), zap.Error(err))
		return errorResponse(c, "Failed to renew service")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"panel_applied": outcome.Applied(),
	})
}

func (h *ServiceHandler) addTraffic(c echo.Context, body map[string]interface{}) error {
	svcID := getUintField(body, "service_id")
	addGB := getIntField(body, "add_gb", 0)
	if svcID == 0 || addGB <= 0 {
		return errorResponse(c, "service_id and a positive add_gb are required")
	}

	outcome, err := h.deps.Orchestrator.AddTraffic(c.Request().Context(), svcID, addGB)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "Service not found")
		}
		h.deps.Logger.Error("add traffic failed", zap.Uint("service_id", svcID), zap.Error(err))
		return errorResponse(c, "Failed to add traffic")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"panel_applied": outcome.Applied(),
	})
}

func (h *ServiceHandler) usage(c echo.Context, body map[string]interface{}) error {
	svcID := getUintField(body, "service_id")
	if svcID == 0 {
		return errorResponse(c, "service_id is required")
	}

	usage, err := h.deps.Orchestrator.GetUsage(c.Request().Context(), svcID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "Service not found")
		}
		h.deps.Logger.Error("usage fetch failed", zap.Uint("service_id", svcID), zap.Error(err))
		return errorResponse(c, "Failed to fetch usage")
	}
	return successResponse(c, "Successful", usage)
}

func (h *ServiceHandler) resetUUID(c echo.Context, body map[string]interface{}) error {
	svcID := getUintField(body, "service_id")
	if svcID == 0 {
		return errorResponse(c, "service_id is required")
	}

	svc, err := h.deps.Orchestrator.ResetIdentity(c.Request().Context(), svcID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "Service not found")
		}
		h.deps.Logger.Error("identity reset failed", zap.Uint("service_id", svcID), zap.Error(err))
		return errorResponse(c, "Failed to reset identity")
	}
	return successResponse(c, "Successful", svc)
}

func (h *ServiceHandler) delete(c echo.Context, body map[string]interface{}) error {
	svcID := getUintField(body, "service_id")
	if svcID == 0 {
		return errorResponse(c, "service_id is required")
	}

	outcome, err := h.deps.Orchestrator.DeleteService(c.Request().Context(), svcID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, "Service not found")
		}
		h.deps.Logger.Error("delete failed", zap.Uint("service_id", svcID), zap.Error(err))
		return errorResponse(c, "Failed to delete service")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"panel_applied": outcome.Applied(),
	})
}

func (h *ServiceHandler) list(c echo.Context, body map[string]interface{}) error {
	userID := getUintField(body, "user_id")
	if userID == 0 {
		return errorResponse(c, "user_id is required")
	}
	svcs, err := h.deps.Store.Services().FindByUserID(userID)
	if err != nil {
		h.deps.Logger.Error("list services failed", zap.Error(err))
		return errorResponse(c, "Failed to retrieve services")
	}
	return successResponse(c, "Successful", svcs)
}
