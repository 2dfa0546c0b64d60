package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/medbook/support-engine/internal/api/dto"
	"github.com/medbook/support-engine/internal/auth"
	"github.com/medbook/support-engine/internal/observability"
	"github.com/medbook/support-engine/internal/service"
	apperrors "github.com/medbook/support-engine/pkg/util"
)

// AdminTicketsHandler manages the support-staff ticket endpoints and the
// manual sweep triggers.
type AdminTicketsHandler struct {
	service    *service.TicketService
	escalation *service.EscalationEngine
	autoClose  *service.AutoCloseSweeper
	metrics    *observability.Metrics
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService, escalation *service.EscalationEngine, autoClose *service.AutoCloseSweeper, metrics *observability.Metrics) *AdminTicketsHandler {
	return &AdminTicketsHandler{
		service:    ticketService,
		escalation: escalation,
		autoClose:  autoClose,
		metrics:    metrics,
	}
}

// UpdateTicket PUT /tickets/:id.
func (h *AdminTicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.UpdateTicket(c.Context(), principal.User, c.Params("id"), service.TicketUpdateInput{
		Category:   req.Category,
		Priority:   req.Priority,
		Subject:    req.Subject,
		Resolution: req.Resolution,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *AdminTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	ticket, err := h.service.UpdateStatus(c.Context(), principal.User, c.Params("id"), req.Status, req.Resolution)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AssignTicket POST /tickets/:id/assign.
func (h *AdminTicketsHandler) AssignTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.AssignTicket(c.Context(), principal.User, c.Params("id"), req.AdminID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// Stats GET /tickets/admin/stats.
func (h *AdminTicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatsResponse{
		ByStatus:   stats.ByStatus,
		ByPriority: stats.ByPriority,
		Escalated:  stats.Escalated,
		Unassigned: stats.Unassigned,
		Overdue:    stats.Overdue,
		Sweeps:     h.metrics.SweepSnapshot(),
	}})
}

// TriggerEscalation POST /tickets/escalate runs one escalation sweep
// immediately.
func (h *AdminTicketsHandler) TriggerEscalation(c *fiber.Ctx) error {
	result, err := h.escalation.RunSweep(c.Context(), time.Now())
	if err != nil {
		return apperrors.MapError(err)
	}
	h.metrics.RecordSweep("escalation", result.Escalated+result.Alerted, result.Errors)
	return c.JSON(fiber.Map{"data": dto.SweepResponse{
		Job:        "escalation",
		Checked:    result.Checked,
		Changed:    result.Escalated + result.Alerted,
		Errors:     result.Errors,
		DurationMs: result.Duration.Milliseconds(),
	}})
}

// CloseInactive POST /tickets/admin/close-inactive runs one auto-close sweep.
// The daysInactive query overrides the configured window.
func (h *AdminTicketsHandler) CloseInactive(c *fiber.Ctx) error {
	inactivity := time.Duration(0)
	if days := parseInt(c.Query("daysInactive"), 0); days > 0 {
		inactivity = time.Duration(days) * 24 * time.Hour
	}

	result, err := h.autoClose.RunSweep(c.Context(), time.Now(), inactivity)
	if err != nil {
		return apperrors.MapError(err)
	}
	h.metrics.RecordSweep("auto_close", result.Closed, result.Errors)
	return c.JSON(fiber.Map{"data": dto.SweepResponse{
		Job:        "auto_close",
		Checked:    result.Checked,
		Changed:    result.Closed,
		Errors:     result.Errors,
		DurationMs: result.Duration.Milliseconds(),
	}})
}
