package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// AssignmentsHandler exposes the assignment lifecycle to managers and
// technicians.
type AssignmentsHandler struct {
	lifecycle *service.AssignmentService
	selector  *service.SelectorService
	metrics   *observability.Metrics
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(lifecycle *service.AssignmentService, selector *service.SelectorService, metrics *observability.Metrics) *AssignmentsHandler {
	return &AssignmentsHandler{lifecycle: lifecycle, selector: selector, metrics: metrics}
}

// Create POST /assignments (manual assignment).
func (h *AssignmentsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.ServiceRequestID) == "" || strings.TrimSpace(req.TechnicianID) == "" {
		return fiber.NewError(http.StatusBadRequest, "service_request_id and technician_id required")
	}
	assignment, err := h.lifecycle.Create(c.UserContext(), service.CreateAssignmentInput{
		ServiceRequestID: req.ServiceRequestID,
		TechnicianID:     req.TechnicianID,
		ScheduledDate:    req.ScheduledDate,
		Notes:            req.Notes,
		EstimatedHours:   req.EstimatedHours,
	})
	h.metrics.RecordOperation("assignment_create", err == nil)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromAssignment(assignment)})
}

// AutoAssign POST /requests/:id/auto-assign.
func (h *AssignmentsHandler) AutoAssign(c *fiber.Ctx) error {
	assignment, err := h.selector.AutoAssign(c.UserContext(), c.Params("id"))
	h.metrics.RecordOperation("auto_assign", err == nil)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromAssignment(assignment)})
}

// Get GET /assignments/:id.
func (h *AssignmentsHandler) Get(c *fiber.Ctx) error {
	assignment, err := h.lifecycle.GetAssignment(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAssignment(assignment)})
}

// ListByRequest GET /requests/:id/assignments.
func (h *AssignmentsHandler) ListByRequest(c *fiber.Ctx) error {
	assignments, err := h.lifecycle.ListByRequest(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		items = append(items, dto.FromAssignment(&assignments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Start POST /assignments/:id/start.
func (h *AssignmentsHandler) Start(c *fiber.Ctx) error {
	assignment, err := h.lifecycle.Start(c.UserContext(), c.Params("id"))
	h.metrics.RecordOperation("assignment_start", err == nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAssignment(assignment)})
}

// Complete POST /assignments/:id/complete.
func (h *AssignmentsHandler) Complete(c *fiber.Ctx) error {
	var req dto.CompleteAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	assignment, err := h.lifecycle.Complete(c.UserContext(), c.Params("id"), req.CompletionNotes, req.ActualHours)
	h.metrics.RecordOperation("assignment_complete", err == nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAssignment(assignment)})
}

// Cancel POST /assignments/:id/cancel.
func (h *AssignmentsHandler) Cancel(c *fiber.Ctx) error {
	var req dto.CancelAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	assignment, err := h.lifecycle.Cancel(c.UserContext(), c.Params("id"), req.Reason)
	h.metrics.RecordOperation("assignment_cancel", err == nil)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromAssignment(assignment)})
}

// Reassign POST /assignments/:id/reassign.
func (h *AssignmentsHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.TechnicianID) == "" {
		return fiber.NewError(http.StatusBadRequest, "technician_id required")
	}
	assignment, err := h.lifecycle.Reassign(c.UserContext(), c.Params("id"), req.TechnicianID, req.Reason)
	h.metrics.RecordOperation("assignment_reassign", err == nil)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromAssignment(assignment)})
}

// Delete DELETE /assignments/:id (administrative).
func (h *AssignmentsHandler) Delete(c *fiber.Ctx) error {
	if err := h.lifecycle.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
