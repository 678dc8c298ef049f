package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/service"
)

// WorkloadHandler exposes workload and performance projections.
type WorkloadHandler struct {
	workload *service.WorkloadService
}

// NewWorkloadHandler constructs handler.
func NewWorkloadHandler(workloadService *service.WorkloadService) *WorkloadHandler {
	return &WorkloadHandler{workload: workloadService}
}

// Summary GET /workload/summary.
func (h *WorkloadHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.workload.GetWorkloadSummary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// TechnicianDetails GET /workload/technicians/:id.
func (h *WorkloadHandler) TechnicianDetails(c *fiber.Ctx) error {
	details, err := h.workload.GetTechnicianWorkloadDetails(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": details})
}

// PerformanceMetrics GET /workload/performance.
func (h *WorkloadHandler) PerformanceMetrics(c *fiber.Ctx) error {
	var technicianID *string
	if id := c.Query("technician_id"); id != "" {
		technicianID = &id
	}
	start := parseTime(c.Query("start"))
	end := parseTime(c.Query("end"))
	metrics, err := h.workload.GetPerformanceMetrics(c.UserContext(), technicianID, start, end)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": metrics})
}
