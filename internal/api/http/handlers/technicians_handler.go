package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// TechniciansHandler manages the technician directory.
type TechniciansHandler struct {
	directory *service.DirectoryService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(directoryService *service.DirectoryService) *TechniciansHandler {
	return &TechniciansHandler{directory: directoryService}
}

// Create POST /technicians.
func (h *TechniciansHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	technician, err := h.directory.CreateTechnician(c.UserContext(), service.TechnicianInput{
		Name:            req.Name,
		Email:           req.Email,
		Specializations: req.Specializations,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTechnician(technician)})
}

// Get GET /technicians/:id.
func (h *TechniciansHandler) Get(c *fiber.Ctx) error {
	technician, err := h.directory.GetTechnician(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTechnician(technician)})
}

// Update PUT /technicians/:id.
func (h *TechniciansHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	technician, err := h.directory.UpdateTechnician(c.UserContext(), c.Params("id"), req.Name, req.Email, req.Active, req.Specializations)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTechnician(technician)})
}

// List GET /technicians.
func (h *TechniciansHandler) List(c *fiber.Ctx) error {
	technicians, err := h.directory.ListActiveTechnicians(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(technicians))
	for i := range technicians {
		items = append(items, dto.FromTechnician(&technicians[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
