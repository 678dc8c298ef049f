package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Requests    *handlers.RequestsHandler
	Assignments *handlers.AssignmentsHandler
	Workload    *handlers.WorkloadHandler
	Technicians *handlers.TechniciansHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	requests := app.Group("/requests")
	requests.Post("", cfg.Requests.Create)
	requests.Get("", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Post("/:id/cancel", cfg.Requests.Cancel)
	requests.Post("/:id/auto-assign", cfg.Assignments.AutoAssign)
	requests.Get("/:id/assignments", cfg.Assignments.ListByRequest)

	assignments := app.Group("/assignments")
	assignments.Post("", cfg.Assignments.Create)
	assignments.Get("/:id", cfg.Assignments.Get)
	assignments.Post("/:id/start", cfg.Assignments.Start)
	assignments.Post("/:id/complete", cfg.Assignments.Complete)
	assignments.Post("/:id/cancel", cfg.Assignments.Cancel)
	assignments.Post("/:id/reassign", cfg.Assignments.Reassign)
	assignments.Delete("/:id", cfg.Assignments.Delete)

	workload := app.Group("/workload")
	workload.Get("/summary", cfg.Workload.Summary)
	workload.Get("/technicians/:id", cfg.Workload.TechnicianDetails)
	workload.Get("/performance", cfg.Workload.PerformanceMetrics)

	technicians := app.Group("/technicians")
	technicians.Post("", cfg.Technicians.Create)
	technicians.Get("", cfg.Technicians.List)
	technicians.Get("/:id", cfg.Technicians.Get)
	technicians.Put("/:id", cfg.Technicians.Update)
}
