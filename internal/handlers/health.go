package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	Version string
	DB      *gorm.DB // nil when running on the memory store
}

func NewHealthHandler(version string, db *gorm.DB) *HealthHandler {
	return &HealthHandler{Version: version, DB: db}
}

// Check returns 200 while the service and its database are reachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	dbOK := true

	if h.DB != nil {
		sqlDB, err := h.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			status = "unhealthy"
			code = fiber.StatusServiceUnavailable
			dbOK = false
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "Medlane Backend",
		"version": h.Version,
		"services": fiber.Map{
			"database": dbOK,
		},
	})
}
