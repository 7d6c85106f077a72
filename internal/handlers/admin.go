package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/medlane-ng/medlane-backend/internal/storage"
)

// AdminHandler serves the back-office export and stats endpoints. Exports
// go through a closed registry of named entities rather than reflective
// table access: only what is registered here can leave the system.
type AdminHandler struct {
	store     storage.Store
	exporters map[string]exporter
}

type exporter func(storage.Store) (interface{}, error)

func NewAdminHandler(store storage.Store) *AdminHandler {
	return &AdminHandler{
		store: store,
		exporters: map[string]exporter{
			"users": func(s storage.Store) (interface{}, error) { return s.GetAllUsers() },
			"orders": func(s storage.Store) (interface{}, error) { return s.GetAllOrders() },
			"appointments": func(s storage.Store) (interface{}, error) { return s.GetAllAppointments() },
			"lab-bookings": func(s storage.Store) (interface{}, error) { return s.GetAllLabBookings() },
			"prescriptions": func(s storage.Store) (interface{}, error) { return s.GetAllPrescriptions() },
			"tickets": func(s storage.Store) (interface{}, error) { return s.GetAllTickets() },
		},
	}
}

// Export returns every record of one registered entity.
func (h *AdminHandler) Export(c *fiber.Ctx) error {
	entity := c.Params("entity")
	export, ok := h.exporters[entity]
	if !ok {
		names := make([]string, 0, len(h.exporters))
		for name := range h.exporters {
			names = append(names, name)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":    "unknown entity",
			"entities": names,
		})
	}

	records, err := export(h.store)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "export failed"})
	}
	return c.JSON(fiber.Map{"entity": entity, "records": records})
}

// SessionStats reports session counts grouped by lifecycle state.
func (h *AdminHandler) SessionStats(c *fiber.Ctx) error {
	counts, err := h.store.CountSessionsByState()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "stats failed"})
	}
	return c.JSON(fiber.Map{"sessions_by_state": counts})
}
