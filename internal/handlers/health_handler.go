package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/unipet/billing-engine/internal/dto"
	"github.com/unipet/billing-engine/internal/objectstore"
)

const healthProbeKey = "healthcheck"

type HealthHandler struct {
	ping    func() error
	objects objectstore.Store
}

// NewHealthHandler takes the database ping separately so the handler works
// against any store.
func NewHealthHandler(ping func() error, objects objectstore.Store) *HealthHandler {
	return &HealthHandler{ping: ping, objects: objects}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := h.ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	objectStatus := "ok"
	if _, err := h.objects.Exists(c.UserContext(), healthProbeKey); err != nil {
		objectStatus = "unhealthy: " + err.Error()
	}

	status := "ok"
	if dbStatus != "ok" || objectStatus != "ok" {
		status = "degraded"
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		Objects:   objectStatus,
	})
}
