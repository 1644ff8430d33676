package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facestream/internal/database"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const Version = "0.1.0"

// SessionCounter is satisfied by *ws.Hub.
type SessionCounter interface {
	Count() int
}

type HealthHandler struct {
	sessions SessionCounter
	db       database.Pinger
}

// NewHealthHandler builds the probes. db may be nil when no database is
// configured.
func NewHealthHandler(sessions SessionCounter, db database.Pinger) *HealthHandler {
	return &HealthHandler{sessions: sessions, db: db}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Sessions *int              `json:"sessions,omitempty"`
	Checks   map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "ready", Checks: map[string]string{}}

	if h.sessions != nil {
		n := h.sessions.Count()
		resp.Sessions = &n
	}

	if h.db != nil {
		if err := database.HealthCheck(c.UserContext(), h.db); err != nil {
			resp.Status = "unavailable"
			resp.Checks["database"] = err.Error()
			return c.Status(domain.ErrServiceUnavailable.StatusCode).JSON(resp)
		}
		resp.Checks["database"] = "ok"
	}

	return c.JSON(resp)
}
