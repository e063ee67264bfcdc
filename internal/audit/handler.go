package audit

import (
	"strconv"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type auditLogResponse struct {
	ID            uint               `json:"id"`
	CreatedAt     string             `json:"created_at"`
	UsuarioID     *uint              `json:"usuario_id"`
	UsuarioNombre string             `json:"usuario_nombre"`
	EntityType    string             `json:"entity_type"`
	EntityID      uint               `json:"entity_id"`
	Action        models.AuditAction `json:"action"`
	Description   string             `json:"description"`
}

// GET /api/audit-logs?entity_type=venta&entity_id=1&usuario_id=2&action=void&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := Filter{
			EntityType: c.Query("entity_type"),
			Action:     models.AuditAction(c.Query("action")),
			Limit:      httpx.QueryInt(c, "limit", 100),
		}
		if v, err := strconv.ParseUint(c.Query("usuario_id"), 10, 64); err == nil {
			f.UsuarioID = uint(v)
		}
		if v, err := strconv.ParseUint(c.Query("entity_id"), 10, 64); err == nil {
			f.EntityID = uint(v)
		}

		logs, err := List(c.UserContext(), db, f)
		if err != nil {
			return apperr.Storage("No se pudieron listar los registros de auditoría", err)
		}

		resp := make([]auditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, auditLogResponse{
				ID:            l.ID,
				CreatedAt:     l.CreatedAt.Format("2006-01-02 15:04:05"),
				UsuarioID:     l.UsuarioID,
				UsuarioNombre: l.UsuarioNombre,
				EntityType:    l.EntityType,
				EntityID:      l.EntityID,
				Action:        l.Action,
				Description:   l.Description,
			})
		}
		return httpx.List(c, resp)
	}
}
