package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"fruteria-backend/internal/models"

	"gorm.io/gorm"
)

// Actor identifica a quien ejecuta una operación auditada.
type Actor struct {
	ID     *uint
	Nombre string
}

type LogOptions struct {
	UsuarioID     *uint
	UsuarioNombre string
	EntityType    string
	EntityID      uint
	Action        models.AuditAction
	Description   string
	Before        any
	After         any
}

// Write inserta el registro con tx, que debe ser la misma transacción de la
// operación auditada: si la operación se revierte, el log también.
func Write(tx *gorm.DB, opts LogOptions) error {
	row := models.AuditLog{
		UsuarioID:     opts.UsuarioID,
		UsuarioNombre: opts.UsuarioNombre,
		EntityType:    opts.EntityType,
		EntityID:      opts.EntityID,
		Action:        opts.Action,
		Description:   opts.Description,
		BeforeData:    toJSON(opts.Before),
		AfterData:     toJSON(opts.After),
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("no se pudo guardar el registro de auditoría: %w", err)
	}
	return nil
}

func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

type Filter struct {
	UsuarioID  uint
	EntityType string
	EntityID   uint
	Action     models.AuditAction
	Limit      int
}

func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{})
	if f.UsuarioID > 0 {
		q = q.Where("usuario_id = ?", f.UsuarioID)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
