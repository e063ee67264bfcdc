package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWrite_SerializesSnapshots(t *testing.T) {
	db := testutil.NewDB(t)
	uid := uint(3)

	require.NoError(t, Write(db, LogOptions{
		UsuarioID:   &uid,
		EntityType:  "merma",
		EntityID:    9,
		Action:      models.AuditActionCreate,
		Description: "Merma registrada",
		After:       map[string]string{"motivo": "robo"},
	}))

	var row models.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "null", row.BeforeData)
	assert.JSONEq(t, `{"motivo":"robo"}`, row.AfterData)
	require.NotNil(t, row.UsuarioID)
	assert.Equal(t, uid, *row.UsuarioID)
}

func TestWrite_RolledBackWithTransaction(t *testing.T) {
	db := testutil.NewDB(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := Write(tx, LogOptions{EntityType: "venta", EntityID: 1, Action: models.AuditActionVoid}); err != nil {
			return err
		}
		return errors.New("falla posterior")
	})
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestList_Filters(t *testing.T) {
	db := testutil.NewDB(t)
	for i, tipo := range []string{"venta", "venta", "entrada"} {
		require.NoError(t, Write(db, LogOptions{
			EntityType: tipo,
			EntityID:   uint(i + 1),
			Action:     models.AuditActionCreate,
		}))
	}

	logs, err := List(context.Background(), db, Filter{EntityType: "venta"})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = List(context.Background(), db, Filter{EntityType: "venta", EntityID: 2})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, uint(2), logs[0].EntityID)
}

func TestListAuditLogsHandler(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, Write(db, LogOptions{EntityType: "producto", EntityID: 5, Action: models.AuditActionAdjust}))

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Get("/audit-logs", ListAuditLogsHandler(db))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/audit-logs?entity_type=producto", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var env struct {
		Success bool               `json:"success"`
		Count   int                `json:"count"`
		Data    []auditLogResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, 1, env.Count)
	assert.Equal(t, models.AuditActionAdjust, env.Data[0].Action)
}
