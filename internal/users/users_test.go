package users

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"fruteria-backend/internal/apperr"
	"fruteria-backend/internal/auth"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ctx = context.Background()

func rolID(t *testing.T, db *gorm.DB, nombre models.RolNombre) uint {
	t.Helper()
	var r models.Rol
	require.NoError(t, db.Where("nombre = ?", nombre).First(&r).Error)
	return r.ID
}

func managerOf(u *models.Usuario) Manager {
	return Manager{ID: u.ID, Nombre: u.Username, Rol: u.Rol.Nombre}
}

func TestCreate_RoleRules(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	duenio := managerOf(testutil.CreateUsuario(t, db, "duenio", "secreto12", models.RolDuenio))

	u, err := svc.Create(ctx, duenio, CreateInput{
		Username: "caja2", Password: "secreto12", Nombre: "Caja 2",
		Email: "caja2@fruteria.mx", RolID: rolID(t, db, models.RolVendedor),
	})
	require.NoError(t, err)
	require.NotNil(t, u.Rol)
	assert.Equal(t, models.RolVendedor, u.Rol.Nombre)
	assert.NotEqual(t, "secreto12", u.PasswordHash)

	_, err = svc.Create(ctx, duenio, CreateInput{
		Username: "jefe", Password: "secreto12", Nombre: "Jefe", RolID: rolID(t, db, models.RolAdmin),
	})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Create(ctx, duenio, CreateInput{
		Username: "caja2", Password: "secreto12", Nombre: "Repetido", RolID: rolID(t, db, models.RolVendedor),
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Create(ctx, duenio, CreateInput{Username: "a b", Password: "secreto12", Nombre: "X", RolID: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Create(ctx, duenio, CreateInput{Username: "corto", Password: "123", Nombre: "X", RolID: 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Create(ctx, duenio, CreateInput{Username: "sinrol", Password: "secreto12", Nombre: "X", RolID: 99})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	admin := testutil.CreateUsuario(t, db, "admin", "secreto12", models.RolAdmin)
	duenio := testutil.CreateUsuario(t, db, "duenio", "secreto12", models.RolDuenio)
	vendedor := testutil.CreateUsuario(t, db, "caja1", "secreto12", models.RolVendedor)

	nombre, email := "Caja Uno", "caja1@fruteria.mx"
	got, err := svc.Update(ctx, managerOf(duenio), vendedor.ID, Patch{Nombre: &nombre, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Caja Uno", got.Nombre)
	require.NotNil(t, got.Email)
	assert.Equal(t, email, *got.Email)

	t.Run("owner cannot touch admins", func(t *testing.T) {
		_, err := svc.Update(ctx, managerOf(duenio), admin.ID, Patch{Nombre: &nombre})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("owner cannot promote", func(t *testing.T) {
		rol := rolID(t, db, models.RolDuenio)
		_, err := svc.Update(ctx, managerOf(duenio), vendedor.ID, Patch{RolID: &rol})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("last admin stays active", func(t *testing.T) {
		no := false
		_, err := svc.Update(ctx, managerOf(admin), admin.ID, Patch{Activo: &no})
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		rol := rolID(t, db, models.RolVendedor)
		_, err = svc.Update(ctx, managerOf(admin), admin.ID, Patch{RolID: &rol})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("password change", func(t *testing.T) {
		pw := "nuevaClave1"
		_, err := svc.Update(ctx, managerOf(admin), vendedor.ID, Patch{Password: &pw})
		require.NoError(t, err)
		var u models.Usuario
		require.NoError(t, db.First(&u, vendedor.ID).Error)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(pw)))
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := svc.Update(ctx, managerOf(admin), vendedor.ID, Patch{})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestToggleAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	admin := testutil.CreateUsuario(t, db, "admin", "secreto12", models.RolAdmin)
	vendedor := testutil.CreateUsuario(t, db, "caja1", "secreto12", models.RolVendedor)
	m := managerOf(admin)

	u, err := svc.ToggleStatus(ctx, m, vendedor.ID)
	require.NoError(t, err)
	assert.False(t, u.Activo)
	u, err = svc.ToggleStatus(ctx, m, vendedor.ID)
	require.NoError(t, err)
	assert.True(t, u.Activo)

	_, err = svc.ToggleStatus(ctx, m, admin.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.True(t, apperr.Is(svc.Delete(ctx, m, admin.ID), apperr.KindValidation))

	otroAdmin := Manager{ID: 999, Nombre: "sistema", Rol: models.RolAdmin}
	assert.True(t, apperr.Is(svc.Delete(ctx, otroAdmin, admin.ID), apperr.KindValidation))

	require.NoError(t, svc.Delete(ctx, m, vendedor.ID))
	got, err := svc.Get(ctx, vendedor.ID)
	require.NoError(t, err)
	assert.False(t, got.Activo)

	assert.True(t, apperr.Is(svc.Delete(ctx, m, 12345), apperr.KindNotFound))
}

func TestResetPassword(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	admin := testutil.CreateUsuario(t, db, "admin", "secreto12", models.RolAdmin)
	vendedor := testutil.CreateUsuario(t, db, "caja1", "secreto12", models.RolVendedor)

	assert.True(t, apperr.Is(svc.ResetPassword(ctx, managerOf(admin), vendedor.ID, "123"), apperr.KindValidation))
	require.NoError(t, svc.ResetPassword(ctx, managerOf(admin), vendedor.ID, "123456"))

	var u models.Usuario
	require.NoError(t, db.First(&u, vendedor.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("123456")))
}

func TestListAndStats(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	testutil.CreateUsuario(t, db, "admin", "secreto12", models.RolAdmin)
	testutil.CreateUsuario(t, db, "caja1", "secreto12", models.RolVendedor)
	v2 := testutil.CreateUsuario(t, db, "caja2", "secreto12", models.RolVendedor)
	require.NoError(t, db.Model(v2).Update("activo", false).Error)

	page, p, err := svc.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, Pagination{Total: 3, Pages: 2, Current: 1, Limit: 2}, *p)

	cajas, _, err := svc.List(ctx, Filter{Search: "CAJA", RolID: rolID(t, db, models.RolVendedor)})
	require.NoError(t, err)
	assert.Len(t, cajas, 2)

	activo := true
	activos, _, err := svc.List(ctx, Filter{Activo: &activo})
	require.NoError(t, err)
	assert.Len(t, activos, 2)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Total)
	assert.Equal(t, int64(1), st.Inactivos)
	assert.Equal(t, int64(2), st.TotalRoles)
	require.Len(t, st.PorRol, 3)
	assert.Equal(t, RolCantidad{Rol: models.RolVendedor, Cantidad: 2}, st.PorRol[0])
}

func TestHandlers_UseAuthenticatedManager(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(db)
	duenio := testutil.CreateUsuario(t, db, "duenio", "secreto12", models.RolDuenio)

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, duenio.ID)
		c.Locals(auth.CtxUsernameKey, duenio.Username)
		c.Locals(auth.CtxUserRoleKey, models.RolDuenio)
		return c.Next()
	})
	app.Post("/usuarios", CreateUsuarioHandler(svc))

	create := func(rol models.RolNombre) (int, httpx.Envelope) {
		body := `{"username":"nuevo_` + string(rol) + `","password":"secreto12","nombre":"Nuevo","rol_id":` +
			strconv.Itoa(int(rolID(t, db, rol))) + `}`
		req := httptest.NewRequest(fiber.MethodPost, "/usuarios", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		var env httpx.Envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return resp.StatusCode, env
	}

	status, _ := create(models.RolVendedor)
	assert.Equal(t, fiber.StatusCreated, status)

	status, env := create(models.RolAdmin)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.False(t, env.Success)

	var log models.AuditLog
	require.NoError(t, db.Where("entity_type = ?", "usuario").First(&log).Error)
	require.NotNil(t, log.UsuarioID)
	assert.Equal(t, duenio.ID, *log.UsuarioID)
}
