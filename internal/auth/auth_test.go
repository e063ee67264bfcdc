package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fruteria-backend/internal/config"
	"fruteria-backend/internal/httpx"
	"fruteria-backend/internal/models"
	"fruteria-backend/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          strings.Repeat("s", 32),
		JWTExpirationHours: 1,
	}
}

func newAuthApp(db *gorm.DB, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Post("/auth/login", LoginHandler(db, cfg))
	app.Post("/auth/register-admin", RegisterAdminHandler(db))

	protected := app.Group("", JWTMiddleware(db, cfg))
	protected.Get("/auth/validate", ValidateHandler(db))
	protected.Put("/auth/change-password", ChangePasswordHandler(db))
	protected.Delete("/solo-admin", RequireRole(models.RolAdmin, models.RolDuenio), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	protected.Get("/usuarios", RequirePermission("usuarios_lectura"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func jsonRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/auth/login",
		`{"username":"`+username+`","password":"`+password+`"}`, ""))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Token string       `json:"token"`
		User  UserResponse `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestToken_RoundTrip(t *testing.T) {
	cfg := testConfig()
	u := &models.Usuario{ID: 4, Username: "ana", Rol: &models.Rol{Nombre: models.RolVendedor}}

	token, err := GenerateToken(cfg, u)
	require.NoError(t, err)

	claims, err := ParseToken(cfg.JWTSecret, token)
	require.NoError(t, err)
	assert.Equal(t, uint(4), claims.UsuarioID)
	assert.Equal(t, models.RolVendedor, claims.Rol)

	_, err = ParseToken(strings.Repeat("x", 32), token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestToken_Expired(t *testing.T) {
	cfg := testConfig()
	claims := &Claims{
		UsuarioID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	_, err = ParseToken(cfg.JWTSecret, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestLogin(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig()
	app := newAuthApp(db, cfg)
	testutil.CreateUsuario(t, db, "caja1", "secreto1", models.RolVendedor)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/auth/login", `{"username":"caja1","password":"otra"}`, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token := login(t, app, "caja1", "secreto1")

	resp, err = app.Test(jsonRequest(fiber.MethodGet, "/auth/validate", "", token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var u models.Usuario
	require.NoError(t, db.Where("username = ?", "caja1").First(&u).Error)
	assert.NotNil(t, u.UltimoAcceso)
}

func TestJWTMiddleware_RejectsInactiveUser(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testConfig()
	app := newAuthApp(db, cfg)
	u := testutil.CreateUsuario(t, db, "temporal", "secreto1", models.RolVendedor)
	token := login(t, app, "temporal", "secreto1")

	require.NoError(t, db.Model(u).Update("activo", false).Error)

	resp, err := app.Test(jsonRequest(fiber.MethodGet, "/auth/validate", "", token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	db := testutil.NewDB(t)
	app := newAuthApp(db, testConfig())

	resp, err := app.Test(jsonRequest(fiber.MethodGet, "/auth/validate", "", ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRoleAndPermission(t *testing.T) {
	db := testutil.NewDB(t)
	app := newAuthApp(db, testConfig())
	testutil.CreateUsuario(t, db, "vende", "secreto1", models.RolVendedor)
	testutil.CreateUsuario(t, db, "jefa", "secreto1", models.RolDuenio)

	vendedor := login(t, app, "vende", "secreto1")
	duenia := login(t, app, "jefa", "secreto1")

	cases := []struct {
		method, path, token string
		status              int
	}{
		{fiber.MethodDelete, "/solo-admin", vendedor, fiber.StatusForbidden},
		{fiber.MethodDelete, "/solo-admin", duenia, fiber.StatusNoContent},
		{fiber.MethodGet, "/usuarios", vendedor, fiber.StatusForbidden},
		{fiber.MethodGet, "/usuarios", duenia, fiber.StatusNoContent},
	}
	for _, tc := range cases {
		resp, err := app.Test(jsonRequest(tc.method, tc.path, "", tc.token))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestChangePassword(t *testing.T) {
	db := testutil.NewDB(t)
	app := newAuthApp(db, testConfig())
	testutil.CreateUsuario(t, db, "maria", "vieja123", models.RolVendedor)
	token := login(t, app, "maria", "vieja123")

	resp, err := app.Test(jsonRequest(fiber.MethodPut, "/auth/change-password",
		`{"currentPassword":"mala","newPassword":"nueva123"}`, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(jsonRequest(fiber.MethodPut, "/auth/change-password",
		`{"currentPassword":"vieja123","newPassword":"nueva123"}`, token))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	login(t, app, "maria", "nueva123")
}

func TestRegisterAdmin_OnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	app := newAuthApp(db, testConfig())
	body := `{"username":"root","nombre":"Admin","password":"secreto1"}`

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/auth/register-admin", body, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(jsonRequest(fiber.MethodPost, "/auth/register-admin",
		`{"username":"otro","nombre":"Otro","password":"secreto1"}`, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRegisterAdmin_CountsUnderRoleLock(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	app := newAuthApp(db, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "roles" WHERE nombre = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre"}).AddRow(1, string(models.RolAdmin)))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "usuarios" WHERE rol_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/auth/register-admin",
		`{"username":"tarde","nombre":"Tarde","password":"secreto1"}`, ""))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
