package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"fruteria-backend/internal/config"
	"fruteria-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UsuarioID uint             `json:"id"`
	Username  string           `json:"username"`
	Rol       models.RolNombre `json:"rol"`
	jwt.RegisteredClaims
}

var (
	ErrTokenExpired = errors.New("token expirado")
	ErrTokenInvalid = errors.New("token inválido")
)

func GenerateToken(cfg *config.Config, u *models.Usuario) (string, error) {
	if u.Rol == nil {
		return "", fmt.Errorf("usuario %d sin rol cargado", u.ID)
	}
	now := time.Now()
	claims := &Claims{
		UsuarioID: u.ID,
		Username:  u.Username,
		Rol:       u.Rol.Nombre,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.JWTExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado")
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UsuarioID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
