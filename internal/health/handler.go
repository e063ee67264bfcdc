package health

import (
	"context"
	"time"

	"fruteria-backend/internal/cache"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const timeout = 3 * time.Second

type Status struct {
	OK    bool   `json:"ok"`
	DB    string `json:"db"`
	Redis string `json:"redis"` // "disabled" sin REDIS_URL
}

// GET /api/health: 503 si la base o redis (cuando está configurado) no responden.
func Handler(db *gorm.DB, rc *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		st := Status{DB: "connected", Redis: "disabled"}
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			st.DB = "error"
		}
		if rc.Enabled() {
			st.Redis = "connected"
			if rc.Ping(ctx) != nil {
				st.Redis = "error"
			}
		}

		st.OK = st.DB == "connected" && st.Redis != "error"
		code := fiber.StatusOK
		if !st.OK {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(st)
	}
}
