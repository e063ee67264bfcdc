package database

import (
	"fmt"
	"time"

	"fruteria-backend/internal/config"
	"fruteria-backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open abre el pool de conexiones. El ciclo de vida (Close) lo maneja main.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormLog := log.Logger.With().Str("component", "gorm").Logger()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(&gormLog, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("no se pudo conectar a la base de datos: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Close cierra el pool subyacente.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate crea/actualiza el esquema y asegura los roles base.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Rol{},
		&models.Usuario{},
		&models.Proveedor{},
		&models.Producto{},
		&models.MovimientoStock{},
		&models.Entrada{},
		&models.Merma{},
		&models.Venta{},
		&models.DetalleVenta{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	if err := SeedRoles(db); err != nil {
		return err
	}

	log.Info().Msg("Migración completada")
	return nil
}

// DefaultPermisos define los permisos de cada rol base.
func DefaultPermisos(rol models.RolNombre) models.Permisos {
	switch rol {
	case models.RolAdmin:
		return models.Permisos{
			"productos_lectura": true, "productos_escritura": true,
			"ventas_lectura": true, "ventas_escritura": true, "ventas_anular": true,
			"inventario_escritura": true, "proveedores_escritura": true,
			"usuarios_lectura": true, "usuarios_escritura": true,
			"estadisticas_lectura": true, "auditoria_lectura": true,
		}
	case models.RolDuenio:
		return models.Permisos{
			"productos_lectura": true, "productos_escritura": true,
			"ventas_lectura": true, "ventas_escritura": true, "ventas_anular": true,
			"inventario_escritura": true, "proveedores_escritura": true,
			"usuarios_lectura": true, "usuarios_escritura": true,
			"estadisticas_lectura": true,
		}
	default:
		return models.Permisos{
			"productos_lectura": true,
			"ventas_lectura":    true, "ventas_escritura": true,
		}
	}
}

// SeedRoles inserta los roles base si no existen.
func SeedRoles(db *gorm.DB) error {
	roles := []struct {
		nombre models.RolNombre
		desc   string
	}{
		{models.RolAdmin, "Administrador del sistema"},
		{models.RolDuenio, "Dueño del negocio"},
		{models.RolVendedor, "Vendedor de mostrador"},
	}
	for _, r := range roles {
		rol := models.Rol{Nombre: r.nombre, Descripcion: r.desc, Permisos: DefaultPermisos(r.nombre)}
		if err := db.Where(models.Rol{Nombre: r.nombre}).FirstOrCreate(&rol).Error; err != nil {
			return fmt.Errorf("no se pudo crear el rol %s: %w", r.nombre, err)
		}
	}
	return nil
}
