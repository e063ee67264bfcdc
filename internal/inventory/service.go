// Package inventory administra productos, entradas y mermas. Todo cambio de
// stock se delega al motor de internal/stock.
package inventory

import (
	"fruteria-backend/internal/stock"

	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	engine *stock.Engine
	ledger *stock.Ledger
}

func NewService(db *gorm.DB, engine *stock.Engine) *Service {
	return &Service{db: db, engine: engine, ledger: stock.NewLedger(db)}
}
