package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo visto desde el motor de inventario.
// El catálogo es dueño de las banderas; el motor solo escribe Stock (total desnormalizado)
// y PurchaseCost (costo promedio ponderado en entradas sin lote).
type Product struct {
	ID             string
	SKU            string
	Name           string
	HandlesLots    bool // maneja caducidad / lotes
	RequiresSerial bool
	IsKit          bool
	IsService      bool // los servicios no mueven inventario
	Active         bool
	PurchaseCost   decimal.Decimal
	Stock          int // suma de existencias en todos los almacenes
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
