package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de inventario.
const (
	MovementTypeEntry = "entry" // entrada
	MovementTypeExit  = "exit"  // salida
)

// Tipos de referencia habituales de un movimiento.
const (
	ReferenceSale        = "sale"
	ReferencePurchase    = "purchase"
	ReferenceAdjustment  = "adjustment"
	ReferenceTransfer    = "transfer"
	ReferenceCorrection  = "correction"
	ReferenceReservation = "reservation"
)

// InventoryMovement es un registro inmutable del libro de movimientos.
// Quantity siempre es positiva; Type indica la dirección.
type InventoryMovement struct {
	ID             string
	TransactionID  string
	ProductID      string
	ProductName    string
	WarehouseID    string
	WarehouseName  string
	LotID          string
	Type           string
	Quantity       int
	QuantityBefore int
	QuantityAfter  int
	UnitCost       decimal.Decimal
	Reason         string
	ReferenceType  string
	ReferenceID    string
	ActorID        string
	Details        json.RawMessage
	CreatedAt      time.Time
}

// Delta devuelve la variación con signo del movimiento.
func (m *InventoryMovement) Delta() int {
	if m.Type == MovementTypeExit {
		return -m.Quantity
	}
	return m.Quantity
}
