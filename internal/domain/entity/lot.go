package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot es un lote fechado de un producto en un almacén, identificado por (producto, almacén, número).
// Invariante: 0 <= RemainingQuantity <= InitialQuantity.
type Lot struct {
	ID                string
	ProductID         string
	WarehouseID       string
	LotNumber         string
	InitialQuantity   int
	RemainingQuantity int
	UnitCost          decimal.Decimal
	ExpiryDate        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Expired indica si el lote ya no es consumible en el instante dado (caducidad <= at).
func (l *Lot) Expired(at time.Time) bool {
	return l.ExpiryDate != nil && !l.ExpiryDate.After(at)
}

// LotLess define el orden FIFO de consumo: caducidad ascendente (sin fecha al final),
// luego fecha de creación y número de lote.
func LotLess(a, b *Lot) bool {
	switch {
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return true
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return false
	case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.LotNumber < b.LotNumber
}
