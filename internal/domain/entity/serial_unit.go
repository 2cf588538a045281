package entity

import "time"

// Estados de una unidad serializada.
const (
	SerialStateInStock  = "in_stock"
	SerialStateReserved = "reserved"
	SerialStateSold     = "sold"
)

// SerialUnit es una unidad identificada por número de serie.
// Nunca se borra al venderse; DeletedAt solo se marca por corrección de datos.
type SerialUnit struct {
	ID           string
	SerialNumber string
	ProductID    string
	WarehouseID  string
	State        string
	SaleID       string
	PurchaseID   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Live indica si la unidad no está eliminada lógicamente.
func (u *SerialUnit) Live() bool { return u.DeletedAt == nil }
