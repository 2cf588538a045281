package entity

import "time"

// Warehouse representa un almacén. Solo un almacén activo acepta movimientos.
type Warehouse struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
