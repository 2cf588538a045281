package entity

import "time"

// Stock es el registro de inventario de un producto en un almacén (una fila por par).
// Se crea en el primer movimiento y Quantity nunca es negativa.
type Stock struct {
	ProductID   string
	WarehouseID string
	Quantity    int
	UpdatedAt   time.Time
}
