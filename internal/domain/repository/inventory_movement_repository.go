package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

// MovementFilter filtros del historial de movimientos. Los campos vacíos no filtran.
type MovementFilter struct {
	ProductID     string
	WarehouseID   string
	Type          string
	ActorID       string
	ReferenceType string
	ReferenceID   string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// MovementStats totales generales del libro de movimientos.
type MovementStats struct {
	TotalMovements int `db:"total_movements"`
	Entries        int `db:"entries"`
	Exits          int `db:"exits"`
	UnitsIn        int `db:"units_in"`
	UnitsOut       int `db:"units_out"`
}

// ProductMovementTotal producto con su volumen de unidades movidas.
type ProductMovementTotal struct {
	ProductID   string `db:"product_id"`
	ProductName string `db:"product_name"`
	Movements   int    `db:"movements"`
	Units       int    `db:"units"`
}

// ActorMovementTotal usuario con su cantidad de movimientos registrados.
type ActorMovementTotal struct {
	ActorID   string `db:"actor_id"`
	Movements int    `db:"movements"`
}

// InventoryMovementRepository puerto del libro de movimientos (solo inserción).
type InventoryMovementRepository interface {
	Create(ctx context.Context, movement *entity.InventoryMovement) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.InventoryMovement, error)
	List(ctx context.Context, filter MovementFilter) ([]*entity.InventoryMovement, error)
	Stats(ctx context.Context, from, to *time.Time) (MovementStats, error)
	MostMovedProducts(ctx context.Context, limit int) ([]ProductMovementTotal, error)
	MostActiveActors(ctx context.Context, limit int) ([]ActorMovementTotal, error)
	// NetChange suma de entradas menos salidas de un producto en un almacén.
	NetChange(ctx context.Context, productID, warehouseID string) (int, error)
}
