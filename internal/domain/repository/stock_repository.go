package repository

import (
	"context"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

// StockRepository define el puerto para consultar/actualizar stock por bodega+producto.
// Usado dentro de transacciones para garantizar consistencia.
type StockRepository interface {
	// Get lectura sin bloqueo; devuelve cantidad 0 si la fila no existe.
	Get(ctx context.Context, productID, warehouseID string) (*entity.Stock, error)
	// GetForUpdate bloquea la fila (SELECT FOR UPDATE). Devuelve nil, nil si no existe.
	GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Stock, error)
	// CreateIfMissing inserta la fila con cantidad 0 si no existe.
	CreateIfMissing(ctx context.Context, productID, warehouseID string) error
	Upsert(ctx context.Context, stock *entity.Stock) error
	ListByProduct(ctx context.Context, productID string) ([]*entity.Stock, error)
}

// LotRepository puerto de lotes por (producto, almacén, número de lote).
type LotRepository interface {
	// GetByNumberForUpdate bloquea el lote por su clave natural. nil, nil si no existe.
	GetByNumberForUpdate(ctx context.Context, productID, warehouseID, lotNumber string) (*entity.Lot, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.Lot, error)
	// ListConsumableForUpdate bloquea los lotes con remanente y vigentes en orden FIFO.
	ListConsumableForUpdate(ctx context.Context, productID, warehouseID string) ([]*entity.Lot, error)
	// ListConsumable igual que ListConsumableForUpdate pero sin bloqueo (vista previa de costos).
	ListConsumable(ctx context.Context, productID, warehouseID string) ([]*entity.Lot, error)
	Create(ctx context.Context, lot *entity.Lot) error
	Update(ctx context.Context, lot *entity.Lot) error
	SumRemaining(ctx context.Context, productID, warehouseID string) (int, error)
}

// SerialUnitRepository puerto de unidades serializadas.
type SerialUnitRepository interface {
	// FindLive busca una unidad viva con ese número en cualquier producto. nil, nil si no hay.
	FindLive(ctx context.Context, serialNumber string) (*entity.SerialUnit, error)
	// GetForUpdate bloquea la unidad del producto; includeDeleted incluye filas eliminadas lógicamente.
	GetForUpdate(ctx context.Context, productID, serialNumber string, includeDeleted bool) (*entity.SerialUnit, error)
	// GetSoldForUpdate bloquea la unidad del producto vendida en saleID, eliminada o no. nil, nil si no hay.
	GetSoldForUpdate(ctx context.Context, productID, serialNumber, saleID string) (*entity.SerialUnit, error)
	// ListBySaleForUpdate bloquea las unidades vendidas en una venta, incluidas las eliminadas.
	ListBySaleForUpdate(ctx context.Context, saleID string) ([]*entity.SerialUnit, error)
	ListByPurchaseForUpdate(ctx context.Context, purchaseID string) ([]*entity.SerialUnit, error)
	Create(ctx context.Context, unit *entity.SerialUnit) error
	Update(ctx context.Context, unit *entity.SerialUnit) error
	CountInStock(ctx context.Context, productID, warehouseID string) (int, error)
}
