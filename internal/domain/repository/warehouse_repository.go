package repository

import (
	"context"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

// WarehouseRepository puerto del registro de almacenes.
type WarehouseRepository interface {
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
	// GetForShare bloquea la fila del almacén en modo compartido (FOR SHARE): nadie puede
	// desactivarlo hasta que termine la transacción. nil, nil si no existe.
	GetForShare(ctx context.Context, id string) (*entity.Warehouse, error)
}
