package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

// ProductRepository puerto de lectura del catálogo más las dos columnas que escribe el motor.
type ProductRepository interface {
	// GetByID devuelve nil, nil si el producto no existe.
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetForUpdate como GetByID pero bloquea la fila hasta el fin de la transacción.
	// Se toma siempre después del registro de inventario.
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	UpdateCost(ctx context.Context, productID string, cost decimal.Decimal) error
	// RefreshStockTotal recalcula products.stock como la suma de existencias en todos los almacenes.
	RefreshStockTotal(ctx context.Context, productID string) (int, error)
	// ListInventoried lista los productos que llevan existencias (no kits ni servicios).
	ListInventoried(ctx context.Context) ([]*entity.Product, error)
}

// KitRepository lectura de la composición de kits.
type KitRepository interface {
	Components(ctx context.Context, kitProductID string) ([]entity.KitComponent, error)
}
