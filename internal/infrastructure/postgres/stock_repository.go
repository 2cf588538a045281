package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el stock actual de un producto en un almacén, sin bloquear.
func (r *StockRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	s, err := r.get(ctx, `
		SELECT product_id, warehouse_id, quantity, updated_at
		FROM inventory_stock WHERE product_id = $1 AND warehouse_id = $2`, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	if s == nil {
		return &entity.Stock{ProductID: productID, WarehouseID: warehouseID}, nil
	}
	return s, nil
}

// GetForUpdate obtiene el stock y bloquea la fila (SELECT FOR UPDATE). nil, nil si no existe.
func (r *StockRepo) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	s, err := r.get(ctx, `
		SELECT product_id, warehouse_id, quantity, updated_at
		FROM inventory_stock WHERE product_id = $1 AND warehouse_id = $2
		FOR UPDATE`, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("get stock for update: %w", err)
	}
	return s, nil
}

func (r *StockRepo) get(ctx context.Context, query, productID, warehouseID string) (*entity.Stock, error) {
	var s entity.Stock
	err := r.q.QueryRow(ctx, query, productID, warehouseID).Scan(
		&s.ProductID, &s.WarehouseID, &s.Quantity, &s.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateIfMissing inserta la fila en cero; si otra transacción la creó primero no hace nada.
func (r *StockRepo) CreateIfMissing(ctx context.Context, productID, warehouseID string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO inventory_stock (product_id, warehouse_id, quantity, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`, productID, warehouseID)
	if err != nil {
		return fmt.Errorf("create stock row: %w", err)
	}
	return nil
}

// Upsert inserta o actualiza la cantidad en stock (por producto y almacén).
func (r *StockRepo) Upsert(ctx context.Context, stock *entity.Stock) error {
	query := `
		INSERT INTO inventory_stock (product_id, warehouse_id, quantity, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (product_id, warehouse_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`
	_, err := r.q.Exec(ctx, query, stock.ProductID, stock.WarehouseID, stock.Quantity)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("stock negativo %s/%s: %w", stock.ProductID, stock.WarehouseID, domain.ErrInvalidInput)
		}
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}

// ListByProduct existencias del producto en todos los almacenes.
func (r *StockRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.Stock, error) {
	rows, err := r.q.Query(ctx, `
		SELECT product_id, warehouse_id, quantity, updated_at
		FROM inventory_stock WHERE product_id = $1 ORDER BY warehouse_id`, productID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	var list []*entity.Stock
	for rows.Next() {
		var s entity.Stock
		if err := rows.Scan(&s.ProductID, &s.WarehouseID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
