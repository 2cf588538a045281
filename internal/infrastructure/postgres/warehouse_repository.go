package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var _ repository.WarehouseRepository = (*WarehouseRepo)(nil)

// WarehouseRepo implementación del puerto WarehouseRepository sobre PostgreSQL (usable con pool o tx).
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador de persistencia para almacenes.
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

const warehouseColumns = `id, name, active, created_at, updated_at`

// GetByID obtiene un almacén por ID.
func (r *WarehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	return r.get(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id)
}

// GetForShare bloquea el almacén en modo compartido: varias operaciones concurrentes
// pueden tomarlo, pero nadie puede desactivarlo hasta que terminen.
func (r *WarehouseRepo) GetForShare(ctx context.Context, id string) (*entity.Warehouse, error) {
	return r.get(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1 FOR SHARE`, id)
}

func (r *WarehouseRepo) get(ctx context.Context, query, id string) (*entity.Warehouse, error) {
	var w entity.Warehouse
	err := r.q.QueryRow(ctx, query, id).Scan(&w.ID, &w.Name, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get warehouse: %w", err)
	}
	return &w, nil
}
