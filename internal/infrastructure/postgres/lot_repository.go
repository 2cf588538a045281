package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var _ repository.LotRepository = (*LotRepo)(nil)

// LotRepo lotes por (producto, almacén, número) sobre PostgreSQL.
type LotRepo struct {
	q Querier
}

// NewLotRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewLotRepository(q Querier) *LotRepo {
	return &LotRepo{q: q}
}

const lotColumns = `id, product_id, warehouse_id, lot_number, initial_quantity, remaining_quantity,
	unit_cost, expiry_date, created_at, updated_at`

// orden FIFO: caducidad ascendente con las fechas nulas al final
const lotFIFOOrder = ` ORDER BY expiry_date ASC NULLS LAST, created_at, lot_number`

func scanLot(row pgxScanner) (*entity.Lot, error) {
	var l entity.Lot
	err := row.Scan(&l.ID, &l.ProductID, &l.WarehouseID, &l.LotNumber, &l.InitialQuantity, &l.RemainingQuantity,
		&l.UnitCost, &l.ExpiryDate, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LotRepo) one(ctx context.Context, query string, args ...any) (*entity.Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return l, nil
}

func (r *LotRepo) many(ctx context.Context, query string, args ...any) ([]*entity.Lot, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	defer rows.Close()
	var list []*entity.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// GetByNumberForUpdate bloquea el lote por su clave natural.
func (r *LotRepo) GetByNumberForUpdate(ctx context.Context, productID, warehouseID, lotNumber string) (*entity.Lot, error) {
	return r.one(ctx, `SELECT `+lotColumns+` FROM lots
		WHERE product_id = $1 AND warehouse_id = $2 AND lot_number = $3 FOR UPDATE`,
		productID, warehouseID, lotNumber)
}

// GetByIDForUpdate bloquea el lote por ID.
func (r *LotRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Lot, error) {
	return r.one(ctx, `SELECT `+lotColumns+` FROM lots WHERE id = $1 FOR UPDATE`, id)
}

// ListConsumableForUpdate bloquea, en orden FIFO, los lotes con remanente y no vencidos.
func (r *LotRepo) ListConsumableForUpdate(ctx context.Context, productID, warehouseID string) ([]*entity.Lot, error) {
	return r.many(ctx, `SELECT `+lotColumns+` FROM lots
		WHERE product_id = $1 AND warehouse_id = $2 AND remaining_quantity > 0
		  AND (expiry_date IS NULL OR expiry_date > now())`+lotFIFOOrder+` FOR UPDATE`,
		productID, warehouseID)
}

// ListConsumable igual que ListConsumableForUpdate, sin bloquear.
func (r *LotRepo) ListConsumable(ctx context.Context, productID, warehouseID string) ([]*entity.Lot, error) {
	return r.many(ctx, `SELECT `+lotColumns+` FROM lots
		WHERE product_id = $1 AND warehouse_id = $2 AND remaining_quantity > 0
		  AND (expiry_date IS NULL OR expiry_date > now())`+lotFIFOOrder,
		productID, warehouseID)
}

// Create inserta un lote nuevo. Un número repetido en el mismo producto y almacén devuelve ErrDuplicate.
func (r *LotRepo) Create(ctx context.Context, lot *entity.Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO lots (id, product_id, warehouse_id, lot_number, initial_quantity, remaining_quantity, unit_cost, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		lot.ID, lot.ProductID, lot.WarehouseID, lot.LotNumber, lot.InitialQuantity, lot.RemainingQuantity,
		lot.UnitCost, lot.ExpiryDate,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("lote %s: %w", lot.LotNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// Update guarda cantidades, costo y caducidad. El CHECK de la tabla impide remanentes fuera de rango.
func (r *LotRepo) Update(ctx context.Context, lot *entity.Lot) error {
	if lot.RemainingQuantity < 0 || lot.RemainingQuantity > lot.InitialQuantity {
		return domain.ErrLotOverflow
	}
	cmd, err := r.q.Exec(ctx, `
		UPDATE lots SET initial_quantity = $2, remaining_quantity = $3, unit_cost = $4, expiry_date = $5, updated_at = now()
		WHERE id = $1`,
		lot.ID, lot.InitialQuantity, lot.RemainingQuantity, lot.UnitCost, lot.ExpiryDate)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrLotOverflow
		}
		return fmt.Errorf("update lot: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SumRemaining suma el remanente de todos los lotes (vencidos incluidos) para conciliación.
func (r *LotRepo) SumRemaining(ctx context.Context, productID, warehouseID string) (int, error) {
	var total int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(remaining_quantity), 0) FROM lots WHERE product_id = $1 AND warehouse_id = $2`,
		productID, warehouseID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum lots: %w", err)
	}
	return total, nil
}
