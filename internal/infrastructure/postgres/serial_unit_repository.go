package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var _ repository.SerialUnitRepository = (*SerialUnitRepo)(nil)

// SerialUnitRepo unidades serializadas sobre PostgreSQL. La unicidad de números vivos
// la garantiza el índice parcial serial_units_live_number_key.
type SerialUnitRepo struct {
	q Querier
}

// NewSerialUnitRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSerialUnitRepository(q Querier) *SerialUnitRepo {
	return &SerialUnitRepo{q: q}
}

const serialColumns = `id, serial_number, product_id, warehouse_id, state, sale_id, purchase_id,
	created_at, updated_at, deleted_at`

func scanSerial(row pgxScanner) (*entity.SerialUnit, error) {
	var (
		u                  entity.SerialUnit
		saleID, purchaseID *string
	)
	err := row.Scan(&u.ID, &u.SerialNumber, &u.ProductID, &u.WarehouseID, &u.State, &saleID, &purchaseID,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	u.SaleID = emptyIfNull(saleID)
	u.PurchaseID = emptyIfNull(purchaseID)
	return &u, nil
}

func (r *SerialUnitRepo) one(ctx context.Context, query string, args ...any) (*entity.SerialUnit, error) {
	u, err := scanSerial(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get serial: %w", err)
	}
	return u, nil
}

func (r *SerialUnitRepo) many(ctx context.Context, query string, args ...any) ([]*entity.SerialUnit, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list serials: %w", err)
	}
	defer rows.Close()
	var list []*entity.SerialUnit
	for rows.Next() {
		u, err := scanSerial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan serial: %w", err)
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// FindLive busca el número en cualquier producto, sin bloquear.
func (r *SerialUnitRepo) FindLive(ctx context.Context, serialNumber string) (*entity.SerialUnit, error) {
	return r.one(ctx, `SELECT `+serialColumns+` FROM serial_units
		WHERE serial_number = $1 AND deleted_at IS NULL`, serialNumber)
}

// GetForUpdate bloquea la unidad viva; con includeDeleted cae a la eliminada más reciente.
func (r *SerialUnitRepo) GetForUpdate(ctx context.Context, productID, serialNumber string, includeDeleted bool) (*entity.SerialUnit, error) {
	query := `SELECT ` + serialColumns + ` FROM serial_units
		WHERE product_id = $1 AND serial_number = $2`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY deleted_at IS NOT NULL, updated_at DESC LIMIT 1 FOR UPDATE`
	return r.one(ctx, query, productID, serialNumber)
}

// GetSoldForUpdate bloquea la unidad vendida en la venta aunque exista otra viva con el mismo número.
func (r *SerialUnitRepo) GetSoldForUpdate(ctx context.Context, productID, serialNumber, saleID string) (*entity.SerialUnit, error) {
	return r.one(ctx, `SELECT `+serialColumns+` FROM serial_units
		WHERE product_id = $1 AND serial_number = $2 AND sale_id IS NOT DISTINCT FROM $3 AND state = $4
		ORDER BY updated_at DESC LIMIT 1 FOR UPDATE`,
		productID, serialNumber, nullIfEmpty(saleID), entity.SerialStateSold)
}

// ListBySaleForUpdate bloquea las unidades vendidas en la venta, incluidas las eliminadas.
func (r *SerialUnitRepo) ListBySaleForUpdate(ctx context.Context, saleID string) ([]*entity.SerialUnit, error) {
	return r.many(ctx, `SELECT `+serialColumns+` FROM serial_units
		WHERE sale_id = $1 AND state = $2 ORDER BY serial_number FOR UPDATE`, saleID, entity.SerialStateSold)
}

// ListByPurchaseForUpdate bloquea las unidades vivas que entraron con la compra.
func (r *SerialUnitRepo) ListByPurchaseForUpdate(ctx context.Context, purchaseID string) ([]*entity.SerialUnit, error) {
	return r.many(ctx, `SELECT `+serialColumns+` FROM serial_units
		WHERE purchase_id = $1 AND deleted_at IS NULL ORDER BY serial_number FOR UPDATE`, purchaseID)
}

// Create inserta la unidad. Un número vivo repetido devuelve ErrSerialDuplicate.
func (r *SerialUnitRepo) Create(ctx context.Context, unit *entity.SerialUnit) error {
	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO serial_units (id, serial_number, product_id, warehouse_id, state, sale_id, purchase_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		unit.ID, unit.SerialNumber, unit.ProductID, unit.WarehouseID, unit.State,
		nullIfEmpty(unit.SaleID), nullIfEmpty(unit.PurchaseID),
	).Scan(&unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SerialError{Serial: unit.SerialNumber, ProductID: unit.ProductID, Kind: domain.ErrSerialDuplicate}
		}
		return fmt.Errorf("insert serial: %w", err)
	}
	return nil
}

// Update guarda estado, almacén, venta y borrado lógico de la unidad.
func (r *SerialUnitRepo) Update(ctx context.Context, unit *entity.SerialUnit) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE serial_units
		SET warehouse_id = $2, state = $3, sale_id = $4, purchase_id = $5, deleted_at = $6, updated_at = now()
		WHERE id = $1`,
		unit.ID, unit.WarehouseID, unit.State, nullIfEmpty(unit.SaleID), nullIfEmpty(unit.PurchaseID), unit.DeletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SerialError{Serial: unit.SerialNumber, ProductID: unit.ProductID, Kind: domain.ErrSerialDuplicate}
		}
		return fmt.Errorf("update serial: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return &domain.SerialError{Serial: unit.SerialNumber, ProductID: unit.ProductID, Kind: domain.ErrSerialNotFound}
	}
	return nil
}

// CountInStock unidades vivas en stock del producto en el almacén.
func (r *SerialUnitRepo) CountInStock(ctx context.Context, productID, warehouseID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM serial_units
		WHERE product_id = $1 AND warehouse_id = $2 AND state = $3 AND deleted_at IS NULL`,
		productID, warehouseID, entity.SerialStateInStock).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count serials: %w", err)
	}
	return n, nil
}
