package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*InventoryMovementRepo)(nil)

const movementsTable = "inventory_movements"

// InventoryMovementRepo libro de movimientos sobre PostgreSQL (usable con pool o tx).
// Solo inserta; las lecturas de reportes se arman con squirrel y se escanean con pgxscan.
type InventoryMovementRepo struct {
	q       Querier
	builder squirrel.StatementBuilderType
}

// NewInventoryMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryMovementRepository(q Querier) *InventoryMovementRepo {
	return &InventoryMovementRepo{
		q:       q,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// movementRow columnas tal como salen de la tabla; lot_id es NULL fuera de productos con lote.
type movementRow struct {
	ID             string          `db:"id"`
	TransactionID  string          `db:"transaction_id"`
	ProductID      string          `db:"product_id"`
	ProductName    string          `db:"product_name"`
	WarehouseID    string          `db:"warehouse_id"`
	WarehouseName  string          `db:"warehouse_name"`
	LotID          *string         `db:"lot_id"`
	Type           string          `db:"type"`
	Quantity       int             `db:"quantity"`
	QuantityBefore int             `db:"quantity_before"`
	QuantityAfter  int             `db:"quantity_after"`
	UnitCost       decimal.Decimal `db:"unit_cost"`
	Reason         string          `db:"reason"`
	ReferenceType  string          `db:"reference_type"`
	ReferenceID    string          `db:"reference_id"`
	ActorID        string          `db:"actor_id"`
	Details        []byte          `db:"details"`
	CreatedAt      time.Time       `db:"created_at"`
}

var movementColumns = []string{
	"id", "transaction_id", "product_id", "product_name", "warehouse_id", "warehouse_name", "lot_id",
	"type", "quantity", "quantity_before", "quantity_after", "unit_cost",
	"reason", "reference_type", "reference_id", "actor_id", "details", "created_at",
}

func (row movementRow) toEntity() *entity.InventoryMovement {
	return &entity.InventoryMovement{
		ID:             row.ID,
		TransactionID:  row.TransactionID,
		ProductID:      row.ProductID,
		ProductName:    row.ProductName,
		WarehouseID:    row.WarehouseID,
		WarehouseName:  row.WarehouseName,
		LotID:          emptyIfNull(row.LotID),
		Type:           row.Type,
		Quantity:       row.Quantity,
		QuantityBefore: row.QuantityBefore,
		QuantityAfter:  row.QuantityAfter,
		UnitCost:       row.UnitCost,
		Reason:         row.Reason,
		ReferenceType:  row.ReferenceType,
		ReferenceID:    row.ReferenceID,
		ActorID:        row.ActorID,
		Details:        json.RawMessage(row.Details),
		CreatedAt:      row.CreatedAt,
	}
}

// Create persiste un movimiento de inventario.
func (r *InventoryMovementRepo) Create(ctx context.Context, m *entity.InventoryMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	var details any
	if len(m.Details) > 0 {
		details = string(m.Details)
	}
	sql, args, err := r.builder.Insert(movementsTable).Columns(movementColumns...).Values(
		m.ID, m.TransactionID, m.ProductID, m.ProductName, m.WarehouseID, m.WarehouseName, nullIfEmpty(m.LotID),
		m.Type, m.Quantity, m.QuantityBefore, m.QuantityAfter, m.UnitCost,
		m.Reason, m.ReferenceType, m.ReferenceID, m.ActorID, details, m.CreatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert movement: %w", err)
	}
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("create inventory movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID.
func (r *InventoryMovementRepo) GetByID(ctx context.Context, id string) (*entity.InventoryMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get movement: %w", err)
	}
	var row movementRow
	if err := pgxscan.Get(ctx, r.q, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return row.toEntity(), nil
}

func applyMovementFilter(q squirrel.SelectBuilder, f repository.MovementFilter) squirrel.SelectBuilder {
	eq := squirrel.Eq{}
	for col, v := range map[string]string{
		"product_id":     f.ProductID,
		"warehouse_id":   f.WarehouseID,
		"type":           f.Type,
		"actor_id":       f.ActorID,
		"reference_type": f.ReferenceType,
		"reference_id":   f.ReferenceID,
	} {
		if v != "" {
			eq[col] = v
		}
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *f.To})
	}
	return q
}

// List devuelve los movimientos más recientes primero. Limit 0 no limita.
func (r *InventoryMovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.InventoryMovement, error) {
	q := applyMovementFilter(r.builder.Select(movementColumns...).From(movementsTable), f).
		OrderBy("seq DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list movements: %w", err)
	}
	var rows []movementRow
	if err := pgxscan.Select(ctx, r.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	list := make([]*entity.InventoryMovement, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toEntity())
	}
	return list, nil
}

// Stats totales de entradas y salidas en el rango.
func (r *InventoryMovementRepo) Stats(ctx context.Context, from, to *time.Time) (repository.MovementStats, error) {
	q := applyMovementFilter(r.builder.Select(
		"COUNT(*) AS total_movements",
		fmt.Sprintf("COUNT(*) FILTER (WHERE type = '%s') AS entries", entity.MovementTypeEntry),
		fmt.Sprintf("COUNT(*) FILTER (WHERE type = '%s') AS exits", entity.MovementTypeExit),
		fmt.Sprintf("COALESCE(SUM(quantity) FILTER (WHERE type = '%s'), 0) AS units_in", entity.MovementTypeEntry),
		fmt.Sprintf("COALESCE(SUM(quantity) FILTER (WHERE type = '%s'), 0) AS units_out", entity.MovementTypeExit),
	).From(movementsTable), repository.MovementFilter{From: from, To: to})

	var s repository.MovementStats
	sql, args, err := q.ToSql()
	if err != nil {
		return s, fmt.Errorf("build stats: %w", err)
	}
	if err := pgxscan.Get(ctx, r.q, &s, sql, args...); err != nil {
		return s, fmt.Errorf("movement stats: %w", err)
	}
	return s, nil
}

// MostMovedProducts productos con más unidades movidas.
func (r *InventoryMovementRepo) MostMovedProducts(ctx context.Context, limit int) ([]repository.ProductMovementTotal, error) {
	q := r.builder.Select(
		"product_id",
		"MAX(product_name) AS product_name",
		"COUNT(*) AS movements",
		"SUM(quantity) AS units",
	).From(movementsTable).GroupBy("product_id").OrderBy("units DESC", "product_id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build most moved: %w", err)
	}
	var out []repository.ProductMovementTotal
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("most moved products: %w", err)
	}
	return out, nil
}

// MostActiveActors usuarios con más movimientos registrados.
func (r *InventoryMovementRepo) MostActiveActors(ctx context.Context, limit int) ([]repository.ActorMovementTotal, error) {
	q := r.builder.Select("actor_id", "COUNT(*) AS movements").
		From(movementsTable).
		Where(squirrel.NotEq{"actor_id": ""}).
		GroupBy("actor_id").OrderBy("movements DESC", "actor_id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build most active: %w", err)
	}
	var out []repository.ActorMovementTotal
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("most active actors: %w", err)
	}
	return out, nil
}

// NetChange entradas menos salidas del producto en el almacén.
func (r *InventoryMovementRepo) NetChange(ctx context.Context, productID, warehouseID string) (int, error) {
	var net int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = $3 THEN -quantity ELSE quantity END), 0)
		FROM inventory_movements WHERE product_id = $1 AND warehouse_id = $2`,
		productID, warehouseID, entity.MovementTypeExit).Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("net change: %w", err)
	}
	return net, nil
}
