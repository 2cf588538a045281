package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// Ledger libro de movimientos: escritura dentro de la transacción del llamador y consultas de reporte.
type Ledger struct {
	movements repository.InventoryMovementRepository
	now       func() time.Time
}

// NewLedger construye el libro. movements es el repositorio fuera de transacción para reportes.
func NewLedger(movements repository.InventoryMovementRepository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{movements: movements, now: now}
}

// Record agrega un movimiento en la transacción tx. Un fallo aquí debe abortar la transacción.
func (l *Ledger) Record(ctx context.Context, tx repository.Tx, m *entity.InventoryMovement) error {
	requireTx(tx, "Ledger.Record")
	switch {
	case m.ProductID == "" || m.WarehouseID == "":
		return fmt.Errorf("movimiento sin producto o almacén: %w", domain.ErrInvalidInput)
	case m.Type != entity.MovementTypeEntry && m.Type != entity.MovementTypeExit:
		return fmt.Errorf("tipo de movimiento %q: %w", m.Type, domain.ErrInvalidInput)
	case m.Quantity <= 0:
		return fmt.Errorf("cantidad de movimiento %d: %w", m.Quantity, domain.ErrInvalidInput)
	case m.QuantityAfter != m.QuantityBefore+m.Delta():
		return fmt.Errorf("movimiento inconsistente %d -> %d: %w", m.QuantityBefore, m.QuantityAfter, domain.ErrInvalidInput)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = l.now()
	}
	if err := tx.Movements().Create(ctx, m); err != nil {
		return fmt.Errorf("record movement: %w", err)
	}
	return nil
}

// History historial filtrado, más reciente primero.
func (l *Ledger) History(ctx context.Context, f repository.MovementFilter) ([]*entity.InventoryMovement, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return l.movements.List(ctx, f)
}

// Export historial completo del filtro, sin límite de filas.
func (l *Ledger) Export(ctx context.Context, f repository.MovementFilter) ([]*entity.InventoryMovement, error) {
	f.Limit, f.Offset = 0, 0
	return l.movements.List(ctx, f)
}

// Stats totales generales en el rango (nil = sin límite).
func (l *Ledger) Stats(ctx context.Context, from, to *time.Time) (repository.MovementStats, error) {
	return l.movements.Stats(ctx, from, to)
}

// MostMovedProducts productos con más unidades movidas.
func (l *Ledger) MostMovedProducts(ctx context.Context, limit int) ([]repository.ProductMovementTotal, error) {
	if limit <= 0 {
		limit = 10
	}
	return l.movements.MostMovedProducts(ctx, limit)
}

// MostActiveUsers usuarios con más movimientos registrados.
func (l *Ledger) MostActiveUsers(ctx context.Context, limit int) ([]repository.ActorMovementTotal, error) {
	if limit <= 0 {
		limit = 10
	}
	return l.movements.MostActiveActors(ctx, limit)
}

// NetChange entradas menos salidas registradas para (producto, almacén).
func (l *Ledger) NetChange(ctx context.Context, productID, warehouseID string) (int, error) {
	return l.movements.NetChange(ctx, productID, warehouseID)
}
