package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// LotManager administra lotes FIFO y el costo histórico de las salidas.
type LotManager struct {
	products repository.ProductRepository
	lots     repository.LotRepository
	log      *logger.Logger
	metrics  Metrics
	now      func() time.Time
}

// NewLotManager construye el gestor. products y lots son repositorios fuera de transacción
// usados solo por HistoricalCost.
func NewLotManager(products repository.ProductRepository, lots repository.LotRepository, log *logger.Logger, metrics Metrics, now func() time.Time) *LotManager {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if now == nil {
		now = time.Now
	}
	return &LotManager{products: products, lots: lots, log: log, metrics: metrics, now: now}
}

// ReceiveLot crea o incrementa el lote (producto, almacén, número) bajo bloqueo.
// Si el lote ya existe, su costo pasa a ser el promedio ponderado del remanente y la entrada.
func (m *LotManager) ReceiveLot(ctx context.Context, tx repository.Tx, productID, warehouseID, lotNumber string, qty int, unitCost decimal.Decimal, expiry *time.Time) (*entity.Lot, error) {
	requireTx(tx, "LotManager.ReceiveLot")
	lotNumber = strings.TrimSpace(lotNumber)
	if lotNumber == "" || qty <= 0 || unitCost.IsNegative() {
		return nil, fmt.Errorf("lote %q cantidad %d: %w", lotNumber, qty, domain.ErrInvalidInput)
	}

	lot, err := tx.Lots().GetByNumberForUpdate(ctx, productID, warehouseID, lotNumber)
	if err != nil {
		return nil, fmt.Errorf("lock lot: %w", err)
	}
	if lot == nil {
		lot = &entity.Lot{
			ProductID:         productID,
			WarehouseID:       warehouseID,
			LotNumber:         lotNumber,
			InitialQuantity:   qty,
			RemainingQuantity: qty,
			UnitCost:          unitCost,
			ExpiryDate:        expiry,
		}
		err := tx.Lots().Create(ctx, lot)
		if err == nil {
			return lot, nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, fmt.Errorf("create lot: %w", err)
		}
		// otra transacción lo creó primero: volver a bloquear e incrementar
		lot, err = tx.Lots().GetByNumberForUpdate(ctx, productID, warehouseID, lotNumber)
		if err != nil {
			return nil, fmt.Errorf("lock lot: %w", err)
		}
		if lot == nil {
			return nil, fmt.Errorf("lote %s: %w", lotNumber, domain.ErrNotFound)
		}
	}

	lot.UnitCost = inventory.CostCalculator(
		decimal.NewFromInt(int64(lot.RemainingQuantity)), lot.UnitCost,
		decimal.NewFromInt(int64(qty)), unitCost,
	)
	lot.InitialQuantity += qty
	lot.RemainingQuantity += qty
	if lot.ExpiryDate == nil && expiry != nil {
		lot.ExpiryDate = expiry
	}
	if err := tx.Lots().Update(ctx, lot); err != nil {
		return nil, fmt.Errorf("update lot: %w", err)
	}
	return lot, nil
}

// ConsumeFIFO bloquea los lotes vigentes y toma qty unidades en orden FIFO.
// Todo o nada: si no alcanzan, no modifica ningún lote.
func (m *LotManager) ConsumeFIFO(ctx context.Context, tx repository.Tx, productID, warehouseID string, qty int) ([]inventory.LotDraw, error) {
	requireTx(tx, "LotManager.ConsumeFIFO")
	if qty <= 0 {
		return nil, fmt.Errorf("cantidad %d: %w", qty, domain.ErrInvalidInput)
	}
	lots, err := tx.Lots().ListConsumableForUpdate(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("lock lots: %w", err)
	}
	draws, shortfall := inventory.PlanFIFO(lots, qty, m.now())
	if shortfall > 0 {
		return nil, &domain.InsufficientStockError{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Available:   qty - shortfall,
			Requested:   qty,
			Cause:       domain.ErrLotExhausted,
		}
	}

	byID := make(map[string]*entity.Lot, len(lots))
	for _, l := range lots {
		byID[l.ID] = l
	}
	for _, d := range draws {
		l := byID[d.LotID]
		l.RemainingQuantity -= d.Quantity
		if err := tx.Lots().Update(ctx, l); err != nil {
			return nil, fmt.Errorf("update lot %s: %w", l.LotNumber, err)
		}
	}
	return draws, nil
}

// Available suma el remanente consumible bajo bloqueo (para validar sin modificar).
func (m *LotManager) Available(ctx context.Context, tx repository.Tx, productID, warehouseID string) (int, error) {
	requireTx(tx, "LotManager.Available")
	lots, err := tx.Lots().ListConsumableForUpdate(ctx, productID, warehouseID)
	if err != nil {
		return 0, fmt.Errorf("lock lots: %w", err)
	}
	now := m.now()
	total := 0
	for _, l := range lots {
		if !l.Expired(now) {
			total += l.RemainingQuantity
		}
	}
	return total, nil
}

// RestoreDraws devuelve a cada lote exactamente lo que se tomó de él.
func (m *LotManager) RestoreDraws(ctx context.Context, tx repository.Tx, draws []inventory.LotDraw) error {
	requireTx(tx, "LotManager.RestoreDraws")
	for _, d := range sortedDraws(draws) {
		l, err := tx.Lots().GetByIDForUpdate(ctx, d.LotID)
		if err != nil {
			return fmt.Errorf("lock lot: %w", err)
		}
		if l == nil {
			return fmt.Errorf("lote %s: %w", d.LotNumber, domain.ErrNotFound)
		}
		if l.RemainingQuantity+d.Quantity > l.InitialQuantity {
			return fmt.Errorf("lote %s: %w", l.LotNumber, domain.ErrLotOverflow)
		}
		l.RemainingQuantity += d.Quantity
		if err := tx.Lots().Update(ctx, l); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
	}
	return nil
}

// TakeFromLots retira cantidades de lotes concretos (reversión de una compra).
func (m *LotManager) TakeFromLots(ctx context.Context, tx repository.Tx, productID, warehouseID string, draws []inventory.LotDraw) error {
	requireTx(tx, "LotManager.TakeFromLots")
	locked := make([]*entity.Lot, 0, len(draws))
	ordered := sortedDraws(draws)
	for _, d := range ordered {
		l, err := tx.Lots().GetByIDForUpdate(ctx, d.LotID)
		if err != nil {
			return fmt.Errorf("lock lot: %w", err)
		}
		if l == nil {
			return fmt.Errorf("lote %s: %w", d.LotNumber, domain.ErrNotFound)
		}
		if l.RemainingQuantity < d.Quantity {
			return &domain.InsufficientStockError{
				ProductID: productID, WarehouseID: warehouseID,
				Available: l.RemainingQuantity, Requested: d.Quantity,
				Cause: domain.ErrLotExhausted,
			}
		}
		locked = append(locked, l)
	}
	for i, l := range locked {
		l.RemainingQuantity -= ordered[i].Quantity
		if err := tx.Lots().Update(ctx, l); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
	}
	return nil
}

// HistoricalCost estima sin bloquear el costo FIFO de sacar qty unidades. El faltante de lotes
// se valúa al costo de compra del producto, se registra como advertencia y queda en FallbackQuantity.
func (m *LotManager) HistoricalCost(ctx context.Context, productID, warehouseID string, qty int) (inventory.CostPreview, error) {
	product, err := m.products.GetByID(ctx, productID)
	if err != nil {
		return inventory.CostPreview{}, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return inventory.CostPreview{}, fmt.Errorf("producto %s: %w", productID, domain.ErrProductNotFound)
	}
	lots, err := m.lots.ListConsumable(ctx, productID, warehouseID)
	if err != nil {
		return inventory.CostPreview{}, fmt.Errorf("list lots: %w", err)
	}
	preview := inventory.PreviewFIFOCost(lots, qty, m.now(), product.PurchaseCost)
	if preview.UsedFallback() {
		m.log.Warn().
			Str("product_id", productID).
			Str("warehouse_id", warehouseID).
			Int("requested", qty).
			Int("fallback_quantity", preview.FallbackQuantity).
			Str("fallback_cost", product.PurchaseCost.String()).
			Msg("lotes insuficientes para costo histórico, se usa costo de compra")
		m.metrics.CostFallback(productID, preview.FallbackQuantity)
	}
	return preview, nil
}

func sortedDraws(draws []inventory.LotDraw) []inventory.LotDraw {
	out := append([]inventory.LotDraw(nil), draws...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LotID < out[j].LotID })
	return out
}
