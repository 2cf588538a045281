package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// Direction sentido de un ajuste.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (d Direction) movementType() string {
	if d == DirectionOut {
		return entity.MovementTypeExit
	}
	return entity.MovementTypeEntry
}

// MovementContext datos de la operación que acompañan a cada movimiento.
type MovementContext struct {
	Reason        string
	ReferenceType string
	ReferenceID   string
	// ActorID vacío: se toma de ActorProvider.
	ActorID     string
	WarehouseID string
	Details     map[string]any
	// Datos de lote para entradas de productos con lote.
	LotNumber  string
	ExpiryDate *time.Time
	// UnitCost en entradas actualiza el costo promedio del producto.
	UnitCost *decimal.Decimal
	// Serials del producto serializado; ComponentSerials por componente cuando el producto es kit.
	Serials          []string
	ComponentSerials map[string][]string
	SaleID           string
	PurchaseID       string
	// SkipTransaction exige ejecutar en la transacción recibida, sin abrir una propia.
	SkipTransaction bool
	// TransactionID agrupa los movimientos de una misma operación; se genera si viene vacío.
	TransactionID string
}

// AdjustedLine resultado de mover un producto hoja en un almacén.
type AdjustedLine struct {
	ProductID      string              `json:"product_id"`
	WarehouseID    string              `json:"warehouse_id"`
	Direction      Direction           `json:"direction"`
	Quantity       int                 `json:"quantity"`
	QuantityBefore int                 `json:"quantity_before"`
	QuantityAfter  int                 `json:"quantity_after"`
	UnitCost       decimal.Decimal     `json:"unit_cost"`
	LotDraws       []inventory.LotDraw `json:"lot_draws,omitempty"`
	Serials        []string            `json:"serials,omitempty"`
}

// Cost costo total de la línea (por lote cuando aplica).
func (l AdjustedLine) Cost() decimal.Decimal {
	if len(l.LotDraws) > 0 {
		return inventory.DrawsCost(l.LotDraws)
	}
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AdjustResult líneas hoja afectadas por una operación (un kit produce varias).
type AdjustResult struct {
	TransactionID string         `json:"transaction_id"`
	Lines         []AdjustedLine `json:"lines"`
}

// TotalCost suma el costo de todas las líneas.
func (r *AdjustResult) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.Cost())
	}
	return total
}

// StockCoordinator punto de entrada del motor: valida, bloquea y muta existencias
// en el orden Almacén → Registro → Lotes → Series, y registra cada cambio en el libro.
type StockCoordinator struct {
	runner      TxRunner
	read        ReadRepositories
	actors      ActorProvider
	cache       AvailabilityCache
	metrics     Metrics
	log         *logger.Logger
	maxKitDepth int
	now         func() time.Time

	lots    *LotManager
	serials *SerialTracker
	ledger  *Ledger
}

// Option configura el coordinador.
type Option func(*StockCoordinator)

func WithActorProvider(p ActorProvider) Option        { return func(c *StockCoordinator) { c.actors = p } }
func WithAvailabilityCache(ac AvailabilityCache) Option { return func(c *StockCoordinator) { c.cache = ac } }
func WithMetrics(m Metrics) Option                      { return func(c *StockCoordinator) { c.metrics = m } }
func WithMaxKitDepth(n int) Option                      { return func(c *StockCoordinator) { c.maxKitDepth = n } }
func WithClock(now func() time.Time) Option             { return func(c *StockCoordinator) { c.now = now } }

// NewStockCoordinator construye el coordinador.
func NewStockCoordinator(runner TxRunner, read ReadRepositories, log *logger.Logger, opts ...Option) *StockCoordinator {
	if log == nil {
		log = logger.Nop()
	}
	c := &StockCoordinator{
		runner:      runner,
		read:        read,
		actors:      ContextActorProvider,
		cache:       nopCache{},
		metrics:     nopMetrics{},
		log:         log.Component("inventory"),
		maxKitDepth: inventory.DefaultMaxKitDepth,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lots = NewLotManager(read.Products, read.Lots, c.log, c.metrics, c.now)
	c.serials = NewSerialTracker(c.now)
	c.ledger = NewLedger(read.Movements, c.now)
	return c
}

// Lots gestor de lotes usado por el coordinador.
func (c *StockCoordinator) Lots() *LotManager { return c.lots }

// Serials tracker de series usado por el coordinador.
func (c *StockCoordinator) Serials() *SerialTracker { return c.serials }

// Ledger libro de movimientos.
func (c *StockCoordinator) Ledger() *Ledger { return c.ledger }

// within ejecuta fn en tx si el llamador ya tiene una transacción; si no, abre una propia.
// La transacción más interna activa siempre gana y solo el dueño de la más externa confirma.
func (c *StockCoordinator) within(ctx context.Context, tx repository.Tx, skip bool, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if tx != nil {
		return fn(ctx, tx)
	}
	if skip {
		panic(&domain.ProgrammingError{Op: op, Reason: domain.CalledOutsideTransaction})
	}
	err := c.runner.Run(ctx, fn)
	c.metrics.TxCompleted(op, err)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Msg("transacción revertida")
	}
	return err
}

func (c *StockCoordinator) prepare(ctx context.Context, mc MovementContext) MovementContext {
	if mc.ActorID == "" && c.actors != nil {
		mc.ActorID = c.actors.CurrentActorID(ctx)
	}
	if mc.TransactionID == "" {
		mc.TransactionID = uuid.New().String()
	}
	if mc.Reason == "" {
		mc.Reason = "Ajuste de inventario"
	}
	return mc
}

// Adjust primitiva de un solo producto. Los kits se expanden a sus componentes;
// el kit nunca tiene registro de inventario propio.
func (c *StockCoordinator) Adjust(ctx context.Context, tx repository.Tx, productID string, dir Direction, qty int, mc MovementContext) (*AdjustResult, error) {
	if productID == "" || mc.WarehouseID == "" || qty <= 0 || (dir != DirectionIn && dir != DirectionOut) {
		return nil, fmt.Errorf("ajuste %s x%d: %w", productID, qty, domain.ErrInvalidInput)
	}
	mc = c.prepare(ctx, mc)
	res := &AdjustResult{TransactionID: mc.TransactionID}
	err := c.within(ctx, tx, mc.SkipTransaction, "Adjust", func(ctx context.Context, tx repository.Tx) error {
		lines, err := c.adjustTx(ctx, tx, productID, dir, qty, mc)
		if err != nil {
			return err
		}
		res.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Receive entrada de qty unidades en warehouseID.
func (c *StockCoordinator) Receive(ctx context.Context, tx repository.Tx, productID, warehouseID string, qty int, mc MovementContext) (*AdjustResult, error) {
	mc.WarehouseID = warehouseID
	return c.Adjust(ctx, tx, productID, DirectionIn, qty, mc)
}

// Issue salida de qty unidades; falla con InsufficientStockError sin modificar nada.
func (c *StockCoordinator) Issue(ctx context.Context, tx repository.Tx, productID, warehouseID string, qty int, mc MovementContext) (*AdjustResult, error) {
	mc.WarehouseID = warehouseID
	return c.Adjust(ctx, tx, productID, DirectionOut, qty, mc)
}

// ApplyDelta ajuste con signo: positivo como entrada, negativo como salida.
func (c *StockCoordinator) ApplyDelta(ctx context.Context, tx repository.Tx, productID, warehouseID string, delta int, mc MovementContext) (*AdjustResult, error) {
	if mc.ReferenceType == "" {
		mc.ReferenceType = entity.ReferenceAdjustment
	}
	switch {
	case delta > 0:
		return c.Receive(ctx, tx, productID, warehouseID, delta, mc)
	case delta < 0:
		return c.Issue(ctx, tx, productID, warehouseID, -delta, mc)
	}
	return nil, fmt.Errorf("ajuste en cero: %w", domain.ErrInvalidInput)
}

func (c *StockCoordinator) resolve(ctx context.Context, tx repository.Tx, productID string) (*entity.Product, inventory.ProductKind, error) {
	p, err := tx.Products().GetByID(ctx, productID)
	if err != nil {
		return nil, nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, nil, fmt.Errorf("producto %s: %w", productID, domain.ErrProductNotFound)
	}
	var components []entity.KitComponent
	if p.IsKit {
		components, err = tx.Kits().Components(ctx, p.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("kit components: %w", err)
		}
		if len(components) == 0 {
			return nil, nil, fmt.Errorf("kit %s: %w", p.SKU, domain.ErrKitWithoutComponents)
		}
	}
	return p, inventory.KindOf(p, components), nil
}

// expandLeaves devuelve los productos hoja a mover, ordenados por ID para bloquear siempre en el mismo orden.
func (c *StockCoordinator) expandLeaves(ctx context.Context, tx repository.Tx, product *entity.Product, qty int) ([]inventory.ComponentNeed, error) {
	needs, err := inventory.NewKitResolver(tx.Products(), tx.Kits(), c.maxKitDepth).Expand(ctx, product.ID, qty)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(needs, func(i, j int) bool { return needs[i].Product.ID < needs[j].Product.ID })
	return needs, nil
}

func componentReason(reason, kitSKU string) string {
	return fmt.Sprintf("%s (Componente de Kit: %s)", reason, kitSKU)
}

// kitUnitCosts reparte el costo de qty kits entre los componentes en proporción a su costo
// de compra. Si ningún componente tiene costo el reparto es por unidad.
func kitUnitCosts(kitCost decimal.Decimal, qty int, needs []inventory.ComponentNeed) []decimal.Decimal {
	total := kitCost.Mul(decimal.NewFromInt(int64(qty)))
	var weight, units decimal.Decimal
	for _, n := range needs {
		q := decimal.NewFromInt(int64(n.Quantity))
		weight = weight.Add(q.Mul(n.Product.PurchaseCost))
		units = units.Add(q)
	}
	out := make([]decimal.Decimal, len(needs))
	for i, n := range needs {
		switch {
		case weight.IsPositive():
			out[i] = total.Mul(n.Product.PurchaseCost).Div(weight).Round(6)
		case units.IsPositive():
			out[i] = total.Div(units).Round(6)
		}
	}
	return out
}

func (c *StockCoordinator) adjustTx(ctx context.Context, tx repository.Tx, productID string, dir Direction, qty int, mc MovementContext) ([]AdjustedLine, error) {
	product, kind, err := c.resolve(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	switch kind.(type) {
	case inventory.ServiceKind:
		return nil, nil
	case inventory.KitKind:
		needs, err := c.expandLeaves(ctx, tx, product, qty)
		if err != nil {
			return nil, err
		}
		var costs []decimal.Decimal
		if mc.UnitCost != nil {
			costs = kitUnitCosts(*mc.UnitCost, qty, needs)
		}
		lines := make([]AdjustedLine, 0, len(needs))
		for i, n := range needs {
			sub := mc
			sub.Reason = componentReason(mc.Reason, n.KitSKU)
			sub.Serials = mc.ComponentSerials[n.Product.ID]
			sub.ComponentSerials = nil
			if costs != nil {
				sub.UnitCost = &costs[i]
			}
			sub.Details = withDetail(mc.Details, "kit_sku", product.SKU)
			line, err := c.adjustLeaf(ctx, tx, n.Product, inventory.KindOf(n.Product, nil), dir, n.Quantity, sub)
			if err != nil {
				return nil, err
			}
			if line != nil {
				lines = append(lines, *line)
			}
		}
		return lines, nil
	}
	line, err := c.adjustLeaf(ctx, tx, product, kind, dir, qty, mc)
	if err != nil || line == nil {
		return nil, err
	}
	return []AdjustedLine{*line}, nil
}

// leafChange lo que la sub-mutación de lotes/series aplicó sobre un producto hoja.
type leafChange struct {
	qty         int // cantidad efectiva; 0 = nada que registrar
	draws       []inventory.LotDraw
	serials     []string
	unitCost    decimal.Decimal
	averageCost bool
}

type leafMutation func(ctx context.Context, tx repository.Tx, wh *entity.Warehouse) (leafChange, error)

func unitCostOr(c *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if c != nil {
		return *c
	}
	return fallback
}

func (c *StockCoordinator) adjustLeaf(ctx context.Context, tx repository.Tx, product *entity.Product, kind inventory.ProductKind, dir Direction, qty int, mc MovementContext) (*AdjustedLine, error) {
	if mc.UnitCost != nil && mc.UnitCost.IsNegative() {
		return nil, fmt.Errorf("costo unitario negativo: %w", domain.ErrInvalidInput)
	}
	mutate := func(ctx context.Context, tx repository.Tx, wh *entity.Warehouse) (leafChange, error) {
		switch kind.(type) {
		case inventory.LottedKind:
			if dir == DirectionOut {
				draws, err := c.lots.ConsumeFIFO(ctx, tx, product.ID, wh.ID, qty)
				return leafChange{qty: qty, draws: draws}, err
			}
			if mc.LotNumber == "" {
				return leafChange{}, fmt.Errorf("el producto %s requiere número de lote: %w", product.SKU, domain.ErrInvalidInput)
			}
			cost := unitCostOr(mc.UnitCost, product.PurchaseCost)
			lot, err := c.lots.ReceiveLot(ctx, tx, product.ID, wh.ID, mc.LotNumber, qty, cost, mc.ExpiryDate)
			if err != nil {
				return leafChange{}, err
			}
			return leafChange{
				qty:         qty,
				draws:       []inventory.LotDraw{{LotID: lot.ID, LotNumber: lot.LotNumber, Quantity: qty, UnitCost: cost, ExpiryDate: lot.ExpiryDate}},
				unitCost:    cost,
				averageCost: mc.UnitCost != nil,
			}, nil

		case inventory.SerializedKind:
			if dir == DirectionOut {
				serials, err := c.serials.Sell(ctx, tx, product.ID, wh.ID, mc.SaleID, qty, mc.Serials)
				return leafChange{qty: qty, serials: serials, unitCost: product.PurchaseCost}, err
			}
			serials, err := c.serials.Receive(ctx, tx, product.ID, wh.ID, qty, mc.Serials, mc.PurchaseID)
			return leafChange{qty: qty, serials: serials, unitCost: unitCostOr(mc.UnitCost, product.PurchaseCost), averageCost: mc.UnitCost != nil}, err
		}
		if dir == DirectionOut {
			return leafChange{qty: qty, unitCost: product.PurchaseCost}, nil
		}
		return leafChange{qty: qty, unitCost: unitCostOr(mc.UnitCost, product.PurchaseCost), averageCost: mc.UnitCost != nil}, nil
	}
	return c.applyLeaf(ctx, tx, product, kind, dir, qty, mc, mutate)
}

func (c *StockCoordinator) lockWarehouse(ctx context.Context, tx repository.Tx, id string) (*entity.Warehouse, error) {
	wh, err := tx.Warehouses().GetForShare(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock warehouse: %w", err)
	}
	if wh == nil {
		return nil, fmt.Errorf("almacén %s: %w", id, domain.ErrWarehouseNotFound)
	}
	if !wh.Active {
		return nil, fmt.Errorf("almacén %s: %w", wh.Name, domain.ErrInactiveWarehouse)
	}
	return wh, nil
}

// lockStock bloquea el registro (producto, almacén); si no existe lo crea en 0 y lo vuelve a bloquear.
func (c *StockCoordinator) lockStock(ctx context.Context, tx repository.Tx, productID, warehouseID string) (*entity.Stock, error) {
	s, err := tx.Stock().GetForUpdate(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("lock stock: %w", err)
	}
	if s != nil {
		return s, nil
	}
	if err := tx.Stock().CreateIfMissing(ctx, productID, warehouseID); err != nil {
		return nil, fmt.Errorf("create stock: %w", err)
	}
	s, err = tx.Stock().GetForUpdate(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("lock stock: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("registro de inventario %s/%s: %w", productID, warehouseID, domain.ErrNotFound)
	}
	return s, nil
}

// applyLeaf: bloquea almacén y registro, valida antes de mutar, aplica la sub-mutación,
// persiste la cantidad, recalcula el total del producto y registra los movimientos.
func (c *StockCoordinator) applyLeaf(ctx context.Context, tx repository.Tx, product *entity.Product, kind inventory.ProductKind, dir Direction, qty int, mc MovementContext, mutate leafMutation) (*AdjustedLine, error) {
	wh, err := c.lockWarehouse(ctx, tx, mc.WarehouseID)
	if err != nil {
		return nil, err
	}
	stock, err := c.lockStock(ctx, tx, product.ID, wh.ID)
	if err != nil {
		return nil, err
	}
	before := stock.Quantity
	if dir == DirectionOut && before < qty {
		c.metrics.InsufficientStock(inventory.KindName(kind))
		return nil, &domain.InsufficientStockError{ProductID: product.ID, WarehouseID: wh.ID, Available: before, Requested: qty}
	}

	change, err := mutate(ctx, tx, wh)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			c.metrics.InsufficientStock(inventory.KindName(kind))
		}
		return nil, err
	}
	if change.qty == 0 {
		return nil, nil
	}

	after := before + change.qty
	if dir == DirectionOut {
		after = before - change.qty
	}
	stock.Quantity = after
	if err := tx.Stock().Upsert(ctx, stock); err != nil {
		return nil, fmt.Errorf("upsert stock: %w", err)
	}
	if change.averageCost {
		// costo y total vigentes, no los leídos antes de bloquear
		locked, err := tx.Products().GetForUpdate(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("lock product: %w", err)
		}
		if locked == nil {
			return nil, fmt.Errorf("producto %s: %w", product.ID, domain.ErrProductNotFound)
		}
		newCost := inventory.CostCalculator(
			decimal.NewFromInt(int64(max(locked.Stock, 0))), locked.PurchaseCost,
			decimal.NewFromInt(int64(change.qty)), change.unitCost,
		)
		if err := tx.Products().UpdateCost(ctx, product.ID, newCost); err != nil {
			return nil, fmt.Errorf("update cost: %w", err)
		}
	}
	if _, err := tx.Products().RefreshStockTotal(ctx, product.ID); err != nil {
		return nil, fmt.Errorf("refresh product stock: %w", err)
	}
	if err := c.recordMovements(ctx, tx, product, wh, dir, before, change, mc); err != nil {
		return nil, err
	}

	movementType, kindName := dir.movementType(), inventory.KindName(kind)
	tx.AfterCommit(func() {
		c.cache.Invalidate(context.WithoutCancel(ctx), product.ID, wh.ID)
		c.metrics.MovementRecorded(movementType, kindName, change.qty)
	})

	return &AdjustedLine{
		ProductID:      product.ID,
		WarehouseID:    wh.ID,
		Direction:      dir,
		Quantity:       change.qty,
		QuantityBefore: before,
		QuantityAfter:  after,
		UnitCost:       change.unitCost,
		LotDraws:       change.draws,
		Serials:        change.serials,
	}, nil
}

// recordMovements escribe un movimiento por lote tocado, o uno solo si no hay lotes.
func (c *StockCoordinator) recordMovements(ctx context.Context, tx repository.Tx, product *entity.Product, wh *entity.Warehouse, dir Direction, before int, change leafChange, mc MovementContext) error {
	details := mc.Details
	if len(change.serials) > 0 {
		details = withDetail(details, "serials", change.serials)
	}
	raw, err := marshalDetails(details)
	if err != nil {
		return err
	}

	running := before
	write := func(lotID string, qty int, cost decimal.Decimal) error {
		after := running + qty
		if dir == DirectionOut {
			after = running - qty
		}
		m := &entity.InventoryMovement{
			TransactionID:  mc.TransactionID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			WarehouseID:    wh.ID,
			WarehouseName:  wh.Name,
			LotID:          lotID,
			Type:           dir.movementType(),
			Quantity:       qty,
			QuantityBefore: running,
			QuantityAfter:  after,
			UnitCost:       cost,
			Reason:         mc.Reason,
			ReferenceType:  mc.ReferenceType,
			ReferenceID:    mc.ReferenceID,
			ActorID:        mc.ActorID,
			Details:        raw,
			CreatedAt:      c.now(),
		}
		if err := c.ledger.Record(ctx, tx, m); err != nil {
			return err
		}
		running = after
		return nil
	}

	if len(change.draws) > 0 {
		for _, d := range change.draws {
			if err := write(d.LotID, d.Quantity, d.UnitCost); err != nil {
				return err
			}
		}
		return nil
	}
	return write("", change.qty, change.unitCost)
}

func withDetail(details map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out[key] = value
	return out
}

func marshalDetails(details map[string]any) (json.RawMessage, error) {
	if len(details) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	return raw, nil
}
