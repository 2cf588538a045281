package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	sum := stockActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	num := stockActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.Div(sum)
}

// LotDraw es la cantidad tomada de un lote concreto en una salida FIFO.
type LotDraw struct {
	LotID      string          `json:"lot_id"`
	LotNumber  string          `json:"lot_number"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

// PlanFIFO reparte qty entre los lotes consumibles en orden FIFO (caducidad ascendente, sin fecha al final).
// No modifica los lotes. shortfall > 0 indica que los lotes no alcanzan.
func PlanFIFO(lots []*entity.Lot, qty int, at time.Time) (draws []LotDraw, shortfall int) {
	ordered := make([]*entity.Lot, 0, len(lots))
	for _, l := range lots {
		if l.RemainingQuantity > 0 && !l.Expired(at) {
			ordered = append(ordered, l)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return entity.LotLess(ordered[i], ordered[j]) })

	pending := qty
	for _, l := range ordered {
		if pending <= 0 {
			break
		}
		take := min(pending, l.RemainingQuantity)
		draws = append(draws, LotDraw{
			LotID:      l.ID,
			LotNumber:  l.LotNumber,
			Quantity:   take,
			UnitCost:   l.UnitCost,
			ExpiryDate: l.ExpiryDate,
		})
		pending -= take
	}
	if pending < 0 {
		pending = 0
	}
	return draws, pending
}

// CostPreview resultado de la estimación de costo histórico de una salida.
type CostPreview struct {
	UnitCost  decimal.Decimal // promedio ponderado por unidad
	TotalCost decimal.Decimal
	Draws     []LotDraw
	// FallbackQuantity unidades valuadas al costo de compra del producto por falta de lotes.
	FallbackQuantity int
}

// UsedFallback indica si parte de la cantidad se valuó con el costo de respaldo.
func (p CostPreview) UsedFallback() bool { return p.FallbackQuantity > 0 }

// PreviewFIFOCost calcula sin bloquear ni modificar el costo promedio ponderado de sacar qty unidades.
// El faltante se valúa a fallbackCost.
func PreviewFIFOCost(lots []*entity.Lot, qty int, at time.Time, fallbackCost decimal.Decimal) CostPreview {
	if qty <= 0 {
		return CostPreview{UnitCost: fallbackCost, TotalCost: decimal.Zero}
	}
	draws, shortfall := PlanFIFO(lots, qty, at)
	total := decimal.Zero
	for _, d := range draws {
		total = total.Add(d.UnitCost.Mul(decimal.NewFromInt(int64(d.Quantity))))
	}
	if shortfall > 0 {
		total = total.Add(fallbackCost.Mul(decimal.NewFromInt(int64(shortfall))))
	}
	return CostPreview{
		UnitCost:         total.Div(decimal.NewFromInt(int64(qty))),
		TotalCost:        total,
		Draws:            draws,
		FallbackQuantity: shortfall,
	}
}

// DrawsCost suma el costo de un conjunto de extracciones de lote.
func DrawsCost(draws []LotDraw) decimal.Decimal {
	total := decimal.Zero
	for _, d := range draws {
		total = total.Add(d.UnitCost.Mul(decimal.NewFromInt(int64(d.Quantity))))
	}
	return total
}
