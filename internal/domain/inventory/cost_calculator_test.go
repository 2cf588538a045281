package inventory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
)

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func at(days int) *time.Time {
	t := now.AddDate(0, 0, days)
	return &t
}

func lot(id string, remaining int, cost int64, expiry *time.Time) *entity.Lot {
	return &entity.Lot{
		ID: id, LotNumber: id, InitialQuantity: remaining, RemainingQuantity: remaining,
		UnitCost: decimal.NewFromInt(cost), ExpiryDate: expiry, CreatedAt: now,
	}
}

func TestCostCalculator(t *testing.T) {
	tests := []struct {
		name                           string
		stock, cost, entrada, costoEnt int64
		want                           string
	}{
		{"sin existencias toma el costo de entrada", 0, 0, 10, 7, "7"},
		{"promedio ponderado", 10, 10, 10, 20, "15"},
		{"entrada pequeña", 90, 10, 10, 20, "11"},
		{"cantidades en cero", 0, 5, 0, 9, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inventory.CostCalculator(
				decimal.NewFromInt(tt.stock), decimal.NewFromInt(tt.cost),
				decimal.NewFromInt(tt.entrada), decimal.NewFromInt(tt.costoEnt),
			)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestPlanFIFO_OrdenYFaltante(t *testing.T) {
	lots := []*entity.Lot{
		lot("SIN-FECHA", 10, 1, nil),
		lot("B", 5, 2, at(2)),
		lot("A", 5, 3, at(1)),
		lot("VENCIDO", 50, 4, at(0)),
		lot("VACIO", 0, 5, at(1)),
	}

	draws, shortfall := inventory.PlanFIFO(lots, 12, now)
	require.Len(t, draws, 3)
	assert.Equal(t, 0, shortfall)
	assert.Equal(t, []string{"A", "B", "SIN-FECHA"}, []string{draws[0].LotID, draws[1].LotID, draws[2].LotID})
	assert.Equal(t, []int{5, 5, 2}, []int{draws[0].Quantity, draws[1].Quantity, draws[2].Quantity})

	// los lotes de entrada no se modifican
	assert.Equal(t, 5, lots[2].RemainingQuantity)

	_, shortfall = inventory.PlanFIFO(lots, 30, now)
	assert.Equal(t, 10, shortfall)
}

func TestPlanFIFO_EmpateDesempataPorNumero(t *testing.T) {
	lots := []*entity.Lot{lot("L2", 1, 1, at(1)), lot("L1", 1, 1, at(1))}
	draws, _ := inventory.PlanFIFO(lots, 1, now)
	require.Len(t, draws, 1)
	assert.Equal(t, "L1", draws[0].LotNumber)
}

func TestPreviewFIFOCost(t *testing.T) {
	lots := []*entity.Lot{lot("A", 2, 10, at(1)), lot("B", 2, 20, at(2))}

	p := inventory.PreviewFIFOCost(lots, 3, now, decimal.NewFromInt(99))
	assert.False(t, p.UsedFallback())
	assert.Equal(t, "40", p.TotalCost.String())

	p = inventory.PreviewFIFOCost(lots, 6, now, decimal.NewFromInt(30))
	assert.True(t, p.UsedFallback())
	assert.Equal(t, 2, p.FallbackQuantity)
	// 2*10 + 2*20 + 2*30 = 120 / 6
	assert.Equal(t, "20", p.UnitCost.String())
	assert.Equal(t, "120", inventory.DrawsCost(p.Draws).Add(decimal.NewFromInt(60)).String())
}

func TestLotExpired(t *testing.T) {
	assert.True(t, lot("X", 1, 1, at(0)).Expired(now), "vence en el mismo instante")
	assert.False(t, lot("X", 1, 1, at(1)).Expired(now))
	assert.False(t, lot("X", 1, 1, nil).Expired(now))
}
