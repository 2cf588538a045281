package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain"
	dominv "github.com/jhoicas/inventario-core/internal/domain/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

func TestConsumeFIFO_PrimeroVencePrimeroSale(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, whMain, "B", 5, 20, day(2))
	f.receiveLot(t, whMain, "A", 5, 10, day(1))

	res, err := f.coord.Issue(ctxFor(), nil, pLot, whMain, 7, inventory.MovementContext{})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	draws := res.Lines[0].LotDraws
	require.Len(t, draws, 2)
	assert.Equal(t, "A", draws[0].LotNumber)
	assert.Equal(t, 5, draws[0].Quantity)
	assert.Equal(t, "B", draws[1].LotNumber)
	assert.Equal(t, 2, draws[1].Quantity)

	assert.Equal(t, 0, f.lot(t, whMain, "A").RemainingQuantity)
	assert.Equal(t, 3, f.lot(t, whMain, "B").RemainingQuantity)
	assert.Equal(t, 3, f.stock(t, pLot, whMain))

	// 5*10 + 2*20
	assert.True(t, decimal.NewFromInt(90).Equal(res.TotalCost()))

	// un movimiento por lote, con existencias escalonadas
	exits := f.movements(t)[:2]
	assert.Equal(t, 5, exits[0].QuantityBefore)
	assert.Equal(t, 3, exits[0].QuantityAfter)
	assert.Equal(t, 10, exits[1].QuantityBefore)
	assert.Equal(t, 5, exits[1].QuantityAfter)
	assert.NotEmpty(t, exits[0].LotID)
}

func TestConsumeFIFO_SinCaducidadAlFinal(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, whMain, "SIN-FECHA", 5, 10, nil)
	f.receiveLot(t, whMain, "CON-FECHA", 5, 10, day(30))

	res, err := f.coord.Issue(ctxFor(), nil, pLot, whMain, 5, inventory.MovementContext{})
	require.NoError(t, err)
	require.Len(t, res.Lines[0].LotDraws, 1)
	assert.Equal(t, "CON-FECHA", res.Lines[0].LotDraws[0].LotNumber)
}

func TestConsumeFIFO_LotesVencidosNoCuentan(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, whMain, "VENCIDO", 5, 10, day(-1))
	f.receiveLot(t, whMain, "VIGENTE", 5, 10, nil)

	_, err := f.coord.Issue(ctxFor(), nil, pLot, whMain, 6, inventory.MovementContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.ErrorIs(t, err, domain.ErrLotExhausted)

	assert.Equal(t, 5, f.lot(t, whMain, "VIGENTE").RemainingQuantity, "todo o nada")
	assert.Equal(t, 10, f.stock(t, pLot, whMain))
}

func TestReceiveLot_MismoNumeroIncrementa(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, whMain, "L1", 4, 10, day(5))
	f.receiveLot(t, whMain, "L1", 4, 20, day(5))

	l := f.lot(t, whMain, "L1")
	assert.Equal(t, 8, l.InitialQuantity)
	assert.Equal(t, 8, l.RemainingQuantity)
	assert.True(t, decimal.NewFromInt(15).Equal(l.UnitCost))
}

func TestReceive_LoteObligatorio(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Receive(ctxFor(), nil, pLot, whMain, 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHistoricalUnitCost_FaltanteAlCostoDeCompra(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, whMain, "L1", 2, 10, nil)

	p := f.product(t, pLot)
	p.PurchaseCost = decimal.NewFromInt(30)
	f.store.AddProduct(*p)

	cost, err := f.coord.HistoricalUnitCost(context.Background(), pLot, whMain, 4)
	require.NoError(t, err)
	// (2*10 + 2*30) / 4
	assert.True(t, decimal.NewFromInt(20).Equal(cost), cost.String())
	assert.Equal(t, 1, f.metrics.fallbacks)
	assert.Equal(t, 2, f.lot(t, whMain, "L1").RemainingQuantity, "la vista previa no consume")
}

func TestHistoricalUnitCost_Kit(t *testing.T) {
	f := newFixture(t)
	cost, err := f.coord.HistoricalUnitCost(context.Background(), pKit, whMain, 2)
	require.NoError(t, err)
	// 2*3 + 1*5
	assert.True(t, decimal.NewFromInt(11).Equal(cost), cost.String())
}

func TestTransfer_LotesConservanNumeroCostoYCaducidad(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, whMain, "A", 5, 12, day(3))

	_, err := f.coord.Transfer(ctxFor(), nil, pLot, whMain, whSecond, 3, inventory.MovementContext{})
	require.NoError(t, err)

	src := f.lot(t, whMain, "A")
	dst := f.lot(t, whSecond, "A")
	assert.Equal(t, 2, src.RemainingQuantity)
	assert.Equal(t, 3, dst.RemainingQuantity)
	assert.True(t, src.UnitCost.Equal(dst.UnitCost))
	require.NotNil(t, dst.ExpiryDate)
	assert.True(t, src.ExpiryDate.Equal(*dst.ExpiryDate))
	assert.Equal(t, 3, f.stock(t, pLot, whSecond))
}

func TestLotManager_SinTransaccionEntraEnPanico(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() {
		_, _ = f.coord.Lots().ConsumeFIFO(context.Background(), nil, pLot, whMain, 1)
	})
}

func TestRestoreDraws_NoExcedeLaCantidadInicial(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, whMain, "A", 2, 10, nil)
	l := f.lot(t, whMain, "A")

	err := f.store.Run(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return f.coord.Lots().RestoreDraws(ctx, tx, []dominv.LotDraw{{LotID: l.ID, LotNumber: "A", Quantity: 1}})
	})
	assert.ErrorIs(t, err, domain.ErrLotOverflow)
}
