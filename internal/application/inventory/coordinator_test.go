package inventory_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Productos simples
// ──────────────────────────────────────────────────────────────────────────────

func TestReceiveIssue_ConservaExistenciasYLibro(t *testing.T) {
	f := newFixture(t)
	f.receive(t, pSimple, whMain, 10, inventory.MovementContext{})

	res, err := f.coord.Issue(ctxFor(), nil, pSimple, whMain, 3, inventory.MovementContext{Reason: "Venta mostrador"})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 10, res.Lines[0].QuantityBefore)
	assert.Equal(t, 7, res.Lines[0].QuantityAfter)

	assert.Equal(t, 7, f.stock(t, pSimple, whMain))
	assert.Equal(t, 7, f.product(t, pSimple).Stock)

	movs := f.movements(t)
	require.Len(t, movs, 2)
	// más reciente primero
	assert.Equal(t, entity.MovementTypeExit, movs[0].Type)
	assert.Equal(t, "user-1", movs[0].ActorID, "el actor se toma del contexto")
	assert.Equal(t, "Venta mostrador", movs[0].Reason)
	assert.Equal(t, "Principal", movs[0].WarehouseName)
	net := 0
	for _, m := range movs {
		net += m.Delta()
	}
	assert.Equal(t, 7, net, "el neto del libro coincide con el registro")
}

func TestIssue_StockInsuficienteNoModificaNada(t *testing.T) {
	f := newFixture(t)
	f.receive(t, pSimple, whMain, 5, inventory.MovementContext{})

	_, err := f.coord.Issue(ctxFor(), nil, pSimple, whMain, 7, inventory.MovementContext{})
	require.Error(t, err)

	var ise *domain.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, 5, ise.Available)
	assert.Equal(t, 7, ise.Requested)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 5, f.stock(t, pSimple, whMain))
	assert.Len(t, f.movements(t), 1)
	assert.Equal(t, 1, f.metrics.insufficient)
}

func TestIssue_SinRegistroCuentaComoCero(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Issue(ctxFor(), nil, pSimple, whSecond, 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestAdjust_AlmacenInactivoOInexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Receive(ctxFor(), nil, pSimple, whInactive, 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrInactiveWarehouse)

	_, err = f.coord.Receive(ctxFor(), nil, pSimple, "no-existe", 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrWarehouseNotFound)

	_, err = f.coord.Receive(ctxFor(), nil, "no-existe", whMain, 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestReceive_ActualizaCostoPromedio(t *testing.T) {
	f := newFixture(t)
	c20 := decimal.NewFromInt(20)
	f.receive(t, pSimple, whMain, 10, inventory.MovementContext{})
	f.receive(t, pSimple, whMain, 10, inventory.MovementContext{UnitCost: &c20})

	// (10*10 + 10*20) / 20
	assert.True(t, decimal.NewFromInt(15).Equal(f.product(t, pSimple).PurchaseCost))
}

func TestApplyDelta_ConSigno(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.ApplyDelta(ctxFor(), nil, pSimple, whMain, 4, inventory.MovementContext{})
	require.NoError(t, err)
	_, err = f.coord.ApplyDelta(ctxFor(), nil, pSimple, whMain, -1, inventory.MovementContext{})
	require.NoError(t, err)
	assert.Equal(t, 3, f.stock(t, pSimple, whMain))

	_, err = f.coord.ApplyDelta(ctxFor(), nil, pSimple, whMain, 0, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	for _, m := range f.movements(t) {
		assert.Equal(t, entity.ReferenceAdjustment, m.ReferenceType)
	}
}

func TestAdjust_ServicioNoMueveInventario(t *testing.T) {
	f := newFixture(t)
	res, err := f.coord.Issue(ctxFor(), nil, pSvc, whMain, 3, inventory.MovementContext{})
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Empty(t, f.movements(t))
}

// ──────────────────────────────────────────────────────────────────────────────
// Transacciones
// ──────────────────────────────────────────────────────────────────────────────

func TestAdjust_TransaccionDelLlamadorRevierteTodo(t *testing.T) {
	f := newFixture(t)
	err := f.store.Run(ctxFor(), func(ctx context.Context, tx repository.Tx) error {
		if _, err := f.coord.Receive(ctx, tx, pSimple, whMain, 5, inventory.MovementContext{}); err != nil {
			return err
		}
		_, err := f.coord.Issue(ctx, tx, pSimple, whMain, 8, inventory.MovementContext{})
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 0, f.stock(t, pSimple, whMain))
	assert.Empty(t, f.movements(t))
}

func TestAdjust_SkipTransactionSinTransaccionEntraEnPanico(t *testing.T) {
	f := newFixture(t)
	pe := requireProgrammingError(t, func() {
		_, _ = f.coord.Issue(ctxFor(), nil, pSimple, whMain, 1, inventory.MovementContext{SkipTransaction: true})
	})
	assert.Equal(t, "Adjust", pe.Op)
	assert.Equal(t, domain.CalledOutsideTransaction, pe.Reason)
}

func TestAdjust_SkipTransactionUsaLaTransaccionRecibida(t *testing.T) {
	f := newFixture(t)
	err := f.store.Run(ctxFor(), func(ctx context.Context, tx repository.Tx) error {
		_, err := f.coord.Receive(ctx, tx, pSimple, whMain, 2, inventory.MovementContext{SkipTransaction: true})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(t, pSimple, whMain))
}

func TestIssue_ConcurrenteNoSobrevende(t *testing.T) {
	f := newFixture(t)
	f.receive(t, pSimple, whMain, 10, inventory.MovementContext{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.Issue(ctxFor(), nil, pSimple, whMain, 1, inventory.MovementContext{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			fail++
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, fail)
	assert.Equal(t, 0, f.stock(t, pSimple, whMain))
}

// ──────────────────────────────────────────────────────────────────────────────
// Kits
// ──────────────────────────────────────────────────────────────────────────────

func TestKit_DescomponeEnComponentes(t *testing.T) {
	f := newFixture(t)
	f.receive(t, pX, whMain, 10, inventory.MovementContext{})
	f.receive(t, pY, whMain, 10, inventory.MovementContext{})

	res, err := f.coord.Issue(ctxFor(), nil, pKit, whMain, 3, inventory.MovementContext{Reason: "Venta"})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	assert.Equal(t, 4, f.stock(t, pX, whMain))
	assert.Equal(t, 7, f.stock(t, pY, whMain))

	rows, err := f.store.Stock().ListByProduct(context.Background(), pKit)
	require.NoError(t, err)
	assert.Empty(t, rows, "el kit nunca tiene registro propio")

	for _, m := range f.movements(t) {
		if m.Type == entity.MovementTypeExit {
			assert.Equal(t, "Venta (Componente de Kit: KIT-1)", m.Reason)
		}
	}
	// 6*3 + 3*5
	assert.True(t, decimal.NewFromInt(33).Equal(res.TotalCost()))
}

func TestKit_EntradaConCostoSeRepartePorComponente(t *testing.T) {
	f := newFixture(t)
	kitCost := decimal.NewFromInt(110)

	res, err := f.coord.Receive(ctxFor(), nil, pKit, whMain, 2, inventory.MovementContext{UnitCost: &kitCost})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	// 110 por kit = 2 X + 1 Y, proporcional a 3:5
	assert.True(t, decimal.NewFromInt(30).Equal(f.product(t, pX).PurchaseCost), f.product(t, pX).PurchaseCost.String())
	assert.True(t, decimal.NewFromInt(50).Equal(f.product(t, pY).PurchaseCost), f.product(t, pY).PurchaseCost.String())
	assert.True(t, decimal.NewFromInt(220).Equal(res.TotalCost()), "el valor de la entrada es el de los kits")
	for _, m := range f.movements(t) {
		assert.False(t, m.UnitCost.Equal(kitCost), "ningún componente entra al costo del kit")
	}
}

func TestKit_EntradaConCostoSinCostoDeComponentes(t *testing.T) {
	f := newFixture(t)
	f.store.AddProduct(entity.Product{ID: "p-z", SKU: "Z", Name: "Sin costo", Active: true})
	f.store.AddProduct(entity.Product{ID: "p-w", SKU: "W", Name: "Sin costo 2", Active: true})
	f.store.AddProduct(entity.Product{ID: "k-0", SKU: "KIT-0", Name: "Kit sin costos", Active: true, IsKit: true})
	f.store.SetKitComponents("k-0",
		entity.KitComponent{ComponentProductID: "p-z", Multiplier: 3},
		entity.KitComponent{ComponentProductID: "p-w", Multiplier: 1},
	)
	kitCost := decimal.NewFromInt(40)

	_, err := f.coord.Receive(ctxFor(), nil, "k-0", whMain, 1, inventory.MovementContext{UnitCost: &kitCost})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(f.product(t, "p-z").PurchaseCost))
	assert.True(t, decimal.NewFromInt(10).Equal(f.product(t, "p-w").PurchaseCost))
}

func TestKit_FaltaUnComponenteNoDescuentaNinguno(t *testing.T) {
	f := newFixture(t)
	f.receive(t, pX, whMain, 10, inventory.MovementContext{})
	f.receive(t, pY, whMain, 1, inventory.MovementContext{})

	_, err := f.coord.Issue(ctxFor(), nil, pKit, whMain, 2, inventory.MovementContext{})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 10, f.stock(t, pX, whMain))
	assert.Equal(t, 1, f.stock(t, pY, whMain))
}

func TestKit_CicloFalla(t *testing.T) {
	f := newFixture(t)
	f.store.AddProduct(entity.Product{ID: "k-2", SKU: "KIT-2", Active: true, IsKit: true})
	f.store.SetKitComponents("k-2", entity.KitComponent{ComponentProductID: pKit, Multiplier: 1})
	f.store.SetKitComponents(pKit, entity.KitComponent{ComponentProductID: "k-2", Multiplier: 1})

	_, err := f.coord.Issue(ctxFor(), nil, pKit, whMain, 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrKitTooDeep)
}

func TestKit_SinComponentesFalla(t *testing.T) {
	f := newFixture(t)
	f.store.AddProduct(entity.Product{ID: "k-empty", SKU: "KIT-0", Active: true, IsKit: true})
	_, err := f.coord.Receive(ctxFor(), nil, "k-empty", whMain, 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrKitWithoutComponents)
}

func TestAvailableQuantity_KitEsElMinimoDeComponentes(t *testing.T) {
	f := newFixture(t)
	f.receive(t, pX, whMain, 10, inventory.MovementContext{})
	f.receive(t, pY, whMain, 4, inventory.MovementContext{})

	n, err := f.coord.AvailableQuantity(context.Background(), pKit, whMain)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = f.coord.AvailableQuantity(context.Background(), pX, whMain)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transferencias
// ──────────────────────────────────────────────────────────────────────────────

func TestTransfer_SimpleMueveEntreAlmacenes(t *testing.T) {
	f := newFixture(t)
	f.receive(t, pSimple, whMain, 6, inventory.MovementContext{})

	res, err := f.coord.Transfer(ctxFor(), nil, pSimple, whMain, whSecond, 4, inventory.MovementContext{})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	assert.Equal(t, 2, f.stock(t, pSimple, whMain))
	assert.Equal(t, 4, f.stock(t, pSimple, whSecond))
	assert.Equal(t, 6, f.product(t, pSimple).Stock)

	for _, m := range f.movements(t)[:2] {
		assert.Equal(t, entity.ReferenceTransfer, m.ReferenceType)
		assert.True(t, strings.Contains(string(m.Details), whSecond))
	}
}

func TestTransfer_MismoAlmacenEsInvalido(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Transfer(ctxFor(), nil, pSimple, whMain, whMain, 1, inventory.MovementContext{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
