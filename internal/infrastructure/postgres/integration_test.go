//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
	"github.com/jhoicas/inventario-core/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-core/migrations"
	"github.com/jhoicas/inventario-core/pkg/config"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

type pgFixture struct {
	pool   *pgxpool.Pool
	runner *postgres.TxRunner
	coord  *inventory.StockCoordinator
	sales  *inventory.SaleService
}

func newPG(t *testing.T) *pgFixture {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("inventario_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, migrations.Up(ctx, sqlDB))
	_ = sqlDB.Close()

	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		INSERT INTO warehouses (id, name, active) VALUES ('wh-1', 'Principal', true), ('wh-2', 'Sucursal', true);
		INSERT INTO products (id, sku, name, purchase_cost) VALUES ('p-simple', 'SIM-1', 'Simple', 10);
		INSERT INTO products (id, sku, name, handles_lots, purchase_cost) VALUES ('p-lot', 'LOT-1', 'Con lote', true, 10);
		INSERT INTO products (id, sku, name, requires_serial, purchase_cost) VALUES ('p-serial', 'SER-1', 'Serializado', true, 10);
		INSERT INTO products (id, sku, name, is_kit) VALUES ('k-1', 'KIT-1', 'Kit');
		INSERT INTO kit_components (kit_product_id, component_product_id, multiplier, position)
		VALUES ('k-1', 'p-simple', 2, 0), ('k-1', 'p-lot', 1, 1);`)
	require.NoError(t, err)

	runner := postgres.NewTxRunner(pool, 5*time.Second)
	coord := inventory.NewStockCoordinator(runner, postgres.NewReadRepositories(pool), logger.Nop())
	return &pgFixture{pool: pool, runner: runner, coord: coord, sales: inventory.NewSaleService(coord)}
}

func ctxFor() context.Context {
	return inventory.WithActor(context.Background(), "user-1")
}

func (f *pgFixture) quantity(t *testing.T, productID, warehouseID string) int {
	t.Helper()
	s, err := postgres.NewStockRepository(f.pool).Get(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return s.Quantity
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestPG_EntradaSalidaYLibro(t *testing.T) {
	f := newPG(t)
	ctx := ctxFor()
	cost := decimal.NewFromInt(20)

	_, err := f.coord.Receive(ctx, nil, "p-simple", "wh-1", 10, inventory.MovementContext{UnitCost: &cost})
	require.NoError(t, err)
	_, err = f.coord.Issue(ctx, nil, "p-simple", "wh-1", 4, inventory.MovementContext{})
	require.NoError(t, err)

	assert.Equal(t, 6, f.quantity(t, "p-simple", "wh-1"))

	p, err := postgres.NewProductRepository(f.pool).GetByID(context.Background(), "p-simple")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Stock)
	assert.True(t, decimal.NewFromInt(20).Equal(p.PurchaseCost), p.PurchaseCost.String())

	movs, err := f.coord.Ledger().History(context.Background(), repository.MovementFilter{ProductID: "p-simple"})
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, entity.MovementTypeExit, movs[0].Type, "más reciente primero")
	assert.Equal(t, 10, movs[0].QuantityBefore)
	assert.Equal(t, 6, movs[0].QuantityAfter)
	assert.Equal(t, "user-1", movs[0].ActorID)

	net, err := f.coord.Ledger().NetChange(context.Background(), "p-simple", "wh-1")
	require.NoError(t, err)
	assert.Equal(t, 6, net)

	stats, err := f.coord.Ledger().Stats(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMovements)
	assert.Equal(t, 10, stats.UnitsIn)
	assert.Equal(t, 4, stats.UnitsOut)
}

func TestPG_SalidasConcurrentesNoSobrevenden(t *testing.T) {
	f := newPG(t)
	_, err := f.coord.Receive(ctxFor(), nil, "p-simple", "wh-1", 5, inventory.MovementContext{})
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.Issue(ctxFor(), nil, "p-simple", "wh-1", 1, inventory.MovementContext{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if errors.Is(err, domain.ErrInsufficientStock) {
				fail++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 7, fail)
	assert.Equal(t, 0, f.quantity(t, "p-simple", "wh-1"))
}

func TestPG_EntradasConcurrentesPromedianTodas(t *testing.T) {
	f := newPG(t)
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cost := decimal.NewFromInt(int64(10 * (i + 1)))
			wh := "wh-1"
			if i%2 == 1 {
				wh = "wh-2"
			}
			_, errs[i] = f.coord.Receive(ctxFor(), nil, "p-simple", wh, 10, inventory.MovementContext{UnitCost: &cost})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	p, err := postgres.NewProductRepository(f.pool).GetByID(context.Background(), "p-simple")
	require.NoError(t, err)
	assert.Equal(t, 10*n, p.Stock)
	// sin stock previo el promedio ponderado no depende del orden: (10+20+...+80)/8
	assert.InDelta(t, 45.0, p.PurchaseCost.InexactFloat64(), 0.0001)
}

func TestPG_VentaDeKitYCancelacion(t *testing.T) {
	f := newPG(t)
	ctx := ctxFor()
	lotCost := decimal.NewFromInt(7)
	_, err := f.coord.Receive(ctx, nil, "p-simple", "wh-1", 4, inventory.MovementContext{})
	require.NoError(t, err)
	_, err = f.coord.Receive(ctx, nil, "p-lot", "wh-1", 3, inventory.MovementContext{LotNumber: "L1", UnitCost: &lotCost})
	require.NoError(t, err)

	res, err := f.sales.RegisterSale(ctx, nil, inventory.SaleRequest{
		SaleID: "v-1", WarehouseID: "wh-1",
		Lines: []inventory.SaleLine{{ProductID: "k-1", Quantity: 2}},
	})
	require.NoError(t, err)
	// 4 simples a 10 + 2 unidades de lote a 7
	assert.True(t, decimal.NewFromInt(54).Equal(res.TotalCost), res.TotalCost.String())
	assert.Equal(t, 0, f.quantity(t, "p-simple", "wh-1"))
	assert.Equal(t, 1, f.quantity(t, "p-lot", "wh-1"))

	_, err = f.sales.CancelSale(ctx, nil, "v-1", inventory.MovementContext{})
	require.NoError(t, err)
	assert.Equal(t, 4, f.quantity(t, "p-simple", "wh-1"))
	assert.Equal(t, 3, f.quantity(t, "p-lot", "wh-1"))

	again, err := f.sales.CancelSale(ctx, nil, "v-1", inventory.MovementContext{})
	require.NoError(t, err)
	assert.Empty(t, again.Lines, "cancelar dos veces no duplica")
}

func TestPG_SerieDuplicadaPorIndiceParcial(t *testing.T) {
	f := newPG(t)
	ctx := ctxFor()
	_, err := f.coord.Receive(ctx, nil, "p-serial", "wh-1", 1, inventory.MovementContext{Serials: []string{"SN-1"}})
	require.NoError(t, err)

	_, err = f.coord.Receive(ctx, nil, "p-serial", "wh-2", 1, inventory.MovementContext{Serials: []string{"SN-1"}})
	assert.ErrorIs(t, err, domain.ErrSerialDuplicate)
	assert.Equal(t, 0, f.quantity(t, "p-serial", "wh-2"))
}

func TestPG_AfterCommitSoloTrasConfirmar(t *testing.T) {
	f := newPG(t)
	boom := errors.New("boom")

	ran := false
	err := f.runner.Run(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		tx.AfterCommit(func() { ran = true })
		if err := tx.Stock().Upsert(ctx, &entity.Stock{ProductID: "p-simple", WarehouseID: "wh-1", Quantity: 9}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
	assert.Equal(t, 0, f.quantity(t, "p-simple", "wh-1"))
}

func TestPG_ConciliacionCorrigeTotales(t *testing.T) {
	f := newPG(t)
	_, err := f.coord.Receive(ctxFor(), nil, "p-simple", "wh-1", 3, inventory.MovementContext{})
	require.NoError(t, err)
	_, err = f.pool.Exec(context.Background(), `UPDATE products SET stock = 99 WHERE id = 'p-simple'`)
	require.NoError(t, err)

	report, err := inventory.NewReconciler(f.runner, logger.Nop()).Run(context.Background(), "p-simple", true)
	require.NoError(t, err)
	require.NotEmpty(t, report.Discrepancies)
	assert.Equal(t, inventory.CheckProductTotal, report.Discrepancies[0].Check)

	p, err := postgres.NewProductRepository(f.pool).GetByID(context.Background(), "p-simple")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}
