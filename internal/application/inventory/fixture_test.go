package inventory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
	"github.com/jhoicas/inventario-core/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	whMain     = "wh-1"
	whSecond   = "wh-2"
	whInactive = "wh-9"

	pSimple = "p-simple"
	pLot    = "p-lot"
	pSerial = "p-serial"
	pX      = "p-x"
	pY      = "p-y"
	pSvc    = "p-svc"
	pKit    = "k-1"
)

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

type metricsSpy struct {
	mu           sync.Mutex
	movements    int
	insufficient int
	fallbacks    int
	validations  int
}

func (m *metricsSpy) MovementRecorded(string, string, int) { m.inc(&m.movements) }
func (m *metricsSpy) InsufficientStock(string)             { m.inc(&m.insufficient) }
func (m *metricsSpy) CostFallback(string, int)             { m.inc(&m.fallbacks) }
func (m *metricsSpy) ValidationFailed(int)                 { m.inc(&m.validations) }
func (m *metricsSpy) TxCompleted(string, error)            {}

func (m *metricsSpy) inc(n *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*n++
}

type fixture struct {
	store     *memory.Store
	coord     *inventory.StockCoordinator
	sales     *inventory.SaleService
	purchases *inventory.PurchaseService
	metrics   *metricsSpy
}

// newFixture arma un catálogo con un producto de cada tipo y el kit K = 2X + 1Y.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.SetClock(func() time.Time { return testNow })

	store.AddWarehouse(entity.Warehouse{ID: whMain, Name: "Principal", Active: true})
	store.AddWarehouse(entity.Warehouse{ID: whSecond, Name: "Sucursal", Active: true})
	store.AddWarehouse(entity.Warehouse{ID: whInactive, Name: "Cerrado", Active: false})

	cost := decimal.NewFromInt(10)
	store.AddProduct(entity.Product{ID: pSimple, SKU: "SIM-1", Name: "Simple", Active: true, PurchaseCost: cost})
	store.AddProduct(entity.Product{ID: pLot, SKU: "LOT-1", Name: "Con lote", Active: true, HandlesLots: true, PurchaseCost: cost})
	store.AddProduct(entity.Product{ID: pSerial, SKU: "SER-1", Name: "Serializado", Active: true, RequiresSerial: true, PurchaseCost: cost})
	store.AddProduct(entity.Product{ID: pX, SKU: "X", Name: "Componente X", Active: true, PurchaseCost: decimal.NewFromInt(3)})
	store.AddProduct(entity.Product{ID: pY, SKU: "Y", Name: "Componente Y", Active: true, PurchaseCost: decimal.NewFromInt(5)})
	store.AddProduct(entity.Product{ID: pSvc, SKU: "SVC", Name: "Instalación", Active: true, IsService: true})
	store.AddProduct(entity.Product{ID: pKit, SKU: "KIT-1", Name: "Kit", Active: true, IsKit: true})
	store.SetKitComponents(pKit,
		entity.KitComponent{ComponentProductID: pX, Multiplier: 2},
		entity.KitComponent{ComponentProductID: pY, Multiplier: 1},
	)

	metrics := &metricsSpy{}
	coord := inventory.NewStockCoordinator(store, readRepos(store), logger.Nop(),
		inventory.WithMetrics(metrics),
		inventory.WithClock(func() time.Time { return testNow }),
	)
	return &fixture{
		store:     store,
		coord:     coord,
		sales:     inventory.NewSaleService(coord),
		purchases: inventory.NewPurchaseService(coord),
		metrics:   metrics,
	}
}

func readRepos(s *memory.Store) inventory.ReadRepositories {
	return inventory.ReadRepositories{
		Products:   s.Products(),
		Warehouses: s.Warehouses(),
		Kits:       s.Kits(),
		Stock:      s.Stock(),
		Lots:       s.Lots(),
		Movements:  s.Movements(),
	}
}

func ctxFor() context.Context {
	return inventory.WithActor(context.Background(), "user-1")
}

func day(n int) *time.Time {
	d := testNow.AddDate(0, 0, n)
	return &d
}

func (f *fixture) receive(t *testing.T, productID, warehouseID string, qty int, mc inventory.MovementContext) {
	t.Helper()
	_, err := f.coord.Receive(ctxFor(), nil, productID, warehouseID, qty, mc)
	require.NoError(t, err)
}

func (f *fixture) receiveLot(t *testing.T, warehouseID, lotNumber string, qty int, cost int64, expiry *time.Time) {
	t.Helper()
	c := decimal.NewFromInt(cost)
	f.receive(t, pLot, warehouseID, qty, inventory.MovementContext{LotNumber: lotNumber, ExpiryDate: expiry, UnitCost: &c})
}

func (f *fixture) stock(t *testing.T, productID, warehouseID string) int {
	t.Helper()
	s, err := f.store.Stock().Get(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return s.Quantity
}

func (f *fixture) product(t *testing.T, productID string) *entity.Product {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) lot(t *testing.T, warehouseID, lotNumber string) *entity.Lot {
	t.Helper()
	var out *entity.Lot
	err := f.store.Run(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		l, err := tx.Lots().GetByNumberForUpdate(ctx, pLot, warehouseID, lotNumber)
		out = l
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, out, "lote %s", lotNumber)
	return out
}

func (f *fixture) serial(t *testing.T, serial string) *entity.SerialUnit {
	t.Helper()
	var out *entity.SerialUnit
	err := f.store.Run(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.Serials().GetForUpdate(ctx, pSerial, serial, true)
		out = u
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, out, "serie %s", serial)
	return out
}

func (f *fixture) movements(t *testing.T) []*entity.InventoryMovement {
	t.Helper()
	list, err := f.store.Movements().List(context.Background(), repository.MovementFilter{})
	require.NoError(t, err)
	return list
}

// requireProgrammingError ejecuta fn y exige que entre en pánico con *domain.ProgrammingError.
func requireProgrammingError(t *testing.T, fn func()) (pe *domain.ProgrammingError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "se esperaba pánico")
		err, ok := r.(error)
		require.True(t, ok, "pánico sin error: %v", r)
		require.ErrorAs(t, err, &pe)
		require.Contains(t, pe.Error(), fmt.Sprintf("error de programación en %s", pe.Op))
	}()
	fn()
	return nil
}
