package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/internal/application/dto"
	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-core/internal/infrastructure/metrics"
	apphttp "github.com/jhoicas/inventario-core/internal/interfaces/http"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// buildInventoryApp arma la API completa sobre el almacén en memoria.
func buildInventoryApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddWarehouse(entity.Warehouse{ID: "wh-1", Name: "Principal", Active: true})
	store.AddProduct(entity.Product{ID: "p-1", SKU: "SIM-1", Name: "Simple", Active: true, PurchaseCost: decimal.NewFromInt(10)})
	store.AddProduct(entity.Product{ID: "p-ser", SKU: "SER-1", Name: "Serializado", Active: true, RequiresSerial: true, PurchaseCost: decimal.NewFromInt(50)})

	read := inventory.ReadRepositories{
		Products: store.Products(), Warehouses: store.Warehouses(), Kits: store.Kits(),
		Stock: store.Stock(), Lots: store.Lots(), Movements: store.Movements(),
	}
	m := metrics.New(false)
	coord := inventory.NewStockCoordinator(store, read, logger.Nop(), inventory.WithMetrics(m))

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Coordinator:    coord,
		Sales:          inventory.NewSaleService(coord),
		Purchases:      inventory.NewPurchaseService(coord),
		Reconciler:     inventory.NewReconciler(store, logger.Nop()),
		Log:            logger.Nop(),
		Auth:           testSigner(t, time.Hour),
		MetricsHandler: m.Handler(),
	})
	return app, store
}

func call(t *testing.T, app *fiber.App, method, path, role string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func purchase(t *testing.T, app *fiber.App) {
	t.Helper()
	resp, body := call(t, app, http.MethodPost, "/api/inventory/purchases", "bodeguero", dto.PurchaseRequest{
		PurchaseID: "C-1", WarehouseID: "wh-1",
		Lines: []dto.PurchaseLineDTO{
			{ProductID: "p-1", Quantity: 5, UnitCost: decimal.NewFromInt(10)},
			{ProductID: "p-ser", Quantity: 2, UnitCost: decimal.NewFromInt(50), Serials: []string{"S1", "S2"}},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
}

func TestInventoryAPI_CompraVentaYCancelacion(t *testing.T) {
	app, _ := buildInventoryApp(t)
	purchase(t, app)

	resp, body := call(t, app, http.MethodPost, "/api/inventory/sales", "vendedor", dto.SaleRequest{
		SaleID: "V-1", WarehouseID: "wh-1",
		Lines: []dto.StockLineDTO{
			{ProductID: "p-1", Quantity: 3},
			{ProductID: "p-ser", Quantity: 1, Serials: []string{"S2"}},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var sale dto.AdjustResponse
	require.NoError(t, json.Unmarshal(body, &sale))
	assert.Len(t, sale.Lines, 2)
	// 3*10 + 1*50
	assert.True(t, decimal.NewFromInt(80).Equal(sale.TotalCost), sale.TotalCost.String())

	resp, body = call(t, app, http.MethodGet, "/api/inventory/availability?product_id=p-1&warehouse_id=wh-1", "vendedor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var av dto.AvailabilityResponse
	require.NoError(t, json.Unmarshal(body, &av))
	assert.Equal(t, 2, av.Available)

	resp, _ = call(t, app, http.MethodPost, "/api/inventory/sales/V-1/cancel", "vendedor", dto.ReasonRequest{Reason: "cliente desistió"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = call(t, app, http.MethodPost, "/api/inventory/sales/V-1/cancel", "vendedor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again dto.AdjustResponse
	require.NoError(t, json.Unmarshal(body, &again))
	assert.Empty(t, again.Lines, "la segunda cancelación no mueve nada")

	_, body = call(t, app, http.MethodGet, "/api/inventory/availability?product_id=p-1&warehouse_id=wh-1", "admin", nil)
	require.NoError(t, json.Unmarshal(body, &av))
	assert.Equal(t, 5, av.Available)
}

func TestInventoryAPI_VentaSinExistenciasDevuelveTodosLosErrores(t *testing.T) {
	app, _ := buildInventoryApp(t)
	purchase(t, app)

	resp, body := call(t, app, http.MethodPost, "/api/inventory/sales", "vendedor", dto.SaleRequest{
		SaleID: "V-2", WarehouseID: "wh-1",
		Lines: []dto.StockLineDTO{
			{ProductID: "p-1", Quantity: 9},
			{ProductID: "p-ser", Quantity: 1, Serials: []string{"NO-EXISTE"}},
		},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "VALIDATION_FAILED", e.Code)
	assert.Len(t, e.Details, 2)
}

func TestInventoryAPI_ValidarNoDescuenta(t *testing.T) {
	app, _ := buildInventoryApp(t)
	purchase(t, app)

	resp, body := call(t, app, http.MethodPost, "/api/inventory/validate", "vendedor", dto.ValidateStockRequest{
		WarehouseID: "wh-1",
		Lines:       []dto.StockLineDTO{{ProductID: "p-1", Quantity: 6}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v dto.ValidateStockResponse
	require.NoError(t, json.Unmarshal(body, &v))
	assert.False(t, v.Valid)
	assert.Len(t, v.Errors, 1)

	_, body = call(t, app, http.MethodPost, "/api/inventory/validate", "vendedor", dto.ValidateStockRequest{
		WarehouseID: "wh-1",
		Lines:       []dto.StockLineDTO{{ProductID: "p-1", Quantity: 5}},
	})
	require.NoError(t, json.Unmarshal(body, &v))
	assert.True(t, v.Valid)
}

func TestInventoryAPI_BodyInvalido(t *testing.T) {
	app, _ := buildInventoryApp(t)

	resp, body := call(t, app, http.MethodPost, "/api/inventory/movements", "admin", dto.RegisterMovementRequest{Type: "OTRO"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "VALIDATION", e.Code)
	assert.NotEmpty(t, e.Details)

	cost := decimal.NewFromInt(1)
	resp, body = call(t, app, http.MethodPost, "/api/inventory/movements", "admin", dto.RegisterMovementRequest{
		ProductID: "no-existe", WarehouseID: "wh-1", Type: "IN", Quantity: 1, UnitCost: &cost,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}

func TestInventoryAPI_RolVendedorNoRegistraCompras(t *testing.T) {
	app, _ := buildInventoryApp(t)
	resp, _ := call(t, app, http.MethodPost, "/api/inventory/purchases", "vendedor", dto.PurchaseRequest{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/api/inventory/reconcile", "bodeguero", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInventoryAPI_HistorialAtribuyeUsuario(t *testing.T) {
	app, _ := buildInventoryApp(t)
	purchase(t, app)

	resp, body := call(t, app, http.MethodGet, "/api/inventory/movements?product_id=p-1&limit=10", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, testUserID, list.Items[0].UserID)
	assert.Equal(t, "entry", list.Items[0].Type)
	assert.Equal(t, "Principal", list.Items[0].WarehouseName)

	resp, _ = call(t, app, http.MethodGet, "/api/inventory/movements?from=ayer", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInventoryAPI_ConciliacionYMetricas(t *testing.T) {
	app, _ := buildInventoryApp(t)
	purchase(t, app)

	resp, body := call(t, app, http.MethodPost, "/api/inventory/reconcile", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var report inventory.ReconcileReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Empty(t, report.Discrepancies)
	assert.Positive(t, report.ProductsChecked)

	resp, body = call(t, app, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "inventory_movements_total")
}

func TestInventoryAPI_ExportarHistorial(t *testing.T) {
	app, _ := buildInventoryApp(t)
	purchase(t, app)

	resp, body := call(t, app, http.MethodGet, "/api/inventory/movements/export?warehouse_id=wh-1", "bodeguero", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
	// los xlsx son zip
	assert.Equal(t, []byte("PK"), body[:2])
}

func TestInventoryAPI_HistorialPaginado(t *testing.T) {
	app, _ := buildInventoryApp(t)
	purchase(t, app)

	// la compra deja una entrada por línea
	_, body := call(t, app, http.MethodGet, "/api/inventory/movements?limit=1", "admin", nil)
	var first dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &first))
	require.Len(t, first.Items, 1)
	assert.True(t, first.Page.HasMore)
	assert.Equal(t, 1, first.Page.NextOffset)

	_, body = call(t, app, http.MethodGet, "/api/inventory/movements?limit=100", "admin", nil)
	var all dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &all))
	assert.False(t, all.Page.HasMore)
	assert.Zero(t, all.Page.NextOffset)
}
