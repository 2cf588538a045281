package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/pkg/jwt"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Coordinator *inventory.StockCoordinator
	Sales       *inventory.SaleService
	Purchases   *inventory.PurchaseService
	Reconciler  *inventory.Reconciler
	Log         *logger.Logger
	Auth        *jwt.Signer
	// MetricsHandler se expone sin autenticación en MetricsPath; nil lo desactiva.
	MetricsHandler http.Handler
	MetricsPath    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(deps.MetricsHandler))
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	inv := api.Group("/inventory", AuthMiddleware(deps.Auth))
	h := NewInventoryHandler(deps.Coordinator, deps.Sales, deps.Purchases, deps.Reconciler, deps.Log)

	stockRoles := RequireRole(RoleAdmin, RoleBodeguero)
	saleRoles := RequireRole(RoleAdmin, RoleVendedor)
	anyRole := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor)

	// Movimientos y libro
	inv.Post("/movements", stockRoles, h.RegisterMovement)
	inv.Get("/movements", anyRole, h.ListMovements)
	inv.Get("/movements/export", stockRoles, h.ExportMovements)
	inv.Get("/stats", anyRole, h.GetStats)
	inv.Get("/reports/most-moved", anyRole, h.MostMovedProducts)
	inv.Get("/reports/most-active", RequireRole(RoleAdmin), h.MostActiveUsers)

	// Consultas
	inv.Get("/availability", anyRole, h.GetAvailability)
	inv.Get("/cost", anyRole, h.GetHistoricalCost)
	inv.Post("/validate", anyRole, h.ValidateStock)

	// Ventas
	inv.Post("/sales", saleRoles, h.RegisterSale)
	inv.Put("/sales/:id", saleRoles, h.ReplaceSale)
	inv.Post("/sales/:id/cancel", saleRoles, h.CancelSale)

	// Compras
	inv.Post("/purchases", stockRoles, h.ReceivePurchase)
	inv.Post("/purchases/:id/revert", stockRoles, h.RevertPurchase)

	// Series
	inv.Post("/serials/reserve", anyRole, h.ReserveSerials)
	inv.Post("/serials/release", anyRole, h.ReleaseSerials)

	inv.Post("/reconcile", RequireRole(RoleAdmin), h.Reconcile)
}
