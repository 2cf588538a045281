package http

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/application/dto"
	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
	"github.com/jhoicas/inventario-core/internal/infrastructure/export"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// InventoryHandler maneja las peticiones HTTP del motor de inventario (protegido).
type InventoryHandler struct {
	coord      *inventory.StockCoordinator
	sales      *inventory.SaleService
	purchases  *inventory.PurchaseService
	reconciler *inventory.Reconciler
	log        *logger.Logger
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(coord *inventory.StockCoordinator, sales *inventory.SaleService, purchases *inventory.PurchaseService, reconciler *inventory.Reconciler, log *logger.Logger) *InventoryHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &InventoryHandler{coord: coord, sales: sales, purchases: purchases, reconciler: reconciler, log: log.Component("http")}
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

// parseAndValidate decodifica el body y valida el DTO. Si devuelve false la respuesta ya se escribió.
func parseAndValidate(c *fiber.Ctx, in any) (bool, error) {
	if err := c.BodyParser(in); err != nil {
		return false, badBody(c)
	}
	if verr := validateBody(in); verr != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(verr)
	}
	return true, nil
}

// RegisterMovement godoc
// @Summary      Registrar movimiento de inventario
// @Description  IN exige unit_cost; ADJUSTMENT acepta cantidad con signo; TRANSFER usa from/to.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "Movimiento"
// @Success      201   {object}  dto.AdjustResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RegisterMovement(c *fiber.Ctx) error {
	var in dto.RegisterMovementRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	res, err := h.coord.RegisterMovementFromRequest(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res.ToDTO())
}

func stockItems(lines []dto.StockLineDTO) []inventory.StockItem {
	out := make([]inventory.StockItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, inventory.StockItem{ProductID: l.ProductID, Quantity: l.Quantity, Serials: l.Serials, ComponentSerials: l.ComponentSerials})
	}
	return out
}

// ValidateStock godoc
// @Summary      Validar existencias de una venta sin descontar
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ValidateStockRequest  true  "Líneas a validar"
// @Success      200   {object}  dto.ValidateStockResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/validate [post]
func (h *InventoryHandler) ValidateStock(c *fiber.Ctx) error {
	var in dto.ValidateStockRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	res, err := h.coord.Validate(c.UserContext(), stockItems(in.Lines), in.WarehouseID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ValidateStockResponse{Valid: res.Valid, Errors: res.Messages()})
}

func (h *InventoryHandler) saleRequest(c *fiber.Ctx, in dto.SaleRequest) inventory.SaleRequest {
	req := inventory.SaleRequest{SaleID: in.SaleID, WarehouseID: in.WarehouseID, ActorID: GetUserID(c), Reason: in.Reason}
	for _, l := range in.Lines {
		req.Lines = append(req.Lines, inventory.SaleLine{ProductID: l.ProductID, Quantity: l.Quantity, Serials: l.Serials, ComponentSerials: l.ComponentSerials})
	}
	return req
}

// RegisterSale godoc
// @Summary      Registrar venta
// @Description  Valida y bloquea todas las líneas; si alguna falla no descuenta nada.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SaleRequest  true  "Venta"
// @Success      201   {object}  dto.AdjustResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/sales [post]
func (h *InventoryHandler) RegisterSale(c *fiber.Ctx) error {
	var in dto.SaleRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	res, err := h.sales.RegisterSale(c.UserContext(), nil, h.saleRequest(c, in))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res.ToDTO())
}

// ReplaceSale godoc
// @Summary      Editar venta
// @Description  Cancela lo descontado por la venta y registra las nuevas líneas en una transacción.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string           true  "ID de la venta"
// @Param        body  body  dto.SaleRequest  true  "Venta"
// @Success      200   {object}  dto.AdjustResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/sales/{id} [put]
func (h *InventoryHandler) ReplaceSale(c *fiber.Ctx) error {
	var in dto.SaleRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	in.SaleID = c.Params("id")
	if verr := validateBody(&in); verr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(verr)
	}
	res, err := h.sales.ReplaceSale(c.UserContext(), nil, h.saleRequest(c, in))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(res.ToDTO())
}

func (h *InventoryHandler) reason(c *fiber.Ctx) (string, error) {
	var in dto.ReasonRequest
	if len(c.Body()) == 0 {
		return "", nil
	}
	if err := c.BodyParser(&in); err != nil {
		return "", err
	}
	return in.Reason, nil
}

// CancelSale godoc
// @Summary      Cancelar venta
// @Description  Devuelve al inventario lo que la venta aún tiene descontado. Es idempotente.
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true   "ID de la venta"
// @Param        body  body  dto.ReasonRequest  false  "Motivo"
// @Success      200   {object}  dto.AdjustResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/sales/{id}/cancel [post]
func (h *InventoryHandler) CancelSale(c *fiber.Ctx) error {
	reason, err := h.reason(c)
	if err != nil {
		return badBody(c)
	}
	res, err := h.sales.CancelSale(c.UserContext(), nil, c.Params("id"), inventory.MovementContext{Reason: reason, ActorID: GetUserID(c)})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(res.ToDTO())
}

// ReceivePurchase godoc
// @Summary      Ingresar compra
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.PurchaseRequest  true  "Compra"
// @Success      201   {object}  dto.AdjustResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/purchases [post]
func (h *InventoryHandler) ReceivePurchase(c *fiber.Ctx) error {
	var in dto.PurchaseRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	req := inventory.PurchaseRequest{PurchaseID: in.PurchaseID, WarehouseID: in.WarehouseID, ActorID: GetUserID(c), Reason: in.Reason}
	for _, l := range in.Lines {
		req.Lines = append(req.Lines, inventory.PurchaseLine{
			ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost,
			LotNumber: l.LotNumber, ExpiryDate: l.ExpiryDate, Serials: l.Serials,
		})
	}
	res, err := h.purchases.ReceivePurchase(c.UserContext(), nil, req)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res.ToDTO())
}

// RevertPurchase godoc
// @Summary      Anular compra
// @Description  Retira lo que la compra aún aporta al inventario. Es idempotente.
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true   "ID de la compra"
// @Param        body  body  dto.ReasonRequest  false  "Motivo"
// @Success      200   {object}  dto.AdjustResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/purchases/{id}/revert [post]
func (h *InventoryHandler) RevertPurchase(c *fiber.Ctx) error {
	reason, err := h.reason(c)
	if err != nil {
		return badBody(c)
	}
	res, err := h.purchases.RevertPurchase(c.UserContext(), nil, c.Params("id"), inventory.MovementContext{Reason: reason, ActorID: GetUserID(c)})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(res.ToDTO())
}

// ReserveSerials godoc
// @Summary      Reservar números de serie
// @Tags         serials
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SerialsRequest  true  "Series"
// @Success      200   {object}  dto.AdjustResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/serials/reserve [post]
func (h *InventoryHandler) ReserveSerials(c *fiber.Ctx) error {
	var in dto.SerialsRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	res, err := h.coord.ReserveSerials(c.UserContext(), nil, in.ProductID, in.WarehouseID, in.Serials, inventory.MovementContext{Reason: in.Reason, ActorID: GetUserID(c)})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(res.ToDTO())
}

// ReleaseSerials godoc
// @Summary      Liberar números de serie reservados
// @Tags         serials
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SerialsRequest  true  "Series"
// @Success      200   {object}  dto.AdjustResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/serials/release [post]
func (h *InventoryHandler) ReleaseSerials(c *fiber.Ctx) error {
	var in dto.SerialsRequest
	if ok, err := parseAndValidate(c, &in); !ok {
		return err
	}
	res, err := h.coord.ReleaseSerials(c.UserContext(), nil, in.ProductID, in.WarehouseID, in.Serials, inventory.MovementContext{Reason: in.Reason, ActorID: GetUserID(c)})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(res.ToDTO())
}

// GetAvailability godoc
// @Summary      Existencias disponibles (consultivo)
// @Description  Lectura sin bloqueo; para un kit devuelve los kits completos armables.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true  "Producto"
// @Param        warehouse_id  query  string  true  "Bodega"
// @Success      200  {object}  dto.AvailabilityResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/availability [get]
func (h *InventoryHandler) GetAvailability(c *fiber.Ctx) error {
	productID, warehouseID := c.Query("product_id"), c.Query("warehouse_id")
	if productID == "" || warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id y warehouse_id son requeridos"})
	}
	qty, err := h.coord.AvailableQuantity(c.UserContext(), productID, warehouseID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.AvailabilityResponse{ProductID: productID, WarehouseID: warehouseID, Available: qty})
}

// GetHistoricalCost godoc
// @Summary      Costo estimado de una salida
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true  "Producto"
// @Param        warehouse_id  query  string  true  "Bodega"
// @Param        quantity      query  int     true  "Cantidad"
// @Success      200  {object}  dto.HistoricalCostResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/cost [get]
func (h *InventoryHandler) GetHistoricalCost(c *fiber.Ctx) error {
	productID, warehouseID := c.Query("product_id"), c.Query("warehouse_id")
	qty := c.QueryInt("quantity", 1)
	if productID == "" || warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id y warehouse_id son requeridos"})
	}
	unit, err := h.coord.HistoricalUnitCost(c.UserContext(), productID, warehouseID, qty)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.HistoricalCostResponse{
		ProductID: productID, WarehouseID: warehouseID, Quantity: qty,
		UnitCost: unit, TotalCost: unit.Mul(decimal.NewFromInt(int64(qty))),
	})
}

// parseRange interpreta from/to (YYYY-MM-DD); to incluye el día completo.
func parseRange(from, to string) (*time.Time, *time.Time, error) {
	var f, t *time.Time
	if from != "" {
		v, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return nil, nil, err
		}
		f = &v
	}
	if to != "" {
		v, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return nil, nil, err
		}
		v = v.Add(24*time.Hour - time.Nanosecond)
		t = &v
	}
	return f, t, nil
}

func movementFilter(c *fiber.Ctx) (dto.MovementQuery, repository.MovementFilter, *dto.ErrorResponse) {
	var q dto.MovementQuery
	if err := c.QueryParser(&q); err != nil {
		return q, repository.MovementFilter{}, &dto.ErrorResponse{Code: "VALIDATION", Message: "parámetros inválidos"}
	}
	q.DefaultPage()
	if verr := validateBody(&q); verr != nil {
		return q, repository.MovementFilter{}, verr
	}
	from, to, err := parseRange(q.From, q.To)
	if err != nil {
		return q, repository.MovementFilter{}, &dto.ErrorResponse{Code: "VALIDATION", Message: "rango de fechas inválido"}
	}
	return q, repository.MovementFilter{
		ProductID: q.ProductID, WarehouseID: q.WarehouseID, Type: q.Type, ActorID: q.ActorID,
		ReferenceType: q.ReferenceType, ReferenceID: q.ReferenceID, From: from, To: to,
		Limit: q.FetchLimit(), Offset: q.Offset,
	}, nil
}

// ListMovements godoc
// @Summary      Historial de movimientos
// @Description  Más reciente primero. Filtros opcionales por producto, bodega, tipo, usuario, referencia y fechas.
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        product_id      query  string  false  "Producto"
// @Param        warehouse_id    query  string  false  "Bodega"
// @Param        type            query  string  false  "entry | exit"
// @Param        user_id         query  string  false  "Usuario"
// @Param        reference_type  query  string  false  "sale, purchase, adjustment, transfer..."
// @Param        reference_id    query  string  false  "ID de la referencia"
// @Param        from            query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to              query  string  false  "Hasta (YYYY-MM-DD)"
// @Param        limit           query  int     false  "Máximo 100"
// @Param        offset          query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.MovementListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	q, filter, verr := movementFilter(c)
	if verr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(verr)
	}
	list, err := h.coord.Ledger().History(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.MovementListResponse{Page: q.Page(len(list))}
	if len(list) > q.Limit {
		list = list[:q.Limit]
	}
	out.Items = make([]dto.MovementDTO, 0, len(list))
	for _, m := range list {
		out.Items = append(out.Items, inventory.MovementToDTO(m))
	}
	return c.JSON(out)
}

// ExportMovements godoc
// @Summary      Exportar historial a Excel
// @Description  Mismos filtros que el historial; sin paginación.
// @Tags         ledger
// @Security     Bearer
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        product_id    query  string  false  "Producto"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Param        from          query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to            query  string  false  "Hasta (YYYY-MM-DD)"
// @Success      200
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/movements/export [get]
func (h *InventoryHandler) ExportMovements(c *fiber.Ctx) error {
	_, filter, verr := movementFilter(c)
	if verr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(verr)
	}
	filter.Limit, filter.Offset = 0, 0
	list, err := h.coord.Ledger().Export(c.UserContext(), filter)
	if err != nil {
		return writeError(c, h.log, err)
	}
	var buf bytes.Buffer
	if err := export.WriteMovements(&buf, list); err != nil {
		return writeError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Attachment("movimientos_" + time.Now().Format("20060102_150405") + ".xlsx")
	return c.Send(buf.Bytes())
}

// GetStats godoc
// @Summary      Totales del libro de movimientos
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        from  query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to    query  string  false  "Hasta (YYYY-MM-DD)"
// @Success      200  {object}  dto.StatsResponse
// @Router       /api/inventory/stats [get]
func (h *InventoryHandler) GetStats(c *fiber.Ctx) error {
	from, to, err := parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "rango de fechas inválido"})
	}
	s, err := h.coord.Ledger().Stats(c.UserContext(), from, to)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.StatsResponse{
		TotalMovements: s.TotalMovements, Entries: s.Entries, Exits: s.Exits,
		UnitsIn: s.UnitsIn, UnitsOut: s.UnitsOut,
	})
}

// MostMovedProducts godoc
// @Summary      Productos con más unidades movidas
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Cantidad (defecto 10)"
// @Success      200  {array}  dto.ProductMovementDTO
// @Router       /api/inventory/reports/most-moved [get]
func (h *InventoryHandler) MostMovedProducts(c *fiber.Ctx) error {
	rows, err := h.coord.Ledger().MostMovedProducts(c.UserContext(), c.QueryInt("limit", 10))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.ProductMovementDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.ProductMovementDTO{ProductID: r.ProductID, ProductName: r.ProductName, Movements: r.Movements, Units: r.Units})
	}
	return c.JSON(out)
}

// MostActiveUsers godoc
// @Summary      Usuarios con más movimientos
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Cantidad (defecto 10)"
// @Success      200  {array}  dto.ActorMovementDTO
// @Router       /api/inventory/reports/most-active [get]
func (h *InventoryHandler) MostActiveUsers(c *fiber.Ctx) error {
	rows, err := h.coord.Ledger().MostActiveUsers(c.UserContext(), c.QueryInt("limit", 10))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.ActorMovementDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.ActorMovementDTO{UserID: r.ActorID, Movements: r.Movements})
	}
	return c.JSON(out)
}

// Reconcile godoc
// @Summary      Conciliar existencias
// @Description  Compara totales por producto, lotes, series y libro. Con fix=true corrige el total del producto.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id  query  string  false  "Producto (vacío = todos)"
// @Param        fix         query  bool    false  "Corregir totales"
// @Success      200  {object}  inventory.ReconcileReport
// @Router       /api/inventory/reconcile [post]
func (h *InventoryHandler) Reconcile(c *fiber.Ctx) error {
	report, err := h.reconciler.Run(c.UserContext(), c.Query("product_id"), c.QueryBool("fix", false))
	if err != nil {
		return writeError(c, h.log, err)
	}
	if len(report.Discrepancies) > 0 {
		h.log.Warn().Int("discrepancies", len(report.Discrepancies)).Int("fixed", report.Fixed).Msg("conciliación con diferencias")
	}
	return c.JSON(report)
}
