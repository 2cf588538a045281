package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// StockItem línea a validar: producto (simple, lote, serie o kit) y cantidad.
type StockItem struct {
	ProductID        string
	Quantity         int
	Serials          []string
	ComponentSerials map[string][]string
}

// ValidationResult resultado de ValidateAndLock. Errors contiene todos los problemas encontrados.
type ValidationResult struct {
	Valid  bool
	Errors []error
}

// Messages mensajes legibles de cada error.
func (r ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// Err nil si la validación pasó; si no, un *domain.ValidationFailedError con todas las causas.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &domain.ValidationFailedError{Errors: r.Errors}
}

// demand cantidad y series requeridas de un producto hoja.
type demand struct {
	product *entity.Product
	kind    inventory.ProductKind
	qty     int
	serials []string
}

// ValidateAndLock bloquea el almacén y los registros de cada producto hoja (en orden de ID)
// y comprueba existencias, lotes y series sin modificar nada. Los bloqueos se mantienen
// hasta que termine la transacción del llamador, por lo que la salida posterior no puede fallar por concurrencia.
func (c *StockCoordinator) ValidateAndLock(ctx context.Context, tx repository.Tx, items []StockItem, warehouseID string) ValidationResult {
	requireTx(tx, "StockCoordinator.ValidateAndLock")

	var errs []error
	fail := func(err error) ValidationResult {
		errs = append(errs, err)
		c.metrics.ValidationFailed(len(errs))
		return ValidationResult{Valid: false, Errors: errs}
	}

	if _, err := c.lockWarehouse(ctx, tx, warehouseID); err != nil {
		return fail(err)
	}

	demands, errs := c.aggregateDemand(ctx, tx, items)
	for _, d := range demands {
		errs = append(errs, c.checkDemand(ctx, tx, d, warehouseID)...)
	}
	if len(errs) > 0 {
		c.metrics.ValidationFailed(len(errs))
		return ValidationResult{Valid: false, Errors: errs}
	}
	return ValidationResult{Valid: true}
}

// Validate ejecuta ValidateAndLock en una transacción propia. Sirve para comprobar una venta
// antes de registrarla; los bloqueos se liberan al terminar.
func (c *StockCoordinator) Validate(ctx context.Context, items []StockItem, warehouseID string) (ValidationResult, error) {
	var res ValidationResult
	err := c.within(ctx, nil, false, "Validate", func(ctx context.Context, tx repository.Tx) error {
		res = c.ValidateAndLock(ctx, tx, items, warehouseID)
		return nil
	})
	return res, err
}

// aggregateDemand expande kits y acumula la demanda por producto hoja, ordenada por ID.
func (c *StockCoordinator) aggregateDemand(ctx context.Context, tx repository.Tx, items []StockItem) ([]*demand, []error) {
	var errs []error
	byID := map[string]*demand{}
	add := func(p *entity.Product, kind inventory.ProductKind, qty int, serials []string) {
		d, ok := byID[p.ID]
		if !ok {
			d = &demand{product: p, kind: kind}
			byID[p.ID] = d
		}
		d.qty += qty
		d.serials = append(d.serials, serials...)
	}

	for _, it := range items {
		if it.Quantity <= 0 {
			errs = append(errs, fmt.Errorf("producto %s cantidad %d: %w", it.ProductID, it.Quantity, domain.ErrInvalidInput))
			continue
		}
		product, kind, err := c.resolve(ctx, tx, it.ProductID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !product.Active {
			errs = append(errs, fmt.Errorf("producto %s: %w", product.SKU, domain.ErrProductInactive))
			continue
		}
		switch kind.(type) {
		case inventory.ServiceKind:
			continue
		case inventory.KitKind:
			needs, err := c.expandLeaves(ctx, tx, product, it.Quantity)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, n := range needs {
				if !n.Product.Active {
					errs = append(errs, fmt.Errorf("componente %s del kit %s: %w", n.Product.SKU, product.SKU, domain.ErrProductInactive))
					continue
				}
				add(n.Product, inventory.KindOf(n.Product, nil), n.Quantity, it.ComponentSerials[n.Product.ID])
			}
		default:
			add(product, kind, it.Quantity, it.Serials)
		}
	}

	out := make([]*demand, 0, len(byID))
	for _, d := range byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].product.ID < out[j].product.ID })
	return out, errs
}

func (c *StockCoordinator) checkDemand(ctx context.Context, tx repository.Tx, d *demand, warehouseID string) []error {
	stock, err := tx.Stock().GetForUpdate(ctx, d.product.ID, warehouseID)
	if err != nil {
		return []error{fmt.Errorf("lock stock: %w", err)}
	}
	available := 0
	if stock != nil {
		available = stock.Quantity
	}
	if available < d.qty {
		c.metrics.InsufficientStock(inventory.KindName(d.kind))
		return []error{&domain.InsufficientStockError{ProductID: d.product.ID, WarehouseID: warehouseID, Available: available, Requested: d.qty}}
	}

	switch d.kind.(type) {
	case inventory.SerializedKind:
		return c.serials.Check(ctx, tx, d.product.ID, warehouseID, d.qty, d.serials)
	case inventory.LottedKind:
		inLots, err := c.lots.Available(ctx, tx, d.product.ID, warehouseID)
		if err != nil {
			return []error{err}
		}
		if inLots < d.qty {
			c.metrics.InsufficientStock(inventory.KindName(d.kind))
			return []error{&domain.InsufficientStockError{
				ProductID: d.product.ID, WarehouseID: warehouseID,
				Available: inLots, Requested: d.qty, Cause: domain.ErrLotExhausted,
			}}
		}
	}
	return nil
}
