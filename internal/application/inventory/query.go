package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
)

// AvailableQuantity lectura consultiva sin bloqueo (puede estar desactualizada).
// Para un kit es la cantidad de kits completos que se pueden armar con sus componentes.
func (c *StockCoordinator) AvailableQuantity(ctx context.Context, productID, warehouseID string) (int, error) {
	if qty, ok := c.cache.Get(ctx, productID, warehouseID); ok {
		return qty, nil
	}
	product, err := c.read.Products.GetByID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return 0, fmt.Errorf("producto %s: %w", productID, domain.ErrProductNotFound)
	}

	var qty int
	switch {
	case product.IsService:
		return 0, nil
	case product.IsKit:
		needs, err := inventory.NewKitResolver(c.read.Products, c.read.Kits, c.maxKitDepth).Expand(ctx, product.ID, 1)
		if err != nil {
			return 0, err
		}
		qty = -1
		for _, n := range needs {
			s, err := c.read.Stock.Get(ctx, n.Product.ID, warehouseID)
			if err != nil {
				return 0, fmt.Errorf("get stock: %w", err)
			}
			kits := max(s.Quantity, 0) / n.Quantity
			if qty < 0 || kits < qty {
				qty = kits
			}
		}
		if qty < 0 {
			qty = 0
		}
		// el caché de kits no se invalida al mover componentes
		return qty, nil
	default:
		s, err := c.read.Stock.Get(ctx, product.ID, warehouseID)
		if err != nil {
			return 0, fmt.Errorf("get stock: %w", err)
		}
		qty = s.Quantity
	}
	c.cache.Set(ctx, productID, warehouseID, qty)
	return qty, nil
}

// HistoricalUnitCost costo unitario estimado de sacar qty unidades: FIFO por lotes, suma de
// componentes para kits y costo de compra para el resto.
func (c *StockCoordinator) HistoricalUnitCost(ctx context.Context, productID, warehouseID string, qty int) (decimal.Decimal, error) {
	if qty <= 0 {
		return decimal.Zero, fmt.Errorf("cantidad %d: %w", qty, domain.ErrInvalidInput)
	}
	product, err := c.read.Products.GetByID(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return decimal.Zero, fmt.Errorf("producto %s: %w", productID, domain.ErrProductNotFound)
	}

	switch inventory.KindOf(product, nil).(type) {
	case inventory.LottedKind:
		preview, err := c.lots.HistoricalCost(ctx, product.ID, warehouseID, qty)
		if err != nil {
			return decimal.Zero, err
		}
		return preview.UnitCost, nil
	case inventory.KitKind:
		needs, err := inventory.NewKitResolver(c.read.Products, c.read.Kits, c.maxKitDepth).Expand(ctx, product.ID, qty)
		if err != nil {
			return decimal.Zero, err
		}
		total := decimal.Zero
		for _, n := range needs {
			unit, err := c.HistoricalUnitCost(ctx, n.Product.ID, warehouseID, n.Quantity)
			if err != nil {
				return decimal.Zero, err
			}
			total = total.Add(unit.Mul(decimal.NewFromInt(int64(n.Quantity))))
		}
		return total.Div(decimal.NewFromInt(int64(qty))), nil
	}
	return product.PurchaseCost, nil
}
