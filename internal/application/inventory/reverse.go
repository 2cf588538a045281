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

// Reverse deshace líneas ya aplicadas. Una salida se devuelve a los mismos lotes de los que salió
// y sus series vuelven a in_stock; una entrada se retira de los lotes que creó y sus series se
// eliminan lógicamente. Las series ya restauradas no vuelven a sumar al registro.
func (c *StockCoordinator) Reverse(ctx context.Context, tx repository.Tx, lines []AdjustedLine, mc MovementContext) (*AdjustResult, error) {
	mc = c.prepare(ctx, mc)
	res := &AdjustResult{TransactionID: mc.TransactionID}
	ordered := append([]AdjustedLine(nil), lines...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].WarehouseID != ordered[j].WarehouseID {
			return ordered[i].WarehouseID < ordered[j].WarehouseID
		}
		return ordered[i].ProductID < ordered[j].ProductID
	})

	err := c.within(ctx, tx, mc.SkipTransaction, "Reverse", func(ctx context.Context, tx repository.Tx) error {
		for _, line := range ordered {
			var (
				out *AdjustedLine
				err error
			)
			if line.Direction == DirectionOut {
				out, err = c.restoreLine(ctx, tx, line, mc)
			} else {
				out, err = c.takeBackLine(ctx, tx, line, mc)
			}
			if err != nil {
				return err
			}
			if out != nil {
				res.Lines = append(res.Lines, *out)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *StockCoordinator) leafOf(ctx context.Context, tx repository.Tx, productID string) (*entity.Product, inventory.ProductKind, error) {
	product, kind, err := c.resolve(ctx, tx, productID)
	if err != nil {
		return nil, nil, err
	}
	switch kind.(type) {
	case inventory.KitKind, inventory.ServiceKind:
		return nil, nil, fmt.Errorf("producto %s sin existencias propias: %w", product.SKU, domain.ErrInvalidInput)
	}
	return product, kind, nil
}

// restoreLine devuelve una salida.
func (c *StockCoordinator) restoreLine(ctx context.Context, tx repository.Tx, line AdjustedLine, mc MovementContext) (*AdjustedLine, error) {
	product, kind, err := c.leafOf(ctx, tx, line.ProductID)
	if err != nil {
		return nil, err
	}
	mc.WarehouseID = line.WarehouseID
	mutate := func(ctx context.Context, tx repository.Tx, _ *entity.Warehouse) (leafChange, error) {
		switch kind.(type) {
		case inventory.LottedKind:
			if len(line.LotDraws) == 0 {
				break
			}
			if err := c.lots.RestoreDraws(ctx, tx, line.LotDraws); err != nil {
				return leafChange{}, err
			}
			return leafChange{qty: drawsQuantity(line.LotDraws), draws: sortedDraws(line.LotDraws)}, nil
		case inventory.SerializedKind:
			restored := make([]string, 0, len(line.Serials))
			for _, s := range line.Serials {
				ok, err := c.serials.CancelSale(ctx, tx, product.ID, mc.SaleID, s)
				if err != nil {
					return leafChange{}, err
				}
				if ok {
					restored = append(restored, s)
				}
			}
			return leafChange{qty: len(restored), serials: restored, unitCost: line.UnitCost}, nil
		}
		return leafChange{qty: line.Quantity, unitCost: line.UnitCost}, nil
	}
	return c.applyLeaf(ctx, tx, product, kind, DirectionIn, line.Quantity, mc, mutate)
}

// takeBackLine retira una entrada.
func (c *StockCoordinator) takeBackLine(ctx context.Context, tx repository.Tx, line AdjustedLine, mc MovementContext) (*AdjustedLine, error) {
	product, kind, err := c.leafOf(ctx, tx, line.ProductID)
	if err != nil {
		return nil, err
	}
	mc.WarehouseID = line.WarehouseID
	mutate := func(ctx context.Context, tx repository.Tx, wh *entity.Warehouse) (leafChange, error) {
		switch kind.(type) {
		case inventory.LottedKind:
			if len(line.LotDraws) == 0 {
				break
			}
			if err := c.lots.TakeFromLots(ctx, tx, product.ID, wh.ID, line.LotDraws); err != nil {
				return leafChange{}, err
			}
			return leafChange{qty: drawsQuantity(line.LotDraws), draws: sortedDraws(line.LotDraws)}, nil
		case inventory.SerializedKind:
			retired, err := c.serials.Retire(ctx, tx, product.ID, wh.ID, line.Serials)
			if err != nil {
				return leafChange{}, err
			}
			return leafChange{qty: len(retired), serials: retired, unitCost: line.UnitCost}, nil
		}
		return leafChange{qty: line.Quantity, unitCost: line.UnitCost}, nil
	}
	return c.applyLeaf(ctx, tx, product, kind, DirectionOut, line.Quantity, mc, mutate)
}

func drawsQuantity(draws []inventory.LotDraw) int {
	n := 0
	for _, d := range draws {
		n += d.Quantity
	}
	return n
}
