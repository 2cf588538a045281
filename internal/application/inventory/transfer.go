package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// Transfer mueve qty unidades de un almacén a otro. Los lotes viajan conservando número,
// costo y caducidad; las series listadas cambian de almacén sin cambiar de estado.
func (c *StockCoordinator) Transfer(ctx context.Context, tx repository.Tx, productID, fromWarehouseID, toWarehouseID string, qty int, mc MovementContext) (*AdjustResult, error) {
	if productID == "" || fromWarehouseID == "" || toWarehouseID == "" || fromWarehouseID == toWarehouseID || qty <= 0 {
		return nil, fmt.Errorf("traslado %s x%d: %w", productID, qty, domain.ErrInvalidInput)
	}
	if mc.ReferenceType == "" {
		mc.ReferenceType = entity.ReferenceTransfer
	}
	if mc.Reason == "" {
		mc.Reason = "Traslado entre almacenes"
	}
	mc = c.prepare(ctx, mc)
	mc.Details = withDetail(withDetail(mc.Details, "from_warehouse_id", fromWarehouseID), "to_warehouse_id", toWarehouseID)
	res := &AdjustResult{TransactionID: mc.TransactionID}

	err := c.within(ctx, tx, mc.SkipTransaction, "Transfer", func(ctx context.Context, tx repository.Tx) error {
		product, kind, err := c.leafOf(ctx, tx, productID)
		if err != nil {
			return err
		}

		// ambos almacenes y ambos registros en orden de ID
		first, second := fromWarehouseID, toWarehouseID
		if second < first {
			first, second = second, first
		}
		for _, id := range []string{first, second} {
			if _, err := c.lockWarehouse(ctx, tx, id); err != nil {
				return err
			}
		}
		for _, id := range []string{first, second} {
			if _, err := c.lockStock(ctx, tx, product.ID, id); err != nil {
				return err
			}
		}

		out := mc
		out.WarehouseID = fromWarehouseID
		exit, err := c.applyLeaf(ctx, tx, product, kind, DirectionOut, qty, out, func(ctx context.Context, tx repository.Tx, wh *entity.Warehouse) (leafChange, error) {
			switch kind.(type) {
			case inventory.LottedKind:
				draws, err := c.lots.ConsumeFIFO(ctx, tx, product.ID, wh.ID, qty)
				return leafChange{qty: qty, draws: draws}, err
			case inventory.SerializedKind:
				serials, err := c.serials.Move(ctx, tx, product.ID, wh.ID, toWarehouseID, qty, mc.Serials)
				return leafChange{qty: qty, serials: serials, unitCost: product.PurchaseCost}, err
			}
			return leafChange{qty: qty, unitCost: product.PurchaseCost}, nil
		})
		if err != nil {
			return err
		}

		in := mc
		in.WarehouseID = toWarehouseID
		entry, err := c.applyLeaf(ctx, tx, product, kind, DirectionIn, qty, in, func(ctx context.Context, tx repository.Tx, wh *entity.Warehouse) (leafChange, error) {
			if _, lotted := kind.(inventory.LottedKind); !lotted {
				return leafChange{qty: exit.Quantity, serials: exit.Serials, unitCost: exit.UnitCost}, nil
			}
			draws := make([]inventory.LotDraw, 0, len(exit.LotDraws))
			for _, d := range exit.LotDraws {
				lot, err := c.lots.ReceiveLot(ctx, tx, product.ID, wh.ID, d.LotNumber, d.Quantity, d.UnitCost, d.ExpiryDate)
				if err != nil {
					return leafChange{}, err
				}
				draws = append(draws, inventory.LotDraw{LotID: lot.ID, LotNumber: lot.LotNumber, Quantity: d.Quantity, UnitCost: d.UnitCost, ExpiryDate: lot.ExpiryDate})
			}
			return leafChange{qty: exit.Quantity, draws: draws}, nil
		})
		if err != nil {
			return err
		}
		res.Lines = append(res.Lines, *exit, *entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReserveSerials aparta series en stock. Las unidades reservadas salen del registro de inventario
// para que el registro siga coincidiendo con las series en stock.
func (c *StockCoordinator) ReserveSerials(ctx context.Context, tx repository.Tx, productID, warehouseID string, serials []string, mc MovementContext) (*AdjustResult, error) {
	return c.reservation(ctx, tx, productID, warehouseID, serials, mc, DirectionOut)
}

// ReleaseSerials devuelve series reservadas al stock.
func (c *StockCoordinator) ReleaseSerials(ctx context.Context, tx repository.Tx, productID, warehouseID string, serials []string, mc MovementContext) (*AdjustResult, error) {
	return c.reservation(ctx, tx, productID, warehouseID, serials, mc, DirectionIn)
}

func (c *StockCoordinator) reservation(ctx context.Context, tx repository.Tx, productID, warehouseID string, serials []string, mc MovementContext, dir Direction) (*AdjustResult, error) {
	if productID == "" || warehouseID == "" || len(serials) == 0 {
		return nil, fmt.Errorf("reserva de series: %w", domain.ErrInvalidInput)
	}
	if mc.ReferenceType == "" {
		mc.ReferenceType = entity.ReferenceReservation
	}
	if mc.Reason == "" {
		mc.Reason = "Reserva de series"
		if dir == DirectionIn {
			mc.Reason = "Liberación de series"
		}
	}
	mc.WarehouseID = warehouseID
	mc = c.prepare(ctx, mc)
	res := &AdjustResult{TransactionID: mc.TransactionID}

	err := c.within(ctx, tx, mc.SkipTransaction, "ReserveSerials", func(ctx context.Context, tx repository.Tx) error {
		product, kind, err := c.leafOf(ctx, tx, productID)
		if err != nil {
			return err
		}
		if _, ok := kind.(inventory.SerializedKind); !ok {
			return fmt.Errorf("producto %s no es serializado: %w", product.SKU, domain.ErrInvalidInput)
		}
		line, err := c.applyLeaf(ctx, tx, product, kind, dir, len(serials), mc, func(ctx context.Context, tx repository.Tx, wh *entity.Warehouse) (leafChange, error) {
			var (
				done []string
				err  error
			)
			if dir == DirectionOut {
				done, err = c.serials.Reserve(ctx, tx, product.ID, wh.ID, serials)
			} else {
				done, err = c.serials.Release(ctx, tx, product.ID, wh.ID, serials)
			}
			return leafChange{qty: len(done), serials: done, unitCost: product.PurchaseCost}, err
		})
		if err != nil {
			return err
		}
		res.Lines = append(res.Lines, *line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
