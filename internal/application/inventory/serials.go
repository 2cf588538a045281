package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// SerialTracker aplica la máquina de estados de las unidades serializadas dentro de una transacción.
// No toca el registro de inventario; eso lo hace el coordinador.
type SerialTracker struct {
	now func() time.Time
}

// NewSerialTracker construye el tracker.
func NewSerialTracker(now func() time.Time) *SerialTracker {
	if now == nil {
		now = time.Now
	}
	return &SerialTracker{now: now}
}

func requireTx(tx repository.Tx, op string) {
	if tx == nil {
		panic(&domain.ProgrammingError{Op: op, Reason: domain.CalledOutsideTransaction})
	}
}

// prepare normaliza, exige exactamente qty series y las ordena para bloquear siempre en el mismo orden.
func (t *SerialTracker) prepare(productID string, qty int, serials []string) ([]string, error) {
	normalized, err := inventory.NormalizeSerials(productID, serials)
	if err != nil {
		return nil, err
	}
	if len(normalized) != qty {
		return nil, &domain.SerialCountMismatchError{ProductID: productID, Required: qty, Provided: len(normalized)}
	}
	sort.Strings(normalized)
	return normalized, nil
}

// Check valida sin modificar que cada serie pueda venderse desde warehouseID. Devuelve todos los errores.
func (t *SerialTracker) Check(ctx context.Context, tx repository.Tx, productID, warehouseID string, qty int, serials []string) []error {
	requireTx(tx, "SerialTracker.Check")
	normalized, err := t.prepare(productID, qty, serials)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, s := range normalized {
		u, err := tx.Serials().GetForUpdate(ctx, productID, s, false)
		if err != nil {
			return append(errs, fmt.Errorf("lock serial: %w", err))
		}
		if u == nil {
			errs = append(errs, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialNotFound})
			continue
		}
		trial := *u
		if _, err := inventory.TransitionSerial(&trial, inventory.SerialSell, warehouseID, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// transition bloquea las unidades, aplica ev sobre copias y solo persiste si todas son válidas.
func (t *SerialTracker) transition(ctx context.Context, tx repository.Tx, productID, warehouseID, saleID string, serials []string, ev inventory.SerialEvent) error {
	units := make([]*entity.SerialUnit, 0, len(serials))
	for _, s := range serials {
		u, err := tx.Serials().GetForUpdate(ctx, productID, s, false)
		if err != nil {
			return fmt.Errorf("lock serial: %w", err)
		}
		if u == nil {
			return &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialNotFound}
		}
		if _, err := inventory.TransitionSerial(u, ev, warehouseID, saleID); err != nil {
			return err
		}
		units = append(units, u)
	}
	for _, u := range units {
		if err := tx.Serials().Update(ctx, u); err != nil {
			return fmt.Errorf("update serial %s: %w", u.SerialNumber, err)
		}
	}
	return nil
}

// Sell marca como vendidas exactamente qty series en warehouseID.
func (t *SerialTracker) Sell(ctx context.Context, tx repository.Tx, productID, warehouseID, saleID string, qty int, serials []string) ([]string, error) {
	requireTx(tx, "SerialTracker.Sell")
	normalized, err := t.prepare(productID, qty, serials)
	if err != nil {
		return nil, err
	}
	if err := t.transition(ctx, tx, productID, warehouseID, saleID, normalized, inventory.SerialSell); err != nil {
		return nil, err
	}
	return normalized, nil
}

// Reserve pasa series de in_stock a reserved.
func (t *SerialTracker) Reserve(ctx context.Context, tx repository.Tx, productID, warehouseID string, serials []string) ([]string, error) {
	requireTx(tx, "SerialTracker.Reserve")
	normalized, err := t.prepare(productID, len(serials), serials)
	if err != nil {
		return nil, err
	}
	if err := t.transition(ctx, tx, productID, warehouseID, "", normalized, inventory.SerialReserve); err != nil {
		return nil, err
	}
	return normalized, nil
}

// Release devuelve series reservadas a in_stock.
func (t *SerialTracker) Release(ctx context.Context, tx repository.Tx, productID, warehouseID string, serials []string) ([]string, error) {
	requireTx(tx, "SerialTracker.Release")
	normalized, err := t.prepare(productID, len(serials), serials)
	if err != nil {
		return nil, err
	}
	if err := t.transition(ctx, tx, productID, warehouseID, "", normalized, inventory.SerialRelease); err != nil {
		return nil, err
	}
	return normalized, nil
}

// Receive da de alta qty series nuevas en in_stock. Rechaza series que ya existan vivas en cualquier producto.
func (t *SerialTracker) Receive(ctx context.Context, tx repository.Tx, productID, warehouseID string, qty int, serials []string, purchaseID string) ([]string, error) {
	requireTx(tx, "SerialTracker.Receive")
	normalized, err := t.prepare(productID, qty, serials)
	if err != nil {
		return nil, err
	}
	for _, s := range normalized {
		existing, err := tx.Serials().FindLive(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("find serial: %w", err)
		}
		if existing != nil {
			return nil, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialDuplicate, Detail: "registrada en " + existing.ProductID}
		}
	}
	for _, s := range normalized {
		u := &entity.SerialUnit{
			SerialNumber: s,
			ProductID:    productID,
			WarehouseID:  warehouseID,
			State:        entity.SerialStateInStock,
			PurchaseID:   purchaseID,
		}
		if err := tx.Serials().Create(ctx, u); err != nil {
			if errors.Is(err, domain.ErrSerialDuplicate) {
				return nil, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialDuplicate}
			}
			return nil, fmt.Errorf("create serial: %w", err)
		}
	}
	return normalized, nil
}

// CancelSale devuelve a in_stock la unidad vendida en saleID, restaurándola si fue eliminada.
// restored=false si no queda unidad vendida en la venta y la viva ya está en stock (reintento).
func (t *SerialTracker) CancelSale(ctx context.Context, tx repository.Tx, productID, saleID, serial string) (restored bool, err error) {
	requireTx(tx, "SerialTracker.CancelSale")
	s := inventory.NormalizeSerial(serial)
	u, err := tx.Serials().GetSoldForUpdate(ctx, productID, s, saleID)
	if err != nil {
		return false, fmt.Errorf("lock serial: %w", err)
	}
	if u == nil {
		live, err := tx.Serials().GetForUpdate(ctx, productID, s, false)
		if err != nil {
			return false, fmt.Errorf("lock serial: %w", err)
		}
		if live == nil {
			return false, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialNotFound, Detail: "sin venta " + saleID}
		}
		// en stock: no-op; vendida en otra venta u otro estado: error de transición
		_, err = inventory.TransitionSerial(live, inventory.SerialCancelSale, "", saleID)
		return false, err
	}
	if _, err := inventory.TransitionSerial(u, inventory.SerialCancelSale, "", saleID); err != nil {
		return false, err
	}
	if err := tx.Serials().Update(ctx, u); err != nil {
		if errors.Is(err, domain.ErrSerialDuplicate) {
			return false, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialDuplicate, Detail: "existe otra unidad viva"}
		}
		return false, fmt.Errorf("update serial: %w", err)
	}
	return true, nil
}

// Move traslada series en stock de un almacén a otro.
func (t *SerialTracker) Move(ctx context.Context, tx repository.Tx, productID, fromWarehouseID, toWarehouseID string, qty int, serials []string) ([]string, error) {
	requireTx(tx, "SerialTracker.Move")
	normalized, err := t.prepare(productID, qty, serials)
	if err != nil {
		return nil, err
	}
	units := make([]*entity.SerialUnit, 0, len(normalized))
	for _, s := range normalized {
		u, err := tx.Serials().GetForUpdate(ctx, productID, s, false)
		if err != nil {
			return nil, fmt.Errorf("lock serial: %w", err)
		}
		if u == nil {
			return nil, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialNotFound}
		}
		trial := *u
		if _, err := inventory.TransitionSerial(&trial, inventory.SerialSell, fromWarehouseID, ""); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	for _, u := range units {
		u.WarehouseID = toWarehouseID
		if err := tx.Serials().Update(ctx, u); err != nil {
			return nil, fmt.Errorf("update serial: %w", err)
		}
	}
	return normalized, nil
}

// Retire elimina lógicamente series en stock (corrección de datos). Nunca se usa en ventas.
func (t *SerialTracker) Retire(ctx context.Context, tx repository.Tx, productID, warehouseID string, serials []string) ([]string, error) {
	requireTx(tx, "SerialTracker.Retire")
	normalized, err := t.prepare(productID, len(serials), serials)
	if err != nil {
		return nil, err
	}
	units := make([]*entity.SerialUnit, 0, len(normalized))
	for _, s := range normalized {
		u, err := tx.Serials().GetForUpdate(ctx, productID, s, false)
		if err != nil {
			return nil, fmt.Errorf("lock serial: %w", err)
		}
		if u == nil {
			return nil, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialNotFound}
		}
		trial := *u
		if _, err := inventory.TransitionSerial(&trial, inventory.SerialSell, warehouseID, ""); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	now := t.now()
	for _, u := range units {
		u.DeletedAt = &now
		if err := tx.Serials().Update(ctx, u); err != nil {
			return nil, fmt.Errorf("retire serial: %w", err)
		}
	}
	return normalized, nil
}
