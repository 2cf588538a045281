package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// PurchaseLine línea de compra recibida.
type PurchaseLine struct {
	ProductID  string
	Quantity   int
	UnitCost   decimal.Decimal
	LotNumber  string
	ExpiryDate *time.Time
	Serials    []string
}

// PurchaseRequest compra a ingresar en un almacén.
type PurchaseRequest struct {
	PurchaseID  string
	WarehouseID string
	ActorID     string
	Reason      string
	Lines       []PurchaseLine
}

// PurchaseService ingresa compras y revierte compras anuladas.
type PurchaseService struct {
	coord *StockCoordinator
}

// NewPurchaseService construye el servicio.
func NewPurchaseService(coord *StockCoordinator) *PurchaseService {
	return &PurchaseService{coord: coord}
}

// ReceivePurchase ingresa todas las líneas en una transacción. El costo de cada línea
// actualiza el costo promedio del producto; los lotes y series quedan asociados a la compra.
func (s *PurchaseService) ReceivePurchase(ctx context.Context, tx repository.Tx, req PurchaseRequest) (*AdjustResult, error) {
	if req.PurchaseID == "" || req.WarehouseID == "" || len(req.Lines) == 0 {
		return nil, fmt.Errorf("compra incompleta: %w", domain.ErrInvalidInput)
	}
	reason := req.Reason
	if reason == "" {
		reason = "Compra"
	}
	mc := s.coord.prepare(ctx, MovementContext{
		Reason:        fmt.Sprintf("%s #%s", reason, req.PurchaseID),
		ReferenceType: entity.ReferencePurchase,
		ReferenceID:   req.PurchaseID,
		ActorID:       req.ActorID,
		PurchaseID:    req.PurchaseID,
	})
	res := &AdjustResult{TransactionID: mc.TransactionID}

	lines := append([]PurchaseLine(nil), req.Lines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	err := s.coord.within(ctx, tx, false, "ReceivePurchase", func(ctx context.Context, tx repository.Tx) error {
		for _, l := range lines {
			lmc := mc
			cost := l.UnitCost
			lmc.UnitCost = &cost
			lmc.LotNumber = l.LotNumber
			lmc.ExpiryDate = l.ExpiryDate
			lmc.Serials = l.Serials
			out, err := s.coord.Receive(ctx, tx, l.ProductID, req.WarehouseID, l.Quantity, lmc)
			if err != nil {
				return err
			}
			res.Lines = append(res.Lines, out.Lines...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RevertPurchase retira lo que la compra aún aporta al inventario según el libro. Las series
// de la compra se eliminan lógicamente; si alguna ya no está en stock la reversión falla con ErrConflict.
func (s *PurchaseService) RevertPurchase(ctx context.Context, tx repository.Tx, purchaseID string, mc MovementContext) (*AdjustResult, error) {
	if purchaseID == "" {
		return nil, fmt.Errorf("compra sin id: %w", domain.ErrInvalidInput)
	}
	if mc.Reason == "" {
		mc.Reason = "Anulación de compra #" + purchaseID
	}
	mc.ReferenceType, mc.ReferenceID, mc.PurchaseID = entity.ReferencePurchase, purchaseID, purchaseID
	mc = s.coord.prepare(ctx, mc)

	var res *AdjustResult
	err := s.coord.within(ctx, tx, mc.SkipTransaction, "RevertPurchase", func(ctx context.Context, tx repository.Tx) error {
		nets, err := netByReference(ctx, tx, entity.ReferencePurchase, purchaseID, -1)
		if err != nil {
			return err
		}
		lines, err := s.coord.linesFromLedger(ctx, tx, nets, DirectionIn)
		if err != nil {
			return err
		}
		units, err := tx.Serials().ListByPurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			return fmt.Errorf("lock purchase serials: %w", err)
		}
		for _, u := range units {
			if u.State != entity.SerialStateInStock {
				return &domain.SerialError{Serial: u.SerialNumber, ProductID: u.ProductID, Kind: domain.ErrConflict, Detail: "estado " + u.State}
			}
		}
		lines = append(lines, serialLines(units, DirectionIn)...)
		res, err = s.coord.Reverse(ctx, tx, lines, mc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
