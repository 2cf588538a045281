package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-core/internal/application/dto"
	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

// Tipos de movimiento aceptados por la API.
const (
	RequestTypeIN         = "IN"
	RequestTypeOUT        = "OUT"
	RequestTypeADJUSTMENT = "ADJUSTMENT"
	RequestTypeTRANSFER   = "TRANSFER"
)

// RegisterMovementFromRequest adapta el request HTTP a Receive, Issue, ApplyDelta o Transfer.
// IN exige costo unitario; ADJUSTMENT acepta cantidad con signo.
func (c *StockCoordinator) RegisterMovementFromRequest(ctx context.Context, actorID string, in dto.RegisterMovementRequest) (*AdjustResult, error) {
	mc := MovementContext{
		Reason:           in.Reason,
		ReferenceID:      in.ReferenceID,
		ActorID:          actorID,
		LotNumber:        in.LotNumber,
		ExpiryDate:       in.ExpiryDate,
		UnitCost:         in.UnitCost,
		Serials:          in.Serials,
		ComponentSerials: in.ComponentSerials,
	}
	switch in.Type {
	case RequestTypeIN:
		if in.UnitCost == nil || in.UnitCost.IsNegative() || in.Quantity <= 0 {
			return nil, fmt.Errorf("entrada sin costo o cantidad inválida: %w", domain.ErrInvalidInput)
		}
		if mc.Reason == "" {
			mc.Reason = "Entrada de inventario"
		}
		mc.ReferenceType = entity.ReferencePurchase
		mc.PurchaseID = in.ReferenceID
		return c.Receive(ctx, nil, in.ProductID, in.WarehouseID, in.Quantity, mc)
	case RequestTypeOUT:
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("salida con cantidad %d: %w", in.Quantity, domain.ErrInvalidInput)
		}
		if mc.Reason == "" {
			mc.Reason = "Salida de inventario"
		}
		mc.ReferenceType = entity.ReferenceAdjustment
		return c.Issue(ctx, nil, in.ProductID, in.WarehouseID, in.Quantity, mc)
	case RequestTypeADJUSTMENT:
		return c.ApplyDelta(ctx, nil, in.ProductID, in.WarehouseID, in.Quantity, mc)
	case RequestTypeTRANSFER:
		return c.Transfer(ctx, nil, in.ProductID, in.FromWarehouseID, in.ToWarehouseID, in.Quantity, mc)
	}
	return nil, fmt.Errorf("tipo de movimiento %q: %w", in.Type, domain.ErrInvalidInput)
}

// ToDTO respuesta HTTP del resultado.
func (r *AdjustResult) ToDTO() dto.AdjustResponse {
	out := dto.AdjustResponse{TransactionID: r.TransactionID, Lines: make([]dto.AdjustedLineDTO, 0, len(r.Lines)), TotalCost: r.TotalCost()}
	for _, l := range r.Lines {
		line := dto.AdjustedLineDTO{
			ProductID:      l.ProductID,
			WarehouseID:    l.WarehouseID,
			Direction:      string(l.Direction),
			Quantity:       l.Quantity,
			QuantityBefore: l.QuantityBefore,
			QuantityAfter:  l.QuantityAfter,
			UnitCost:       l.UnitCost,
			Serials:        l.Serials,
		}
		for _, d := range l.LotDraws {
			line.LotDraws = append(line.LotDraws, dto.LotDrawDTO{
				LotID: d.LotID, LotNumber: d.LotNumber, Quantity: d.Quantity, UnitCost: d.UnitCost, ExpiryDate: d.ExpiryDate,
			})
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

// ToDTO respuesta HTTP de una venta.
func (r *SaleResult) ToDTO() dto.AdjustResponse {
	res := (&AdjustResult{TransactionID: r.TransactionID, Lines: r.Lines}).ToDTO()
	res.TotalCost = r.TotalCost
	return res
}

// MovementToDTO movimiento del libro para el historial HTTP.
func MovementToDTO(m *entity.InventoryMovement) dto.MovementDTO {
	out := dto.MovementDTO{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		ProductID:      m.ProductID,
		ProductName:    m.ProductName,
		WarehouseID:    m.WarehouseID,
		WarehouseName:  m.WarehouseName,
		LotID:          m.LotID,
		Type:           m.Type,
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		UnitCost:       m.UnitCost,
		Reason:         m.Reason,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		UserID:         m.ActorID,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.Details) > 0 {
		out.Details = m.Details
	}
	return out
}
