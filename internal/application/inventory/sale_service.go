package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// SaleLine línea de venta.
type SaleLine struct {
	ProductID        string
	Quantity         int
	Serials          []string
	ComponentSerials map[string][]string
}

// SaleRequest venta a descontar de un almacén.
type SaleRequest struct {
	SaleID      string
	WarehouseID string
	ActorID     string
	Reason      string
	Lines       []SaleLine
}

// SaleResult líneas hoja descontadas y costo histórico total.
type SaleResult struct {
	SaleID        string          `json:"sale_id"`
	TransactionID string          `json:"transaction_id"`
	Lines         []AdjustedLine  `json:"lines"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// SaleService orquesta ventas completas sobre el coordinador: todas las líneas se validan
// y bloquean antes de descontar la primera, y todo ocurre en una sola transacción.
type SaleService struct {
	coord *StockCoordinator
}

// NewSaleService construye el servicio.
func NewSaleService(coord *StockCoordinator) *SaleService {
	return &SaleService{coord: coord}
}

func (s *SaleService) movementContext(ctx context.Context, req SaleRequest, reason string) MovementContext {
	if req.Reason != "" {
		reason = req.Reason
	}
	return s.coord.prepare(ctx, MovementContext{
		Reason:        fmt.Sprintf("%s #%s", reason, req.SaleID),
		ReferenceType: entity.ReferenceSale,
		ReferenceID:   req.SaleID,
		ActorID:       req.ActorID,
		WarehouseID:   req.WarehouseID,
		SaleID:        req.SaleID,
	})
}

// RegisterSale valida y bloquea todas las líneas y luego descuenta cada una.
// Si algo no alcanza devuelve *domain.ValidationFailedError con todos los problemas y no descuenta nada.
func (s *SaleService) RegisterSale(ctx context.Context, tx repository.Tx, req SaleRequest) (*SaleResult, error) {
	if req.SaleID == "" || req.WarehouseID == "" || len(req.Lines) == 0 {
		return nil, fmt.Errorf("venta incompleta: %w", domain.ErrInvalidInput)
	}
	mc := s.movementContext(ctx, req, "Venta")
	res := &SaleResult{SaleID: req.SaleID, TransactionID: mc.TransactionID}

	err := s.coord.within(ctx, tx, false, "RegisterSale", func(ctx context.Context, tx repository.Tx) error {
		items := make([]StockItem, 0, len(req.Lines))
		for _, l := range req.Lines {
			items = append(items, StockItem{ProductID: l.ProductID, Quantity: l.Quantity, Serials: l.Serials, ComponentSerials: l.ComponentSerials})
		}
		if v := s.coord.ValidateAndLock(ctx, tx, items, req.WarehouseID); !v.Valid {
			return v.Err()
		}
		for _, l := range req.Lines {
			lmc := mc
			lmc.Serials = l.Serials
			lmc.ComponentSerials = l.ComponentSerials
			out, err := s.coord.Issue(ctx, tx, l.ProductID, req.WarehouseID, l.Quantity, lmc)
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
	for _, l := range res.Lines {
		res.TotalCost = res.TotalCost.Add(l.Cost())
	}
	return res, nil
}

// CancelSale devuelve al inventario lo que la venta aún tiene descontado según el libro:
// cada lote recibe exactamente lo que salió de él y cada serie vendida vuelve a in_stock.
// Repetir la cancelación no cambia nada.
func (s *SaleService) CancelSale(ctx context.Context, tx repository.Tx, saleID string, mc MovementContext) (*AdjustResult, error) {
	if saleID == "" {
		return nil, fmt.Errorf("venta sin id: %w", domain.ErrInvalidInput)
	}
	if mc.Reason == "" {
		mc.Reason = "Cancelación de venta #" + saleID
	}
	mc.ReferenceType, mc.ReferenceID, mc.SaleID = entity.ReferenceSale, saleID, saleID
	mc = s.coord.prepare(ctx, mc)

	var res *AdjustResult
	err := s.coord.within(ctx, tx, mc.SkipTransaction, "CancelSale", func(ctx context.Context, tx repository.Tx) error {
		lines, err := s.outstandingSaleLines(ctx, tx, saleID)
		if err != nil {
			return err
		}
		res, err = s.coord.Reverse(ctx, tx, lines, mc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReplaceSale edición de una venta: cancela lo descontado y registra las nuevas líneas en una transacción.
func (s *SaleService) ReplaceSale(ctx context.Context, tx repository.Tx, req SaleRequest) (*SaleResult, error) {
	var res *SaleResult
	err := s.coord.within(ctx, tx, false, "ReplaceSale", func(ctx context.Context, tx repository.Tx) error {
		mc := MovementContext{Reason: "Edición de venta #" + req.SaleID, ActorID: req.ActorID}
		if _, err := s.CancelSale(ctx, tx, req.SaleID, mc); err != nil {
			return err
		}
		var err error
		res, err = s.RegisterSale(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type ledgerKey struct {
	productID   string
	warehouseID string
	lotID       string
}

type ledgerNet struct {
	qty      int
	unitCost decimal.Decimal
}

// netByReference salidas menos entradas (sign=1) o entradas menos salidas (sign=-1) por (producto, almacén, lote).
func netByReference(ctx context.Context, tx repository.Tx, refType, refID string, sign int) (map[ledgerKey]*ledgerNet, error) {
	movements, err := tx.Movements().List(ctx, repository.MovementFilter{ReferenceType: refType, ReferenceID: refID})
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	out := map[ledgerKey]*ledgerNet{}
	for _, m := range movements {
		k := ledgerKey{m.ProductID, m.WarehouseID, m.LotID}
		n, ok := out[k]
		if !ok {
			n = &ledgerNet{unitCost: m.UnitCost}
			out[k] = n
		}
		n.qty -= sign * m.Delta()
	}
	return out, nil
}

// linesFromLedger arma líneas por (producto, almacén) a partir de los netos del libro,
// ignorando productos serializados (sus unidades se toman de las series).
func (c *StockCoordinator) linesFromLedger(ctx context.Context, tx repository.Tx, nets map[ledgerKey]*ledgerNet, dir Direction) ([]AdjustedLine, error) {
	type lineKey struct{ productID, warehouseID string }
	byLine := map[lineKey]*AdjustedLine{}
	kinds := map[string]inventory.ProductKind{}
	for k, n := range nets {
		if n.qty <= 0 {
			continue
		}
		kind, ok := kinds[k.productID]
		if !ok {
			_, resolved, err := c.resolve(ctx, tx, k.productID)
			if err != nil {
				return nil, err
			}
			kind, kinds[k.productID] = resolved, resolved
		}
		if _, serialized := kind.(inventory.SerializedKind); serialized {
			continue
		}
		lk := lineKey{k.productID, k.warehouseID}
		line, ok := byLine[lk]
		if !ok {
			line = &AdjustedLine{ProductID: k.productID, WarehouseID: k.warehouseID, Direction: dir, UnitCost: n.unitCost}
			byLine[lk] = line
		}
		line.Quantity += n.qty
		if k.lotID != "" {
			line.LotDraws = append(line.LotDraws, inventory.LotDraw{LotID: k.lotID, Quantity: n.qty, UnitCost: n.unitCost})
		}
	}
	out := make([]AdjustedLine, 0, len(byLine))
	for _, l := range byLine {
		out = append(out, *l)
	}
	return out, nil
}

// serialLines agrupa unidades por (producto, almacén).
func serialLines(units []*entity.SerialUnit, dir Direction) []AdjustedLine {
	type lineKey struct{ productID, warehouseID string }
	byLine := map[lineKey]*AdjustedLine{}
	var order []lineKey
	for _, u := range units {
		k := lineKey{u.ProductID, u.WarehouseID}
		line, ok := byLine[k]
		if !ok {
			line = &AdjustedLine{ProductID: u.ProductID, WarehouseID: u.WarehouseID, Direction: dir}
			byLine[k] = line
			order = append(order, k)
		}
		line.Quantity++
		line.Serials = append(line.Serials, u.SerialNumber)
	}
	out := make([]AdjustedLine, 0, len(order))
	for _, k := range order {
		out = append(out, *byLine[k])
	}
	return out
}

func (s *SaleService) outstandingSaleLines(ctx context.Context, tx repository.Tx, saleID string) ([]AdjustedLine, error) {
	nets, err := netByReference(ctx, tx, entity.ReferenceSale, saleID, 1)
	if err != nil {
		return nil, err
	}
	lines, err := s.coord.linesFromLedger(ctx, tx, nets, DirectionOut)
	if err != nil {
		return nil, err
	}
	units, err := tx.Serials().ListBySaleForUpdate(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("lock sale serials: %w", err)
	}
	lines = append(lines, serialLines(units, DirectionOut)...)
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].WarehouseID != lines[j].WarehouseID {
			return lines[i].WarehouseID < lines[j].WarehouseID
		}
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines, nil
}
