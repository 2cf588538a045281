package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

// Verificaciones de conciliación.
const (
	CheckProductTotal = "product_total" // total del producto vs suma de registros
	CheckLots         = "lots"          // registro vs remanente de lotes
	CheckSerials      = "serials"       // registro vs series en stock
	CheckLedger       = "ledger"        // registro vs neto del libro
)

// Discrepancy diferencia encontrada por el conciliador.
type Discrepancy struct {
	ProductID   string `json:"product_id"`
	SKU         string `json:"sku"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	Check       string `json:"check"`
	Expected    int    `json:"expected"`
	Actual      int    `json:"actual"`
}

// ReconcileReport resultado de una conciliación.
type ReconcileReport struct {
	ProductsChecked int           `json:"products_checked"`
	Discrepancies   []Discrepancy `json:"discrepancies"`
	Fixed           int           `json:"fixed"`
}

// Reconciler compara los totales desnormalizados con sus fuentes. Solo corrige el total por producto.
type Reconciler struct {
	runner TxRunner
	log    *logger.Logger
}

// NewReconciler construye el conciliador.
func NewReconciler(runner TxRunner, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{runner: runner, log: log.Component("reconcile")}
}

// Run concilia productID, o todos los productos inventariables si viene vacío.
func (r *Reconciler) Run(ctx context.Context, productID string, fix bool) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	err := r.runner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		products, err := r.products(ctx, tx, productID)
		if err != nil {
			return err
		}
		for _, p := range products {
			found, err := r.check(ctx, tx, p)
			if err != nil {
				return err
			}
			report.ProductsChecked++
			report.Discrepancies = append(report.Discrepancies, found...)
			if fix && hasProductTotal(found) {
				if _, err := tx.Products().RefreshStockTotal(ctx, p.ID); err != nil {
					return fmt.Errorf("refresh product stock: %w", err)
				}
				report.Fixed++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, d := range report.Discrepancies {
		r.log.Warn().
			Str("product_id", d.ProductID).
			Str("sku", d.SKU).
			Str("warehouse_id", d.WarehouseID).
			Str("check", d.Check).
			Int("expected", d.Expected).
			Int("actual", d.Actual).
			Msg("discrepancia de inventario")
	}
	r.log.Info().Int("products", report.ProductsChecked).Int("discrepancies", len(report.Discrepancies)).Int("fixed", report.Fixed).Msg("conciliación terminada")
	return report, nil
}

func (r *Reconciler) products(ctx context.Context, tx repository.Tx, productID string) ([]*entity.Product, error) {
	if productID == "" {
		products, err := tx.Products().ListInventoried(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		return products, nil
	}
	p, err := tx.Products().GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("producto %s: %w", productID, domain.ErrProductNotFound)
	}
	return []*entity.Product{p}, nil
}

func (r *Reconciler) check(ctx context.Context, tx repository.Tx, p *entity.Product) ([]Discrepancy, error) {
	rows, err := tx.Stock().ListByProduct(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	var (
		out   []Discrepancy
		total int
	)
	for _, s := range rows {
		total += s.Quantity
		diff := func(check string, actual int) {
			if actual != s.Quantity {
				out = append(out, Discrepancy{ProductID: p.ID, SKU: p.SKU, WarehouseID: s.WarehouseID, Check: check, Expected: s.Quantity, Actual: actual})
			}
		}
		switch {
		case p.RequiresSerial:
			n, err := tx.Serials().CountInStock(ctx, p.ID, s.WarehouseID)
			if err != nil {
				return nil, fmt.Errorf("count serials: %w", err)
			}
			diff(CheckSerials, n)
		case p.HandlesLots:
			n, err := tx.Lots().SumRemaining(ctx, p.ID, s.WarehouseID)
			if err != nil {
				return nil, fmt.Errorf("sum lots: %w", err)
			}
			diff(CheckLots, n)
		}
		net, err := tx.Movements().NetChange(ctx, p.ID, s.WarehouseID)
		if err != nil {
			return nil, fmt.Errorf("net change: %w", err)
		}
		diff(CheckLedger, net)
	}
	if p.Stock != total {
		out = append(out, Discrepancy{ProductID: p.ID, SKU: p.SKU, Check: CheckProductTotal, Expected: total, Actual: p.Stock})
	}
	return out, nil
}

func hasProductTotal(ds []Discrepancy) bool {
	for _, d := range ds {
		if d.Check == CheckProductTotal {
			return true
		}
	}
	return false
}
