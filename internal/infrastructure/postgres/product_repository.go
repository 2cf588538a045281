package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var (
	_ repository.ProductRepository = (*ProductRepo)(nil)
	_ repository.KitRepository     = (*KitRepo)(nil)
)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
// El catálogo es de otro módulo: aquí solo se leen las banderas y se escriben stock y purchase_cost.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, sku, name, handles_lots, requires_serial, is_kit, is_service, active,
	purchase_cost, stock, created_at, updated_at`

func scanProduct(row pgxScanner) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.HandlesLots, &p.RequiresSerial, &p.IsKit, &p.IsService, &p.Active,
		&p.PurchaseCost, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetForUpdate bloquea la fila del producto; serializa el recálculo del costo promedio.
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	return p, nil
}

// UpdateCost guarda el nuevo costo promedio ponderado.
func (r *ProductRepo) UpdateCost(ctx context.Context, productID string, cost decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET purchase_cost = $2, updated_at = now() WHERE id = $1`, productID, cost)
	if err != nil {
		return fmt.Errorf("update product cost: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// RefreshStockTotal recalcula products.stock desde inventory_stock en una sola sentencia.
func (r *ProductRepo) RefreshStockTotal(ctx context.Context, productID string) (int, error) {
	query := `
		UPDATE products p
		SET stock = COALESCE((SELECT SUM(s.quantity) FROM inventory_stock s WHERE s.product_id = p.id), 0),
		    updated_at = now()
		WHERE p.id = $1
		RETURNING p.stock`
	var total int
	if err := r.q.QueryRow(ctx, query, productID).Scan(&total); err != nil {
		if isNoRows(err) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("refresh product stock: %w", err)
	}
	return total, nil
}

// ListInventoried lista los productos que llevan existencias (ni kits ni servicios).
func (r *ProductRepo) ListInventoried(ctx context.Context) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE NOT is_kit AND NOT is_service ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// KitRepo lectura de kit_components.
type KitRepo struct {
	q Querier
}

// NewKitRepository construye el adaptador de composición de kits.
func NewKitRepository(q Querier) *KitRepo {
	return &KitRepo{q: q}
}

// Components devuelve los componentes directos del kit en orden de definición.
func (r *KitRepo) Components(ctx context.Context, kitProductID string) ([]entity.KitComponent, error) {
	rows, err := r.q.Query(ctx, `
		SELECT kit_product_id, component_product_id, multiplier
		FROM kit_components WHERE kit_product_id = $1 ORDER BY position, component_product_id`, kitProductID)
	if err != nil {
		return nil, fmt.Errorf("list kit components: %w", err)
	}
	defer rows.Close()
	var list []entity.KitComponent
	for rows.Next() {
		var c entity.KitComponent
		if err := rows.Scan(&c.KitProductID, &c.ComponentProductID, &c.Multiplier); err != nil {
			return nil, fmt.Errorf("scan kit component: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
