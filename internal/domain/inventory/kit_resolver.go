package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// DefaultMaxKitDepth profundidad máxima de anidamiento de kits.
const DefaultMaxKitDepth = 8

// ComponentNeed cantidad requerida de un componente hoja al expandir un kit.
type ComponentNeed struct {
	Product    *entity.Product
	Quantity   int
	Serialized bool
	// KitSKU kit inmediato que contiene al componente (primer camino encontrado).
	KitSKU string
}

// KitResolver expande kits a sus componentes hoja recorriendo el árbol con una pila explícita.
type KitResolver struct {
	products repository.ProductRepository
	kits     repository.KitRepository
	maxDepth int
}

// NewKitResolver construye el resolvedor. maxDepth <= 0 usa DefaultMaxKitDepth.
func NewKitResolver(products repository.ProductRepository, kits repository.KitRepository, maxDepth int) *KitResolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxKitDepth
	}
	return &KitResolver{products: products, kits: kits, maxDepth: maxDepth}
}

type kitFrame struct {
	productID string
	quantity  int
	depth     int
	parentSKU string
	path      []string
}

// Expand devuelve los componentes hoja de kitQty unidades del kit, con cantidades acumuladas
// cuando un mismo componente aparece por varios caminos. Los servicios se omiten.
// Falla con ErrKitTooDeep ante ciclos o anidamiento mayor al límite.
func (r *KitResolver) Expand(ctx context.Context, kitID string, kitQty int) ([]ComponentNeed, error) {
	if kitQty <= 0 {
		return nil, fmt.Errorf("cantidad de kit %d: %w", kitQty, domain.ErrInvalidInput)
	}
	root, err := r.products.GetByID(ctx, kitID)
	if err != nil {
		return nil, fmt.Errorf("get kit: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("kit %s: %w", kitID, domain.ErrProductNotFound)
	}
	if !root.IsKit {
		return nil, fmt.Errorf("producto %s no es kit: %w", root.SKU, domain.ErrInvalidInput)
	}

	var (
		needs []ComponentNeed
		index = map[string]int{}
		stack = []kitFrame{{productID: root.ID, quantity: kitQty, path: []string{root.ID}}}
	)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		product := root
		if f.depth > 0 {
			product, err = r.products.GetByID(ctx, f.productID)
			if err != nil {
				return nil, fmt.Errorf("get componente: %w", err)
			}
			if product == nil {
				return nil, fmt.Errorf("componente %s: %w", f.productID, domain.ErrProductNotFound)
			}
		}

		switch {
		case product.IsService:
			continue
		case !product.IsKit:
			if i, ok := index[product.ID]; ok {
				needs[i].Quantity += f.quantity
				continue
			}
			index[product.ID] = len(needs)
			needs = append(needs, ComponentNeed{
				Product:    product,
				Quantity:   f.quantity,
				Serialized: product.RequiresSerial,
				KitSKU:     f.parentSKU,
			})
			continue
		}

		if f.depth >= r.maxDepth {
			return nil, fmt.Errorf("kit %s a profundidad %d: %w", product.SKU, f.depth, domain.ErrKitTooDeep)
		}
		components, err := r.kits.Components(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("componentes de %s: %w", product.SKU, err)
		}
		if len(components) == 0 {
			return nil, fmt.Errorf("kit %s: %w", product.SKU, domain.ErrKitWithoutComponents)
		}
		// en orden inverso para que la pila conserve el orden de definición
		for i := len(components) - 1; i >= 0; i-- {
			c := components[i]
			if c.Multiplier <= 0 {
				return nil, fmt.Errorf("kit %s multiplicador %d: %w", product.SKU, c.Multiplier, domain.ErrInvalidInput)
			}
			for _, seen := range f.path {
				if seen == c.ComponentProductID {
					return nil, fmt.Errorf("kit %s contiene a %s: %w", product.SKU, c.ComponentProductID, domain.ErrKitTooDeep)
				}
			}
			path := make([]string, len(f.path), len(f.path)+1)
			copy(path, f.path)
			stack = append(stack, kitFrame{
				productID: c.ComponentProductID,
				quantity:  f.quantity * c.Multiplier,
				depth:     f.depth + 1,
				parentSKU: product.SKU,
				path:      append(path, c.ComponentProductID),
			})
		}
	}
	return needs, nil
}
