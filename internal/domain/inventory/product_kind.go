package inventory

import "github.com/jhoicas/inventario-core/internal/domain/entity"

// ProductKind clasifica cómo se mueve el inventario de un producto.
// Se resuelve una sola vez al inicio de cada ajuste.
type ProductKind interface {
	kindName() string
}

// SimpleKind producto fungible: solo el registro de inventario.
type SimpleKind struct{}

// SerializedKind producto con unidades identificadas por número de serie.
type SerializedKind struct{}

// LottedKind producto que maneja lotes con caducidad y costo por lote.
type LottedKind struct{}

// KitKind producto compuesto; no tiene existencias propias.
type KitKind struct {
	Components []entity.KitComponent
}

// ServiceKind no mueve inventario.
type ServiceKind struct{}

func (SimpleKind) kindName() string     { return "simple" }
func (SerializedKind) kindName() string { return "serialized" }
func (LottedKind) kindName() string     { return "lotted" }
func (KitKind) kindName() string        { return "kit" }
func (ServiceKind) kindName() string    { return "service" }

// KindName nombre estable del tipo, útil para logs y métricas.
func KindName(k ProductKind) string { return k.kindName() }

// KindOf resuelve el tipo de producto. Precedencia: servicio, kit, serializado, lote, simple.
func KindOf(p *entity.Product, components []entity.KitComponent) ProductKind {
	switch {
	case p.IsService:
		return ServiceKind{}
	case p.IsKit:
		return KitKind{Components: components}
	case p.RequiresSerial:
		return SerializedKind{}
	case p.HandlesLots:
		return LottedKind{}
	default:
		return SimpleKind{}
	}
}
