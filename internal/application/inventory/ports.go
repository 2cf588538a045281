package inventory

import (
	"context"

	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando el manejador explícito.
// Commit si fn devuelve nil, Rollback en cualquier otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// ActorProvider resuelve el usuario que origina la operación, para atribuir movimientos.
type ActorProvider interface {
	CurrentActorID(ctx context.Context) string
}

// ActorProviderFunc adapta una función a ActorProvider.
type ActorProviderFunc func(ctx context.Context) string

func (f ActorProviderFunc) CurrentActorID(ctx context.Context) string { return f(ctx) }

type actorKey struct{}

// WithActor guarda el actor en el contexto (lo usa el middleware HTTP).
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ContextActorProvider lee el actor guardado por WithActor.
var ContextActorProvider ActorProvider = ActorProviderFunc(func(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
})

// AvailabilityCache caché de existencias solo para visualización.
// Nunca se consulta para decidir una reserva.
type AvailabilityCache interface {
	Get(ctx context.Context, productID, warehouseID string) (int, bool)
	Set(ctx context.Context, productID, warehouseID string, qty int)
	Invalidate(ctx context.Context, productID, warehouseID string)
}

// Metrics contadores operativos del motor.
type Metrics interface {
	MovementRecorded(movementType, kind string, qty int)
	InsufficientStock(kind string)
	CostFallback(productID string, qty int)
	ValidationFailed(errorCount int)
	TxCompleted(op string, err error)
}

// ReadRepositories repositorios fuera de transacción para lecturas consultivas y reportes.
type ReadRepositories struct {
	Products   repository.ProductRepository
	Warehouses repository.WarehouseRepository
	Kits       repository.KitRepository
	Stock      repository.StockRepository
	Lots       repository.LotRepository
	Movements  repository.InventoryMovementRepository
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, string) (int, bool) { return 0, false }
func (nopCache) Set(context.Context, string, string, int)         {}
func (nopCache) Invalidate(context.Context, string, string)       {}

type nopMetrics struct{}

func (nopMetrics) MovementRecorded(string, string, int) {}
func (nopMetrics) InsufficientStock(string)             {}
func (nopMetrics) CostFallback(string, int)             {}
func (nopMetrics) ValidationFailed(int)                 {}
func (nopMetrics) TxCompleted(string, error)            {}
