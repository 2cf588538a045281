package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

var tracer = otel.Tracer("inventario-core/postgres")

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL READ COMMITTED.
// La exclusión entre escritores la dan los bloqueos de fila (FOR UPDATE / FOR SHARE).
type TxRunner struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
}

// NewTxRunner construye el runner con el pool. statementTimeout 0 no limita las sentencias.
func NewTxRunner(pool *pgxpool.Pool, statementTimeout time.Duration) *TxRunner {
	return &TxRunner{pool: pool, statementTimeout: statementTimeout}
}

// Run inicia una transacción, ejecuta fn con el manejador explícito y hace Commit o Rollback.
// Los hooks AfterCommit corren solo tras un Commit exitoso.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	ctx, span := tracer.Start(ctx, "inventory.transaction",
		trace.WithAttributes(attribute.String("db.system", "postgresql")))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	pgxTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// tras un Commit exitoso el Rollback es un no-op
	defer func() { _ = pgxTx.Rollback(context.WithoutCancel(ctx)) }()

	if r.statementTimeout > 0 {
		if _, err := pgxTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", r.statementTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	tx := newTx(pgxTx)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	span.SetAttributes(attribute.Int("tx.after_commit_hooks", len(tx.hooks)))
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// pgTx implementa repository.Tx: todos los repositorios comparten la misma pgx.Tx.
type pgTx struct {
	q     pgx.Tx
	hooks []func()
}

var _ repository.Tx = (*pgTx)(nil)

func newTx(q pgx.Tx) *pgTx { return &pgTx{q: q} }

func (t *pgTx) Warehouses() repository.WarehouseRepository  { return NewWarehouseRepository(t.q) }
func (t *pgTx) Products() repository.ProductRepository      { return NewProductRepository(t.q) }
func (t *pgTx) Kits() repository.KitRepository              { return NewKitRepository(t.q) }
func (t *pgTx) Stock() repository.StockRepository           { return NewStockRepository(t.q) }
func (t *pgTx) Lots() repository.LotRepository              { return NewLotRepository(t.q) }
func (t *pgTx) Serials() repository.SerialUnitRepository    { return NewSerialUnitRepository(t.q) }
func (t *pgTx) Movements() repository.InventoryMovementRepository {
	return NewInventoryMovementRepository(t.q)
}
func (t *pgTx) AfterCommit(fn func()) { t.hooks = append(t.hooks, fn) }

// NewReadRepositories repositorios sobre el pool, fuera de transacción, para lecturas consultivas.
func NewReadRepositories(pool *pgxpool.Pool) inventory.ReadRepositories {
	return inventory.ReadRepositories{
		Products:   NewProductRepository(pool),
		Warehouses: NewWarehouseRepository(pool),
		Kits:       NewKitRepository(pool),
		Stock:      NewStockRepository(pool),
		Lots:       NewLotRepository(pool),
		Movements:  NewInventoryMovementRepository(pool),
	}
}
