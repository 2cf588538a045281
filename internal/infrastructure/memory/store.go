// Package memory implementa los puertos de inventario en memoria.
// Run serializa las transacciones y trabaja sobre una copia del estado que solo se publica al confirmar.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

type stockKey struct{ productID, warehouseID string }

type state struct {
	warehouses map[string]entity.Warehouse
	products   map[string]entity.Product
	kits       map[string][]entity.KitComponent
	stock      map[stockKey]entity.Stock
	lots       map[string]entity.Lot
	serials    map[string]entity.SerialUnit
	movements  []entity.InventoryMovement
}

func newState() *state {
	return &state{
		warehouses: map[string]entity.Warehouse{},
		products:   map[string]entity.Product{},
		kits:       map[string][]entity.KitComponent{},
		stock:      map[stockKey]entity.Stock{},
		lots:       map[string]entity.Lot{},
		serials:    map[string]entity.SerialUnit{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.kits {
		c.kits[k] = append([]entity.KitComponent(nil), v...)
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.serials {
		c.serials[k] = v
	}
	c.movements = append(c.movements, s.movements...)
	return c
}

// Store almacén en memoria. Útil para pruebas y para desarrollo sin PostgreSQL.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// NewStore construye un store vacío.
func NewStore() *Store {
	return &Store{state: newState(), now: time.Now}
}

// SetClock reemplaza el reloj usado para caducidades y marcas de tiempo.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Run ejecuta fn en una transacción serializada. Si fn devuelve error o entra en pánico,
// el estado queda intacto; los hooks AfterCommit corren tras liberar el candado.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.mu.Lock()
	tx := &memTx{store: s, st: s.state.clone()}
	func() {
		defer s.mu.Unlock()
		if err = fn(ctx, tx); err != nil {
			return
		}
		if err = ctx.Err(); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
			return
		}
		s.state = tx.st
	}()
	if err != nil {
		return err
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// AddWarehouse registra o reemplaza un almacén.
func (s *Store) AddWarehouse(w entity.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.warehouses[w.ID] = w
}

// AddProduct registra o reemplaza un producto del catálogo.
func (s *Store) AddProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

// SetKitComponents define la composición de un kit.
func (s *Store) SetKitComponents(kitID string, components ...entity.KitComponent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range components {
		components[i].KitProductID = kitID
	}
	s.state.kits[kitID] = components
}

// Repositorios fuera de transacción (lecturas consultivas y reportes).
func (s *Store) Warehouses() repository.WarehouseRepository  { return &warehouseRepo{acc: access{s: s}} }
func (s *Store) Products() repository.ProductRepository      { return &productRepo{acc: access{s: s}} }
func (s *Store) Kits() repository.KitRepository              { return &kitRepo{acc: access{s: s}} }
func (s *Store) Stock() repository.StockRepository           { return &stockRepo{acc: access{s: s}} }
func (s *Store) Lots() repository.LotRepository              { return &lotRepo{acc: access{s: s}} }
func (s *Store) Serials() repository.SerialUnitRepository    { return &serialRepo{acc: access{s: s}} }
func (s *Store) Movements() repository.InventoryMovementRepository {
	return &movementRepo{acc: access{s: s}}
}

type memTx struct {
	store *Store
	st    *state
	hooks []func()
}

var _ repository.Tx = (*memTx)(nil)

func (t *memTx) acc() access { return access{s: t.store, st: t.st} }

func (t *memTx) Warehouses() repository.WarehouseRepository { return &warehouseRepo{acc: t.acc()} }
func (t *memTx) Products() repository.ProductRepository     { return &productRepo{acc: t.acc()} }
func (t *memTx) Kits() repository.KitRepository             { return &kitRepo{acc: t.acc()} }
func (t *memTx) Stock() repository.StockRepository          { return &stockRepo{acc: t.acc()} }
func (t *memTx) Lots() repository.LotRepository             { return &lotRepo{acc: t.acc()} }
func (t *memTx) Serials() repository.SerialUnitRepository   { return &serialRepo{acc: t.acc()} }
func (t *memTx) Movements() repository.InventoryMovementRepository {
	return &movementRepo{acc: t.acc()}
}
func (t *memTx) AfterCommit(fn func()) { t.hooks = append(t.hooks, fn) }

// access resuelve el estado a usar: el de la transacción, o el publicado bajo candado.
type access struct {
	s  *Store
	st *state
}

func (a access) read(fn func(st *state)) {
	if a.st != nil {
		fn(a.st)
		return
	}
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	fn(a.s.state)
}

func (a access) write(fn func(st *state)) {
	if a.st != nil {
		fn(a.st)
		return
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	fn(a.s.state)
}

func (a access) now() time.Time {
	if a.st != nil {
		return a.s.now()
	}
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return a.s.now()
}
