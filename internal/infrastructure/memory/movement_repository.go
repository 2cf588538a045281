package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*movementRepo)(nil)

type movementRepo struct{ acc access }

func (r *movementRepo) Create(_ context.Context, m *entity.InventoryMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	r.acc.write(func(st *state) {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = r.acc.s.now()
		}
		st.movements = append(st.movements, *m)
	})
	return nil
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.InventoryMovement, error) {
	var out *entity.InventoryMovement
	r.acc.read(func(st *state) {
		for _, m := range st.movements {
			if m.ID == id {
				m := m
				out = &m
				return
			}
		}
	})
	return out, nil
}

func matches(m entity.InventoryMovement, f repository.MovementFilter) bool {
	switch {
	case f.ProductID != "" && m.ProductID != f.ProductID,
		f.WarehouseID != "" && m.WarehouseID != f.WarehouseID,
		f.Type != "" && m.Type != f.Type,
		f.ActorID != "" && m.ActorID != f.ActorID,
		f.ReferenceType != "" && m.ReferenceType != f.ReferenceType,
		f.ReferenceID != "" && m.ReferenceID != f.ReferenceID,
		f.From != nil && m.CreatedAt.Before(*f.From),
		f.To != nil && m.CreatedAt.After(*f.To):
		return false
	}
	return true
}

// List devuelve los movimientos más recientes primero.
func (r *movementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.InventoryMovement, error) {
	var out []*entity.InventoryMovement
	r.acc.read(func(st *state) {
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			if matches(m, f) {
				out = append(out, &m)
			}
		}
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *movementRepo) Stats(_ context.Context, from, to *time.Time) (repository.MovementStats, error) {
	var s repository.MovementStats
	f := repository.MovementFilter{From: from, To: to}
	r.acc.read(func(st *state) {
		for _, m := range st.movements {
			if !matches(m, f) {
				continue
			}
			s.TotalMovements++
			if m.Type == entity.MovementTypeEntry {
				s.Entries++
				s.UnitsIn += m.Quantity
			} else {
				s.Exits++
				s.UnitsOut += m.Quantity
			}
		}
	})
	return s, nil
}

func (r *movementRepo) MostMovedProducts(_ context.Context, limit int) ([]repository.ProductMovementTotal, error) {
	totals := map[string]*repository.ProductMovementTotal{}
	r.acc.read(func(st *state) {
		for _, m := range st.movements {
			t, ok := totals[m.ProductID]
			if !ok {
				t = &repository.ProductMovementTotal{ProductID: m.ProductID, ProductName: m.ProductName}
				totals[m.ProductID] = t
			}
			t.Movements++
			t.Units += m.Quantity
		}
	})
	out := make([]repository.ProductMovementTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].ProductID < out[j].ProductID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *movementRepo) MostActiveActors(_ context.Context, limit int) ([]repository.ActorMovementTotal, error) {
	counts := map[string]int{}
	r.acc.read(func(st *state) {
		for _, m := range st.movements {
			if m.ActorID != "" {
				counts[m.ActorID]++
			}
		}
	})
	out := make([]repository.ActorMovementTotal, 0, len(counts))
	for id, n := range counts {
		out = append(out, repository.ActorMovementTotal{ActorID: id, Movements: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Movements != out[j].Movements {
			return out[i].Movements > out[j].Movements
		}
		return out[i].ActorID < out[j].ActorID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *movementRepo) NetChange(_ context.Context, productID, warehouseID string) (int, error) {
	net := 0
	r.acc.read(func(st *state) {
		for _, m := range st.movements {
			if m.ProductID == productID && m.WarehouseID == warehouseID {
				net += m.Delta()
			}
		}
	})
	return net, nil
}
