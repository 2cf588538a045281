package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
	"github.com/jhoicas/inventario-core/internal/domain/repository"
)

var (
	_ repository.WarehouseRepository  = (*warehouseRepo)(nil)
	_ repository.ProductRepository    = (*productRepo)(nil)
	_ repository.KitRepository        = (*kitRepo)(nil)
	_ repository.StockRepository      = (*stockRepo)(nil)
	_ repository.LotRepository        = (*lotRepo)(nil)
	_ repository.SerialUnitRepository = (*serialRepo)(nil)
)

type warehouseRepo struct{ acc access }

func (r *warehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	var out *entity.Warehouse
	r.acc.read(func(st *state) {
		if w, ok := st.warehouses[id]; ok {
			out = &w
		}
	})
	return out, nil
}

func (r *warehouseRepo) GetForShare(ctx context.Context, id string) (*entity.Warehouse, error) {
	return r.GetByID(ctx, id)
}

type productRepo struct{ acc access }

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	r.acc.read(func(st *state) {
		if p, ok := st.products[id]; ok {
			out = &p
		}
	})
	return out, nil
}

// GetForUpdate la transacción del store ya es exclusiva.
func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *productRepo) UpdateCost(_ context.Context, productID string, cost decimal.Decimal) error {
	var err error
	r.acc.write(func(st *state) {
		p, ok := st.products[productID]
		if !ok {
			err = domain.ErrProductNotFound
			return
		}
		p.PurchaseCost = cost
		p.UpdatedAt = r.acc.s.now()
		st.products[productID] = p
	})
	return err
}

func (r *productRepo) RefreshStockTotal(_ context.Context, productID string) (int, error) {
	var (
		total int
		err   error
	)
	r.acc.write(func(st *state) {
		p, ok := st.products[productID]
		if !ok {
			err = domain.ErrProductNotFound
			return
		}
		for k, s := range st.stock {
			if k.productID == productID {
				total += s.Quantity
			}
		}
		p.Stock = total
		st.products[productID] = p
	})
	return total, err
}

func (r *productRepo) ListInventoried(_ context.Context) ([]*entity.Product, error) {
	var out []*entity.Product
	r.acc.read(func(st *state) {
		for _, p := range st.products {
			if p.IsKit || p.IsService {
				continue
			}
			p := p
			out = append(out, &p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type kitRepo struct{ acc access }

func (r *kitRepo) Components(_ context.Context, kitProductID string) ([]entity.KitComponent, error) {
	var out []entity.KitComponent
	r.acc.read(func(st *state) {
		out = append(out, st.kits[kitProductID]...)
	})
	return out, nil
}

type stockRepo struct{ acc access }

func (r *stockRepo) Get(_ context.Context, productID, warehouseID string) (*entity.Stock, error) {
	out := &entity.Stock{ProductID: productID, WarehouseID: warehouseID}
	r.acc.read(func(st *state) {
		if s, ok := st.stock[stockKey{productID, warehouseID}]; ok {
			out = &s
		}
	})
	return out, nil
}

func (r *stockRepo) GetForUpdate(_ context.Context, productID, warehouseID string) (*entity.Stock, error) {
	var out *entity.Stock
	r.acc.read(func(st *state) {
		if s, ok := st.stock[stockKey{productID, warehouseID}]; ok {
			out = &s
		}
	})
	return out, nil
}

func (r *stockRepo) CreateIfMissing(_ context.Context, productID, warehouseID string) error {
	r.acc.write(func(st *state) {
		k := stockKey{productID, warehouseID}
		if _, ok := st.stock[k]; !ok {
			st.stock[k] = entity.Stock{ProductID: productID, WarehouseID: warehouseID, UpdatedAt: r.acc.s.now()}
		}
	})
	return nil
}

func (r *stockRepo) Upsert(_ context.Context, stock *entity.Stock) error {
	if stock.Quantity < 0 {
		return domain.ErrInvalidInput
	}
	r.acc.write(func(st *state) {
		s := *stock
		s.UpdatedAt = r.acc.s.now()
		st.stock[stockKey{s.ProductID, s.WarehouseID}] = s
	})
	return nil
}

func (r *stockRepo) ListByProduct(_ context.Context, productID string) ([]*entity.Stock, error) {
	var out []*entity.Stock
	r.acc.read(func(st *state) {
		for k, s := range st.stock {
			if k.productID == productID {
				s := s
				out = append(out, &s)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out, nil
}

type lotRepo struct{ acc access }

func (r *lotRepo) GetByNumberForUpdate(_ context.Context, productID, warehouseID, lotNumber string) (*entity.Lot, error) {
	var out *entity.Lot
	r.acc.read(func(st *state) {
		for _, l := range st.lots {
			if l.ProductID == productID && l.WarehouseID == warehouseID && l.LotNumber == lotNumber {
				l := l
				out = &l
				return
			}
		}
	})
	return out, nil
}

func (r *lotRepo) GetByIDForUpdate(_ context.Context, id string) (*entity.Lot, error) {
	var out *entity.Lot
	r.acc.read(func(st *state) {
		if l, ok := st.lots[id]; ok {
			out = &l
		}
	})
	return out, nil
}

func (r *lotRepo) ListConsumableForUpdate(ctx context.Context, productID, warehouseID string) ([]*entity.Lot, error) {
	return r.ListConsumable(ctx, productID, warehouseID)
}

func (r *lotRepo) ListConsumable(_ context.Context, productID, warehouseID string) ([]*entity.Lot, error) {
	now := r.acc.now()
	var out []*entity.Lot
	r.acc.read(func(st *state) {
		for _, l := range st.lots {
			if l.ProductID != productID || l.WarehouseID != warehouseID {
				continue
			}
			if l.RemainingQuantity <= 0 || l.Expired(now) {
				continue
			}
			l := l
			out = append(out, &l)
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return entity.LotLess(out[i], out[j]) })
	return out, nil
}

func (r *lotRepo) Create(_ context.Context, lot *entity.Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	var err error
	r.acc.write(func(st *state) {
		for _, l := range st.lots {
			if l.ProductID == lot.ProductID && l.WarehouseID == lot.WarehouseID && l.LotNumber == lot.LotNumber {
				err = domain.ErrDuplicate
				return
			}
		}
		now := r.acc.s.now()
		lot.CreatedAt, lot.UpdatedAt = now, now
		st.lots[lot.ID] = *lot
	})
	return err
}

func (r *lotRepo) Update(_ context.Context, lot *entity.Lot) error {
	if lot.RemainingQuantity < 0 || lot.RemainingQuantity > lot.InitialQuantity {
		return domain.ErrLotOverflow
	}
	var err error
	r.acc.write(func(st *state) {
		if _, ok := st.lots[lot.ID]; !ok {
			err = domain.ErrNotFound
			return
		}
		lot.UpdatedAt = r.acc.s.now()
		st.lots[lot.ID] = *lot
	})
	return err
}

func (r *lotRepo) SumRemaining(_ context.Context, productID, warehouseID string) (int, error) {
	total := 0
	r.acc.read(func(st *state) {
		for _, l := range st.lots {
			if l.ProductID == productID && l.WarehouseID == warehouseID {
				total += l.RemainingQuantity
			}
		}
	})
	return total, nil
}

type serialRepo struct{ acc access }

func (r *serialRepo) FindLive(_ context.Context, serialNumber string) (*entity.SerialUnit, error) {
	var out *entity.SerialUnit
	r.acc.read(func(st *state) {
		for _, u := range st.serials {
			if u.SerialNumber == serialNumber && u.Live() {
				u := u
				out = &u
				return
			}
		}
	})
	return out, nil
}

func (r *serialRepo) GetForUpdate(_ context.Context, productID, serialNumber string, includeDeleted bool) (*entity.SerialUnit, error) {
	var out *entity.SerialUnit
	r.acc.read(func(st *state) {
		for _, u := range st.serials {
			if u.ProductID != productID || u.SerialNumber != serialNumber {
				continue
			}
			if u.Live() {
				u := u
				out = &u
				return
			}
			if includeDeleted && (out == nil || u.UpdatedAt.After(out.UpdatedAt)) {
				u := u
				out = &u
			}
		}
	})
	return out, nil
}

func (r *serialRepo) GetSoldForUpdate(_ context.Context, productID, serialNumber, saleID string) (*entity.SerialUnit, error) {
	var out *entity.SerialUnit
	r.acc.read(func(st *state) {
		for _, u := range st.serials {
			if u.ProductID != productID || u.SerialNumber != serialNumber || u.SaleID != saleID || u.State != entity.SerialStateSold {
				continue
			}
			if out == nil || u.UpdatedAt.After(out.UpdatedAt) {
				u := u
				out = &u
			}
		}
	})
	return out, nil
}

func (r *serialRepo) ListBySaleForUpdate(_ context.Context, saleID string) ([]*entity.SerialUnit, error) {
	return r.list(func(u entity.SerialUnit) bool {
		return u.SaleID == saleID && u.State == entity.SerialStateSold
	}), nil
}

func (r *serialRepo) ListByPurchaseForUpdate(_ context.Context, purchaseID string) ([]*entity.SerialUnit, error) {
	return r.list(func(u entity.SerialUnit) bool {
		return u.PurchaseID == purchaseID && u.Live()
	}), nil
}

func (r *serialRepo) list(match func(entity.SerialUnit) bool) []*entity.SerialUnit {
	var out []*entity.SerialUnit
	r.acc.read(func(st *state) {
		for _, u := range st.serials {
			if match(u) {
				u := u
				out = append(out, &u)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out
}

func (r *serialRepo) Create(_ context.Context, unit *entity.SerialUnit) error {
	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	var err error
	r.acc.write(func(st *state) {
		for _, u := range st.serials {
			if u.SerialNumber == unit.SerialNumber && u.Live() {
				err = domain.ErrSerialDuplicate
				return
			}
		}
		now := r.acc.s.now()
		unit.CreatedAt, unit.UpdatedAt = now, now
		st.serials[unit.ID] = *unit
	})
	return err
}

func (r *serialRepo) Update(_ context.Context, unit *entity.SerialUnit) error {
	var err error
	r.acc.write(func(st *state) {
		if _, ok := st.serials[unit.ID]; !ok {
			err = domain.ErrSerialNotFound
			return
		}
		if unit.Live() {
			for id, u := range st.serials {
				if id != unit.ID && u.SerialNumber == unit.SerialNumber && u.Live() {
					err = domain.ErrSerialDuplicate
					return
				}
			}
		}
		unit.UpdatedAt = r.acc.s.now()
		st.serials[unit.ID] = *unit
	})
	return err
}

func (r *serialRepo) CountInStock(_ context.Context, productID, warehouseID string) (int, error) {
	n := 0
	r.acc.read(func(st *state) {
		for _, u := range st.serials {
			if u.ProductID == productID && u.WarehouseID == warehouseID && u.State == entity.SerialStateInStock && u.Live() {
				n++
			}
		}
	})
	return n, nil
}
