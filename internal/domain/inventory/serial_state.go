package inventory

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/inventario-core/internal/domain"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

// SerialEvent evento que cambia el estado de una unidad serializada.
type SerialEvent string

const (
	SerialReserve    SerialEvent = "reserve"
	SerialRelease    SerialEvent = "release"
	SerialSell       SerialEvent = "sell"
	SerialCancelSale SerialEvent = "cancel_sale"
)

// TransitionSerial aplica ev sobre u. changed=false indica un no-op (cancelar una unidad ya en stock).
// warehouseID se exige en reserve y sell (en release es opcional); saleID en sell y cancel_sale.
func TransitionSerial(u *entity.SerialUnit, ev SerialEvent, warehouseID, saleID string) (changed bool, err error) {
	fail := func(kind error, detail string) (bool, error) {
		return false, &domain.SerialError{Serial: u.SerialNumber, ProductID: u.ProductID, Kind: kind, Detail: detail}
	}

	switch ev {
	case SerialReserve, SerialSell:
		if !u.Live() {
			return fail(domain.ErrSerialUnavailable, "eliminada")
		}
		if u.State != entity.SerialStateInStock {
			return fail(domain.ErrSerialUnavailable, "estado "+u.State)
		}
		if u.WarehouseID != warehouseID {
			return fail(domain.ErrSerialWrongWarehouse, "almacén "+u.WarehouseID)
		}
		if ev == SerialReserve {
			u.State = entity.SerialStateReserved
			return true, nil
		}
		u.State = entity.SerialStateSold
		u.SaleID = saleID
		return true, nil

	case SerialRelease:
		if u.State != entity.SerialStateReserved {
			return fail(domain.ErrSerialTransition, "no está reservada")
		}
		if warehouseID != "" && u.WarehouseID != warehouseID {
			return fail(domain.ErrSerialWrongWarehouse, "almacén "+u.WarehouseID)
		}
		u.State = entity.SerialStateInStock
		return true, nil

	case SerialCancelSale:
		switch {
		case u.State == entity.SerialStateInStock && u.SaleID == "":
			return false, nil
		case u.State != entity.SerialStateSold:
			return fail(domain.ErrSerialTransition, "estado "+u.State)
		case saleID != "" && u.SaleID != saleID:
			return fail(domain.ErrSerialTransition, "vendida en "+u.SaleID)
		}
		u.State = entity.SerialStateInStock
		u.SaleID = ""
		u.DeletedAt = nil
		return true, nil
	}
	return false, fmt.Errorf("evento %q: %w", ev, domain.ErrInvalidInput)
}

// NormalizeSerial recorta espacios y aplica NFKC para que variantes de ancho completo
// o compatibilidad se traten como el mismo número.
func NormalizeSerial(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// NormalizeSerials normaliza una lista y rechaza vacíos y repetidos.
func NormalizeSerials(productID string, serials []string) ([]string, error) {
	out := make([]string, 0, len(serials))
	seen := make(map[string]struct{}, len(serials))
	for _, raw := range serials {
		s := NormalizeSerial(raw)
		if s == "" {
			return nil, fmt.Errorf("número de serie vacío para %s: %w", productID, domain.ErrInvalidInput)
		}
		if _, dup := seen[s]; dup {
			return nil, &domain.SerialError{Serial: s, ProductID: productID, Kind: domain.ErrSerialDuplicate, Detail: "repetido en la solicitud"}
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
