package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterMovementRequest body para POST /api/inventory/movements.
type RegisterMovementRequest struct {
	ProductID        string              `json:"product_id" validate:"required"`
	WarehouseID      string              `json:"warehouse_id,omitempty" validate:"required_unless=Type TRANSFER"`
	FromWarehouseID  string              `json:"from_warehouse_id,omitempty" validate:"required_if=Type TRANSFER"`
	ToWarehouseID    string              `json:"to_warehouse_id,omitempty" validate:"required_if=Type TRANSFER"`
	Type             string              `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT TRANSFER"`
	Quantity         int                 `json:"quantity" validate:"required"`
	UnitCost         *decimal.Decimal    `json:"unit_cost,omitempty"`
	LotNumber        string              `json:"lot_number,omitempty" validate:"max=100"`
	ExpiryDate       *time.Time          `json:"expiry_date,omitempty"`
	Serials          []string            `json:"serials,omitempty" validate:"dive,required"`
	ComponentSerials map[string][]string `json:"component_serials,omitempty"`
	Reason           string              `json:"reason,omitempty" validate:"max=255"`
	ReferenceID      string              `json:"reference_id,omitempty"`
}

// StockLineDTO línea de venta o de validación.
type StockLineDTO struct {
	ProductID        string              `json:"product_id" validate:"required"`
	Quantity         int                 `json:"quantity" validate:"required,gt=0"`
	Serials          []string            `json:"serials,omitempty" validate:"dive,required"`
	ComponentSerials map[string][]string `json:"component_serials,omitempty"`
}

// ValidateStockRequest body para POST /api/inventory/validate.
type ValidateStockRequest struct {
	WarehouseID string         `json:"warehouse_id" validate:"required"`
	Lines       []StockLineDTO `json:"lines" validate:"required,min=1,dive"`
}

// ValidateStockResponse resultado de la validación.
type ValidateStockResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// SaleRequest body para POST /api/inventory/sales y PUT /api/inventory/sales/:id.
type SaleRequest struct {
	SaleID      string         `json:"sale_id" validate:"required"`
	WarehouseID string         `json:"warehouse_id" validate:"required"`
	Reason      string         `json:"reason,omitempty" validate:"max=255"`
	Lines       []StockLineDTO `json:"lines" validate:"required,min=1,dive"`
}

// PurchaseLineDTO línea de compra.
type PurchaseLineDTO struct {
	ProductID  string          `json:"product_id" validate:"required"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	LotNumber  string          `json:"lot_number,omitempty" validate:"max=100"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	Serials    []string        `json:"serials,omitempty" validate:"dive,required"`
}

// PurchaseRequest body para POST /api/inventory/purchases.
type PurchaseRequest struct {
	PurchaseID  string            `json:"purchase_id" validate:"required"`
	WarehouseID string            `json:"warehouse_id" validate:"required"`
	Reason      string            `json:"reason,omitempty" validate:"max=255"`
	Lines       []PurchaseLineDTO `json:"lines" validate:"required,min=1,dive"`
}

// SerialsRequest body para reservar o liberar series.
type SerialsRequest struct {
	ProductID   string   `json:"product_id" validate:"required"`
	WarehouseID string   `json:"warehouse_id" validate:"required"`
	Serials     []string `json:"serials" validate:"required,min=1,dive,required"`
	Reason      string   `json:"reason,omitempty" validate:"max=255"`
}

// LotDrawDTO cantidad tomada de un lote.
type LotDrawDTO struct {
	LotID      string          `json:"lot_id"`
	LotNumber  string          `json:"lot_number,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

// AdjustedLineDTO línea hoja afectada por una operación.
type AdjustedLineDTO struct {
	ProductID      string          `json:"product_id"`
	WarehouseID    string          `json:"warehouse_id"`
	Direction      string          `json:"direction"`
	Quantity       int             `json:"quantity"`
	QuantityBefore int             `json:"quantity_before"`
	QuantityAfter  int             `json:"quantity_after"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	LotDraws       []LotDrawDTO    `json:"lot_draws,omitempty"`
	Serials        []string        `json:"serials,omitempty"`
}

// AdjustResponse respuesta de movimientos, ventas, compras y cancelaciones.
type AdjustResponse struct {
	TransactionID string            `json:"transaction_id"`
	Lines         []AdjustedLineDTO `json:"lines"`
	TotalCost     decimal.Decimal   `json:"total_cost"`
}

// AvailabilityResponse existencias consultivas.
type AvailabilityResponse struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Available   int    `json:"available"`
}

// HistoricalCostResponse costo unitario estimado de una salida.
type HistoricalCostResponse struct {
	ProductID   string          `json:"product_id"`
	WarehouseID string          `json:"warehouse_id"`
	Quantity    int             `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// MovementQuery filtros de GET /api/inventory/movements.
type MovementQuery struct {
	PageRequest
	ProductID     string `query:"product_id"`
	WarehouseID   string `query:"warehouse_id"`
	Type          string `query:"type" validate:"omitempty,oneof=entry exit"`
	ActorID       string `query:"user_id"`
	ReferenceType string `query:"reference_type"`
	ReferenceID   string `query:"reference_id"`
	From          string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To            string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// MovementDTO movimiento del libro.
type MovementDTO struct {
	ID             string          `json:"id"`
	TransactionID  string          `json:"transaction_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	WarehouseID    string          `json:"warehouse_id"`
	WarehouseName  string          `json:"warehouse_name"`
	LotID          string          `json:"lot_id,omitempty"`
	Type           string          `json:"type"`
	Quantity       int             `json:"quantity"`
	QuantityBefore int             `json:"quantity_before"`
	QuantityAfter  int             `json:"quantity_after"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Reason         string          `json:"reason"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Details        any             `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MovementListResponse página del historial.
type MovementListResponse struct {
	Items []MovementDTO `json:"items"`
	Page  PageResponse  `json:"page"`
}

// ReasonRequest body opcional de cancelaciones y reversiones.
type ReasonRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=255"`
}

// StatsResponse totales del libro en un rango.
type StatsResponse struct {
	TotalMovements int `json:"total_movements"`
	Entries        int `json:"entries"`
	Exits          int `json:"exits"`
	UnitsIn        int `json:"units_in"`
	UnitsOut       int `json:"units_out"`
}

// ProductMovementDTO fila del reporte de productos más movidos.
type ProductMovementDTO struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Movements   int    `json:"movements"`
	Units       int    `json:"units"`
}

// ActorMovementDTO fila del reporte de usuarios más activos.
type ActorMovementDTO struct {
	UserID    string `json:"user_id"`
	Movements int    `json:"movements"`
}
