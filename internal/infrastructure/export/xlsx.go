// Package export genera hojas de cálculo con el historial y las conciliaciones de inventario.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/internal/domain/entity"
)

const (
	sheetMovements     = "Movimientos"
	sheetDiscrepancies = "Diferencias"
)

// WriteMovements escribe el historial en formato xlsx, una fila por movimiento.
func WriteMovements(w io.Writer, movements []*entity.InventoryMovement) error {
	header := []any{
		"fecha", "transaccion", "producto_id", "producto", "bodega_id", "bodega", "lote_id",
		"tipo", "cantidad", "antes", "despues", "costo_unitario", "motivo", "referencia_tipo", "referencia_id", "usuario",
	}
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []any{
			m.CreatedAt.Format(time.RFC3339), m.TransactionID, m.ProductID, m.ProductName, m.WarehouseID, m.WarehouseName, m.LotID,
			m.Type, m.Quantity, m.QuantityBefore, m.QuantityAfter, m.UnitCost.StringFixed(4), m.Reason, m.ReferenceType, m.ReferenceID, m.ActorID,
		})
	}
	return writeSheet(w, sheetMovements, header, rows)
}

// WriteReconcileReport escribe las diferencias encontradas por el conciliador.
func WriteReconcileReport(w io.Writer, report *inventory.ReconcileReport) error {
	header := []any{"producto_id", "sku", "bodega_id", "verificacion", "esperado", "actual", "diferencia"}
	rows := make([][]any, 0, len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		rows = append(rows, []any{d.ProductID, d.SKU, d.WarehouseID, d.Check, d.Expected, d.Actual, d.Actual - d.Expected})
	}
	return writeSheet(w, sheetDiscrepancies, header, rows)
}

func writeSheet(w io.Writer, name string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), name); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx cell: %w", err)
		}
		if err := f.SetSheetRow(name, cell, &r); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}
	if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("xlsx panes: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
