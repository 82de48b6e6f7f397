// Package export writes the enriched service table as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/salon-margin/internal/catalog"
)

const SheetName = "Servicos"

// Columns is the header row, in order.
var Columns = []string{"id", "servico", "tempo", "valor", "categoria", "custo_produto", "custo_lavagem"}

// WriteServices writes rows to w as an .xlsx workbook. The header is always
// written, even with no rows; services without a price get an empty cell.
func WriteServices(w io.Writer, rows []catalog.EnrichedService) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, name := range Columns {
		if err := setCell(f, col+1, 1, name); err != nil {
			return err
		}
	}

	for i, r := range rows {
		line := i + 2
		values := []any{
			r.ID,
			r.Name,
			r.Duration,
			nil,
			r.Category,
			r.ProductCost.InexactFloat64(),
			r.LaunderingCost.InexactFloat64(),
		}
		if r.Price.Valid {
			values[3] = r.Price.Decimal.InexactFloat64()
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := setCell(f, col+1, line, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(SheetName, cell, v); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}
