package extract

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spherical/pdf-tables/internal/domain"
)

// validateTable checks that every row has the same number of non-empty cells.
// The first row sets the expected count.
func validateTable(table domain.Table) error {
	if len(table) == 0 {
		return nil
	}
	expected := domain.NonEmptyCells(table[0])
	for i, row := range table[1:] {
		if got := domain.NonEmptyCells(row); got != expected {
			return fmt.Errorf("row %d has %d non-empty cells, expected %d", i+2, got, expected)
		}
	}
	return nil
}

// writeCSV writes the table to path and syncs it to disk before returning.
func writeCSV(path string, table domain.Table) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(table.Records()); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
