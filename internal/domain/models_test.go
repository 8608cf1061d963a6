package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNonEmptyCells(t *testing.T) {
	tests := []struct {
		name string
		row  []*string
		want int
	}{
		{name: "all present", row: []*string{Cell("a"), Cell("b")}, want: 2},
		{name: "absent cell", row: []*string{Cell("a"), nil, Cell("c")}, want: 2},
		{name: "blank cell", row: []*string{Cell("  "), Cell("b")}, want: 1},
		{name: "empty row", row: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NonEmptyCells(tt.row); got != tt.want {
				t.Errorf("NonEmptyCells() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTable_Records(t *testing.T) {
	table := Table{
		{Cell("name"), Cell("qty")},
		{Cell("bolt"), nil},
	}

	records := table.Records()
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[1][0] != "bolt" || records[1][1] != "" {
		t.Errorf("Unexpected second record: %q", records[1])
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: ValidationError("bad", nil), want: http.StatusBadRequest},
		{name: "structure", err: StructureError("ragged", nil), want: http.StatusBadRequest},
		{name: "not found", err: NotFoundError("missing", nil), want: http.StatusNotFound},
		{name: "capacity", err: CapacityError("full", nil), want: http.StatusServiceUnavailable},
		{name: "conversion", err: ConversionError("corrupt", nil), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("outer: %w", StructureError("ragged", nil)), want: http.StatusBadRequest},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	err := ConversionError("failed to open PDF", errors.New("no objects found"))

	if got := Describe(err); got != "failed to open PDF: no objects found" {
		t.Errorf("Describe() = %q", got)
	}
	if got := err.Error(); got != "[conversion] failed to open PDF: no objects found" {
		t.Errorf("Error() = %q", got)
	}
}
