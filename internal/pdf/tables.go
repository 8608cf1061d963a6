package pdf

import (
	"context"
	"regexp"
	"strings"

	"github.com/spherical/pdf-tables/internal/domain"
)

var (
	columnGap    = regexp.MustCompile(`\t+| {2,}`)
	ruleLine     = regexp.MustCompile(`^[\s|:+=-]+$`)
	pipeRowStart = regexp.MustCompile(`^\|.*\|$`)
)

// LayoutFinder detects tables in the text layout of a page.
//
// A row is a line that splits into at least MinColumns cells, either on runs of
// two or more spaces or tabs, or on '|' delimiters. At least MinRows adjacent rows
// form a table. Rule lines (----, |---|---|) inside a table are skipped; any other
// line ends it. Blank pipe-delimited cells are reported as absent, and rows
// shorter than the widest row of their table are padded with absent cells.
type LayoutFinder struct {
	MinColumns int
	MinRows    int
}

// NewLayoutFinder creates a finder with the default thresholds
func NewLayoutFinder() *LayoutFinder {
	return &LayoutFinder{MinColumns: 2, MinRows: 2}
}

// FindTables returns the tables of a page in reading order
func (f *LayoutFinder) FindTables(ctx context.Context, page domain.Page) ([]domain.Table, error) {
	var (
		tables  []domain.Table
		current domain.Table
	)

	flush := func() {
		if len(current) >= f.MinRows {
			tables = append(tables, pad(current))
		}
		current = nil
	}

	text := strings.ReplaceAll(page.Text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed != "" && ruleLine.MatchString(trimmed) && strings.ContainsAny(trimmed, "-=") {
			continue
		}

		cells := splitRow(trimmed)
		if len(cells) < f.MinColumns {
			flush()
			continue
		}
		current = append(current, cells)
	}
	flush()

	return tables, nil
}

// pad extends every row to the width of the widest one.
func pad(table domain.Table) domain.Table {
	width := 0
	for _, row := range table {
		width = max(width, len(row))
	}
	for i, row := range table {
		if len(row) < width {
			table[i] = append(row, make([]*string, width-len(row))...)
		}
	}
	return table
}

func splitRow(line string) []*string {
	if line == "" {
		return nil
	}

	var fields []string
	if pipeRowStart.MatchString(line) {
		fields = strings.Split(line[1:len(line)-1], "|")
	} else {
		fields = columnGap.Split(line, -1)
	}

	cells := make([]*string, len(fields))
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field != "" {
			cells[i] = domain.Cell(field)
		}
	}
	return cells
}
