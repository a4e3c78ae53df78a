package document

import (
	"fmt"
	"strconv"
	"strings"

	"nmrdeposit/internal/star/schema"
)

// IDColumn is the row identifier column of a loop.
const IDColumn = "ID"

// Loop is a table nested in a saveframe. Its category and columns are fixed
// at construction; every row is expected to carry one Tag per column.
type Loop struct {
	Rows    [][]*Tag
	Display schema.Display
	Valid   bool
	Empty   bool

	category      string
	columns       []string
	rules         []*schema.TagRule
	columnDisplay []schema.Display
	catalog       *schema.Catalog
}

func newLoop(cat *schema.Catalog, category string, columns []string) *Loop {
	l := &Loop{
		category:      category,
		columns:       append([]string(nil), columns...),
		rules:         make([]*schema.TagRule, len(columns)),
		columnDisplay: make([]schema.Display, len(columns)),
		catalog:       cat,
		Valid:         true,
		Display:       schema.DisplayHidden,
	}
	for i, c := range columns {
		l.rules[i] = cat.Tag(category + "." + c)
		l.columnDisplay[i] = l.rules[i].DefaultDisplay
	}
	return l
}

// Category is the loop's tag category, e.g. "_Contact_person".
func (l *Loop) Category() string { return l.category }

// Columns returns the column names in order.
func (l *Loop) Columns() []string { return append([]string(nil), l.columns...) }

// ColumnIndex returns the position of a column or -1.
func (l *Loop) ColumnIndex(name string) int {
	for i, c := range l.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ColumnDisplay is the resolved display of a column as a whole.
func (l *Loop) ColumnDisplay(i int) schema.Display {
	if i < 0 || i >= len(l.columnDisplay) {
		return schema.DisplayHidden
	}
	return l.columnDisplay[i]
}

func (l *Loop) ruleAt(i int) *schema.TagRule {
	if i < len(l.rules) {
		return l.rules[i]
	}
	return l.catalog.Tag(fmt.Sprintf("%s.column_%d", l.category, i+1))
}

func (l *Loop) nameAt(i int) string {
	if i < len(l.columns) {
		return l.columns[i]
	}
	return fmt.Sprintf("column_%d", i+1)
}

// appendRow adds a row exactly as loaded, even when its width is wrong, so
// that the serializer can refuse to print a corrupted loop.
func (l *Loop) appendRow(values []*string) {
	row := make([]*Tag, len(values))
	for i, v := range values {
		row[i] = newTag(LoopTag, l.category, l.nameAt(i), v, l.ruleAt(i))
	}
	l.Rows = append(l.Rows, row)
}

// AddRow appends a row of schema defaults. The ID column, if any, gets one
// more than the largest positive integer ID already in use.
func (l *Loop) AddRow() []*Tag {
	row := make([]*Tag, len(l.columns))
	idCol := l.ColumnIndex(IDColumn)
	for i, c := range l.columns {
		var v *string
		if i == idCol {
			v = strp(strconv.Itoa(l.nextID()))
		} else if d := l.rules[i].Default; d != nil {
			v = strp(*d)
		}
		row[i] = newTag(LoopTag, l.category, c, v, l.rules[i])
	}
	l.Rows = append(l.Rows, row)
	return row
}

func (l *Loop) nextID() int {
	idCol := l.ColumnIndex(IDColumn)
	maxID := 0
	if idCol < 0 {
		return 1
	}
	for _, row := range l.Rows {
		if idCol >= len(row) || row[idCol].Value == nil {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(*row[idCol].Value))
		if err != nil || n <= 0 {
			continue
		}
		if n > maxID {
			maxID = n
		}
	}
	return maxID + 1
}

// DeleteRow removes a row. Surviving IDs are not renumbered.
func (l *Loop) DeleteRow(index int) error {
	if index < 0 || index >= len(l.Rows) {
		return fmt.Errorf("loop %s row %d: %w", l.category, index, ErrNotFound)
	}
	l.Rows = append(l.Rows[:index], l.Rows[index+1:]...)
	return nil
}

// Cell returns the tag at (row, column name).
func (l *Loop) Cell(row int, column string) (*Tag, bool) {
	col := l.ColumnIndex(column)
	if row < 0 || row >= len(l.Rows) || col < 0 || col >= len(l.Rows[row]) {
		return nil, false
	}
	return l.Rows[row][col], true
}

// hasData reports whether any cell outside the ID column holds a value.
func (l *Loop) hasData() bool {
	for _, row := range l.Rows {
		for _, t := range row {
			if t.Name == IDColumn {
				continue
			}
			if t.Value != nil {
				return true
			}
		}
	}
	return false
}

// clone copies the loop; with clear set the copy gets a single default row.
func (l *Loop) clone(clear bool) *Loop {
	out := newLoop(l.catalog, l.category, l.columns)
	if clear {
		out.AddRow()
		return out
	}
	for _, row := range l.Rows {
		values := make([]*string, len(row))
		for i, t := range row {
			values[i] = t.Value
		}
		out.appendRow(values)
	}
	return out
}

func (l *Loop) checkStructure() error {
	if strings.TrimSpace(l.category) == "" {
		return fmt.Errorf("loop without a category: %w", ErrStructure)
	}
	for i, row := range l.Rows {
		if len(row) != len(l.columns) {
			return fmt.Errorf("loop %s row %d has %d values for %d columns: %w",
				l.category, i, len(row), len(l.columns), ErrStructure)
		}
	}
	return nil
}
