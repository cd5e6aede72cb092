package dbengine

import "database/sql"

// Result is a materialized result set. NULL columns are carried as
// ValueNull rather than coerced (§4.2 "NULL columns are skipped on
// transfer to avoid type coercion").
type Result struct {
	columns []string
	rows    [][]Value
	cursor  int
}

func newResult(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	r := &Result{columns: cols, cursor: -1}
	scanArgs := make([]any, len(cols))
	scanDest := make([]any, len(cols))
	for i := range scanDest {
		scanArgs[i] = &scanDest[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		row := make([]Value, len(cols))
		for i, raw := range scanDest {
			row[i] = valueFromAny(raw)
		}
		r.rows = append(r.rows, row)
	}
	return r, rows.Err()
}

// NRows reports the total row count.
func (r *Result) NRows() int { return len(r.rows) }

// NColumns reports the column count.
func (r *Result) NColumns() int { return len(r.columns) }

// Columns returns the column names in order.
func (r *Result) Columns() []string { return r.columns }

// Next advances the cursor, returning false once exhausted.
func (r *Result) Next() bool {
	if r.cursor+1 >= len(r.rows) {
		return false
	}
	r.cursor++
	return true
}

// Get returns the value at column index col in the current row.
// Out-of-range access returns ValueNull.
func (r *Result) Get(col int) Value {
	if r.cursor < 0 || r.cursor >= len(r.rows) {
		return Value{Kind: ValueNull}
	}
	row := r.rows[r.cursor]
	if col < 0 || col >= len(row) {
		return Value{Kind: ValueNull}
	}
	return row[col]
}

// Rewind resets the cursor to before the first row.
func (r *Result) Rewind() { r.cursor = -1 }
