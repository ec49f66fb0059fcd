package datanorm

import (
	"database/sql"
	"fmt"
)

// ReadRows drains a query result into a Table. Column names become the
// header and NULLs become empty cells. rows is closed.
func ReadRows(src Source, rows *sql.Rows) (Table, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("%s source: columns: %w", src, err)
	}

	t := Table{Source: src, Header: cols}
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return Table{}, fmt.Errorf("%s source: scan row %d: %w", src, len(t.Rows)+1, err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			if v.Valid {
				row[i] = v.String
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("%s source: %w", src, err)
	}
	return t, nil
}
