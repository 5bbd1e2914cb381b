package warehouse

import (
	"context"

	"github.com/rotisserie/eris"
)

const tableColumnsSQL = `
SELECT column_name, is_identity
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// TableColumns returns the insertable columns of a table in ordinal
// order. Identity columns (GENERATED ALWAYS) are excluded: they must not
// be supplied on insert.
func TableColumns(ctx context.Context, db DB, schema, table string) ([]string, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := db.Query(ctx, tableColumnsSQL, schema, table)
	if err != nil {
		return nil, eris.Wrapf(err, "warehouse: introspect %s.%s", schema, table)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, isIdentity string
		if err := rows.Scan(&name, &isIdentity); err != nil {
			return nil, eris.Wrap(err, "warehouse: scan column row")
		}
		if isIdentity == "YES" {
			continue
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "warehouse: introspect %s.%s", schema, table)
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("warehouse: table %s.%s not found or has no insertable columns", schema, table)
	}
	return cols, nil
}
