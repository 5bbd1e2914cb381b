package warehouse

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// QualifyTable renders a quoted schema.table identifier.
func QualifyTable(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

// QuoteColumns quotes each column name and joins with commas.
func QuoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// placeholders renders ($1,$2),($3,$4)… for rowCount rows of width cols.
func placeholders(cols, rowCount int) string {
	var b strings.Builder
	n := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < cols; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// BuildInsert renders a multi-row INSERT with parameter binding.
func BuildInsert(schema, table string, columns []string, rowCount int) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		QualifyTable(schema, table), QuoteColumns(columns), placeholders(len(columns), rowCount))
}

// BuildUpsert renders a multi-row INSERT … ON CONFLICT (pk) DO UPDATE
// updating every non-key column.
func BuildUpsert(schema, table string, columns, conflictKeys []string, rowCount int) string {
	keySet := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		keySet[k] = true
	}
	var setClauses []string
	for _, col := range columns {
		if keySet[col] {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s)",
		QualifyTable(schema, table), QuoteColumns(columns),
		placeholders(len(columns), rowCount), QuoteColumns(conflictKeys))
	if len(setClauses) == 0 {
		return sql + " DO NOTHING"
	}
	return sql + " DO UPDATE SET " + strings.Join(setClauses, ", ")
}

// BuildInsertMissing renders a multi-row INSERT … ON CONFLICT DO NOTHING
// used by FK backfill: existing reference rows are never updated.
func BuildInsertMissing(schema, table string, columns, conflictKeys []string, rowCount int) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
		QualifyTable(schema, table), QuoteColumns(columns),
		placeholders(len(columns), rowCount), QuoteColumns(conflictKeys))
}

// BuildDelete renders a DELETE scoped by the composite delete key.
func BuildDelete(schema, table string, keyColumns []string) string {
	conds := make([]string, len(keyColumns))
	for i, col := range keyColumns {
		conds[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), i+1)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s",
		QualifyTable(schema, table), strings.Join(conds, " AND "))
}
