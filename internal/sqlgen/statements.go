package sqlgen

import (
	"fmt"
	"strings"

	"github.com/roach88/stow/query"
	"github.com/roach88/stow/record"
)

// Column is one table column as the statement builders need it.
type Column struct {
	Name       string
	Affinity   string // empty for no declared type
	PrimaryKey bool
}

func (c Column) definition() string {
	def := Quote(c.Name)
	if c.Affinity != "" {
		def += " " + c.Affinity
	}
	if c.PrimaryKey {
		def += " PRIMARY KEY NOT NULL"
	}
	return def
}

// Affinity returns the SQLite column type used to store values of kind k.
// Collections are stored as JSON text. References take the affinity of the
// target identifier, which the caller resolves; Affinity reports "" for them.
func Affinity(k record.Kind) string {
	switch k {
	case record.KindInt:
		return "INTEGER"
	case record.KindReal:
		return "REAL"
	case record.KindText, record.KindList, record.KindRefList:
		return "TEXT"
	case record.KindBlob:
		return "BLOB"
	default:
		return ""
	}
}

// CreateTable renders an idempotent CREATE TABLE.
func CreateTable(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.definition()
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(table), strings.Join(defs, ", "))
}

// AddColumn renders an ALTER TABLE adding a nullable column.
func AddColumn(table string, col Column) string {
	col.PrimaryKey = false
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", Quote(table), col.definition())
}

// Upsert renders an INSERT that overwrites the row sharing the primary key.
// cols must include pk.
func Upsert(table, pk string, cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	var sets []string
	for i, c := range cols {
		quoted[i] = Quote(c)
		marks[i] = "?"
		if c != pk {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", Quote(c), Quote(c)))
		}
	}

	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		Quote(table),
		strings.Join(quoted, ", "),
		strings.Join(marks, ", "),
		Quote(pk),
		conflict)
}

// Select compiles q into a SELECT over table.
//
// Sort keys are applied in order. No implicit tie-break is added: rows equal
// under every key come back in whatever order the engine produces.
func Select(table string, q *query.Query) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(Quote(table))

	var args []any
	if p := q.Predicate(); p != nil {
		where, whereArgs, err := Compiler{}.Predicate(p)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = whereArgs
	}

	if sorts := q.Sorts(); len(sorts) > 0 {
		keys := make([]string, len(sorts))
		for i, s := range sorts {
			keys[i] = Quote(s.Field) + " " + s.Direction.String()
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(keys, ", "))
	}

	if n := q.MaxResults(); n > 0 {
		fmt.Fprintf(&b, " LIMIT %d", n)
	}
	return b.String(), args, nil
}

// SelectByIDs selects the rows of table whose primary key is in ids.
func SelectByIDs(table, pk string, ids []any) (string, []any) {
	if len(ids) == 0 {
		return fmt.Sprintf("SELECT * FROM %s WHERE 0 = 1", Quote(table)), nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	return fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)", Quote(table), Quote(pk), marks), ids
}

// Delete compiles a DELETE over table. A nil predicate deletes every row.
func Delete(table string, p query.Predicate) (string, []any, error) {
	stmt := "DELETE FROM " + Quote(table)
	if p == nil {
		return stmt, nil, nil
	}
	where, args, err := Compiler{}.Predicate(p)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return stmt + " WHERE " + where, args, nil
}

// IndexName derives a deterministic index name from the entity, the
// ordered fields and the rendered filter. Equal declarations share a name.
// Parts are digested as raw bytes: names that differ only in Unicode
// normalization are distinct columns to SQLite.
func IndexName(entity string, fields []string, where string) (string, error) {
	list := make(record.List, len(fields))
	for i, f := range fields {
		list[i] = record.Blob(f)
	}
	digest, err := record.Digest(record.DomainIndex, record.Blob(entity), list, record.Blob(where))
	if err != nil {
		return "", fmt.Errorf("index name: %w", err)
	}
	return fmt.Sprintf("idx_%s_%s", entity, digest[:16]), nil
}

// IndexFilter renders a partial index filter with inline literals.
// A nil filter renders as "".
func IndexFilter(p query.Predicate) (string, error) {
	if p == nil {
		return "", nil
	}
	where, _, err := Compiler{Inline: true}.Predicate(p)
	return where, err
}

// CreateIndex renders an idempotent CREATE INDEX. where may be empty.
func CreateIndex(name, table string, fields []string, where string) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = Quote(f)
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		Quote(name), Quote(table), strings.Join(cols, ", "))
	if where != "" {
		stmt += " WHERE " + where
	}
	return stmt
}
