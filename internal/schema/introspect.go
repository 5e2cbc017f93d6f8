package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/stow/internal/store"
)

// ColumnInfo describes a column as it exists in the database.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primary_key"`

	// Kind and Ref come from the column catalog; Kind is empty for columns
	// stow did not create.
	Kind string `json:"kind,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

// IndexInfo describes an index created with CREATE INDEX.
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Partial bool     `json:"partial"`
}

// Tables lists entity tables, sorted. SQLite internals and the column
// catalog are excluded.
func Tables(ctx context.Context, ex store.Executor) ([]string, error) {
	res, err := ex.Query(ctx, `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' AND name != ?
		ORDER BY name`, CatalogTable)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, asString(row[0]))
	}
	return out, nil
}

// Columns lists the columns of table in table order. A missing table has
// no columns.
func Columns(ctx context.Context, ex store.Executor, table string) ([]ColumnInfo, error) {
	res, err := ex.Query(ctx, `SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}

	out := make([]ColumnInfo, len(res.Rows))
	for i, row := range res.Rows {
		out[i] = ColumnInfo{
			Name:       asString(row[0]),
			Type:       asString(row[1]),
			PrimaryKey: asInt(row[2]) > 0,
		}
	}

	hasCatalog, err := tableExists(ctx, ex, CatalogTable)
	if err != nil {
		return nil, err
	}
	if !hasCatalog {
		return out, nil
	}

	cat, err := ex.Query(ctx, `SELECT "name", "kind", "ref" FROM "_stow_columns" WHERE "entity" = ?`, table)
	if err != nil {
		return nil, fmt.Errorf("read column catalog %s: %w", table, err)
	}
	kinds := make(map[string][2]string, len(cat.Rows))
	for _, row := range cat.Rows {
		kinds[asString(row[0])] = [2]string{asString(row[1]), asString(row[2])}
	}
	for i := range out {
		if k, ok := kinds[out[i].Name]; ok {
			out[i].Kind, out[i].Ref = k[0], k[1]
		}
	}
	return out, nil
}

// Indexes lists the explicitly created indexes of table, sorted by name.
func Indexes(ctx context.Context, ex store.Executor, table string) ([]IndexInfo, error) {
	res, err := ex.Query(ctx, `SELECT name, partial FROM pragma_index_list(?) WHERE origin = 'c' ORDER BY name`, table)
	if err != nil {
		return nil, fmt.Errorf("index list %s: %w", table, err)
	}

	out := make([]IndexInfo, 0, len(res.Rows))
	for _, row := range res.Rows {
		info := IndexInfo{Name: asString(row[0]), Partial: asInt(row[1]) > 0}
		cols, err := ex.Query(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, info.Name)
		if err != nil {
			return nil, fmt.Errorf("index info %s: %w", info.Name, err)
		}
		for _, c := range cols.Rows {
			info.Columns = append(info.Columns, asString(c[0]))
		}
		out = append(out, info)
	}
	return out, nil
}

func tableExists(ctx context.Context, ex store.Executor, name string) (bool, error) {
	res, err := ex.Query(ctx, `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return len(res.Rows) > 0, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func asInt(v any) int64 {
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}
