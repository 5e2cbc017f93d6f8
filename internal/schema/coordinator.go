// Package schema keeps each entity's table in step with the shape of its
// default instance: it creates tables, adds columns, and builds indexes.
//
// Migration is conservative. Columns the current shape declares but the
// table lacks are added as nullable; columns the table has but the shape no
// longer declares are retained. Columns are never dropped.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/stow/fault"
	"github.com/roach88/stow/internal/sqlgen"
	"github.com/roach88/stow/internal/store"
	"github.com/roach88/stow/mapping"
	"github.com/roach88/stow/query"
	"github.com/roach88/stow/record"
)

// State is the schema lifecycle of one entity within this process.
type State int

const (
	// StateUnknown means the table has not been checked yet.
	StateUnknown State = iota

	// StateCreated means the table matches the default-instance shape.
	StateCreated

	// StateMigrated means columns were reconciled with a new shape.
	StateMigrated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateMigrated:
		return "migrated"
	default:
		return "unknown"
	}
}

// CatalogTable records the kind of every column stow created.
const CatalogTable = "_stow_columns"

const catalogDDL = `CREATE TABLE IF NOT EXISTS "_stow_columns" (
	"entity" TEXT NOT NULL,
	"name" TEXT NOT NULL,
	"kind" TEXT NOT NULL,
	"ref" TEXT NOT NULL DEFAULT '',
	PRIMARY KEY ("entity", "name")
)`

const catalogUpsert = `INSERT INTO "_stow_columns" ("entity", "name", "kind", "ref") VALUES (?, ?, ?, ?)
	ON CONFLICT ("entity", "name") DO UPDATE SET "kind" = excluded."kind", "ref" = excluded."ref"`

// Coordinator ensures tables, columns and indexes for registered entities.
//
// Ensured entities are cached, so each entity is checked against the
// database once per process. Thread-safety: Coordinator is safe for
// concurrent use, though the engine drives it from a single goroutine.
type Coordinator struct {
	registry *mapping.Registry
	logger   *slog.Logger

	mu          sync.Mutex
	states      map[string]State
	descriptors map[string]*Descriptor
}

// NewCoordinator creates a coordinator over the entities in registry.
// A nil logger uses slog.Default().
func NewCoordinator(registry *mapping.Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registry:    registry,
		logger:      logger,
		states:      make(map[string]State),
		descriptors: make(map[string]*Descriptor),
	}
}

// State returns the lifecycle state of entity.
func (c *Coordinator) State(entity string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[entity]
}

// Describe returns the descriptor of entity without touching the database.
func (c *Coordinator) Describe(entity string) (*Descriptor, error) {
	c.mu.Lock()
	d, ok := c.descriptors[entity]
	c.mu.Unlock()
	if ok {
		return d, nil
	}

	d, err := Describe(c.registry, entity)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.descriptors[entity] = d
	c.mu.Unlock()
	return d, nil
}

// Ensure makes the tables of entity and every entity it references match
// their current shapes, and creates their declared indexes. All changes
// happen in one transaction; on error nothing is applied.
func (c *Coordinator) Ensure(ctx context.Context, conn store.Conn, entity string) (*Descriptor, error) {
	root, err := c.Describe(entity)
	if err != nil {
		return nil, err
	}

	pending, err := c.pending(root)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return root, nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.Exec(ctx, catalogDDL); err != nil {
		return nil, fault.Wrap(err, "create column catalog")
	}

	states := make(map[string]State, len(pending))
	for _, d := range pending {
		state, err := c.ensureTable(ctx, tx, d)
		if err != nil {
			return nil, err
		}
		for _, idx := range d.Indexes {
			if _, err := ensureIndex(ctx, tx, d, idx.Fields, idx.Filter); err != nil {
				return nil, err
			}
		}
		states[d.Entity] = state
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	for e, s := range states {
		c.states[e] = s
	}
	c.mu.Unlock()

	for e, s := range states {
		c.logger.Debug("schema ensured", "entity", e, "state", s.String())
	}
	return root, nil
}

// pending collects root and every entity reachable through references that
// has not been ensured yet, root first.
func (c *Coordinator) pending(root *Descriptor) ([]*Descriptor, error) {
	var out []*Descriptor
	seen := map[string]bool{}
	queue := []*Descriptor{root}

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if seen[d.Entity] {
			continue
		}
		seen[d.Entity] = true

		if c.State(d.Entity) == StateUnknown {
			out = append(out, d)
		}
		for _, target := range d.Nested() {
			if seen[target] {
				continue
			}
			nd, err := c.Describe(target)
			if err != nil {
				return nil, fault.Wrap(err, fmt.Sprintf("describe nested %s of %s", target, d.Entity))
			}
			queue = append(queue, nd)
		}
	}
	return out, nil
}

// ensureTable creates or reconciles the table of d.
func (c *Coordinator) ensureTable(ctx context.Context, ex store.Executor, d *Descriptor) (State, error) {
	existing, err := Columns(ctx, ex, d.Entity)
	if err != nil {
		return StateUnknown, err
	}

	if len(existing) == 0 {
		if _, err := ex.Exec(ctx, sqlgen.CreateTable(d.Entity, d.sqlColumns())); err != nil {
			return StateUnknown, fault.Wrap(err, "create table "+d.Entity)
		}
		for _, col := range d.Columns {
			if err := recordColumn(ctx, ex, d.Entity, col); err != nil {
				return StateUnknown, err
			}
		}
		c.logger.Info("table created", "entity", d.Entity, "columns", len(d.Columns))
		return StateCreated, nil
	}

	have := make(map[string]ColumnInfo, len(existing))
	for _, info := range existing {
		have[info.Name] = info
		if info.PrimaryKey && info.Name != d.Identifier {
			return StateUnknown, fault.SchemaConflict(d.Entity, d.Identifier,
				fmt.Sprintf("table is keyed on %q", info.Name))
		}
	}
	if info, ok := have[d.Identifier]; !ok || !info.PrimaryKey {
		return StateUnknown, fault.SchemaConflict(d.Entity, d.Identifier, "identifier is not the table's primary key")
	}

	state := StateCreated
	for _, col := range d.Columns {
		info, ok := have[col.Name]
		if !ok {
			if _, err := ex.Exec(ctx, sqlgen.AddColumn(d.Entity, col.sqlColumn())); err != nil {
				return StateUnknown, fault.Wrap(err, fmt.Sprintf("add column %s.%s", d.Entity, col.Name))
			}
			if err := recordColumn(ctx, ex, d.Entity, col); err != nil {
				return StateUnknown, err
			}
			c.logger.Info("column added", "entity", d.Entity, "column", col.Name, "kind", col.Kind.String())
			state = StateMigrated
			continue
		}

		if err := checkCompatible(d.Entity, col, info); err != nil {
			return StateUnknown, err
		}
		if info.Kind == "" || (col.Kind != record.KindNull && info.Kind != col.Kind.String()) {
			if err := recordColumn(ctx, ex, d.Entity, col); err != nil {
				return StateUnknown, err
			}
		}
	}

	for _, info := range existing {
		if !d.Has(info.Name) {
			c.logger.Debug("column retained", "entity", d.Entity, "column", info.Name)
		}
	}
	return state, nil
}

// checkCompatible rejects a column whose stored values cannot be read under
// the declared kind. Null on either side matches anything. Within the scalar
// class the column's affinity must match, except that an integer column
// may be read as real.
func checkCompatible(entity string, col Column, info ColumnInfo) error {
	if info.Kind == "" {
		return nil
	}
	old, err := record.ParseKind(info.Kind)
	if err != nil {
		return fault.SchemaConflict(entity, col.Name, err.Error())
	}
	if old == record.KindNull || col.Kind == record.KindNull {
		return nil
	}
	if old.Class() != col.Kind.Class() {
		return fault.SchemaConflict(entity, col.Name,
			fmt.Sprintf("column holds %s values, type now declares %s", old, col.Kind))
	}
	if info.Type != "" && col.Affinity != "" && !strings.EqualFold(info.Type, col.Affinity) &&
		!widens(info.Type, col.Affinity) {
		return fault.SchemaConflict(entity, col.Name,
			fmt.Sprintf("column has %s affinity, type now declares %s", info.Type, col.Affinity))
	}
	if info.Ref != "" && col.Ref != "" && info.Ref != col.Ref {
		return fault.SchemaConflict(entity, col.Name,
			fmt.Sprintf("column references %s, type now references %s", info.Ref, col.Ref))
	}
	return nil
}

// widens reports whether values declared with affinity to read back
// unchanged from a column declared with from. Integers read as reals.
func widens(from, to string) bool {
	return strings.EqualFold(from, "INTEGER") && strings.EqualFold(to, "REAL")
}

func recordColumn(ctx context.Context, ex store.Executor, entity string, col Column) error {
	if _, err := ex.Exec(ctx, catalogUpsert, entity, col.Name, col.Kind.String(), col.Ref); err != nil {
		return fault.Wrap(err, fmt.Sprintf("record column %s.%s", entity, col.Name))
	}
	return nil
}

// CreateIndex ensures entity's table and creates an index over fields,
// optionally restricted by filter. Creating the same index twice is a
// no-op. It returns the index name.
func (c *Coordinator) CreateIndex(ctx context.Context, conn store.Conn, entity string, fields []string, filter query.Predicate) (string, error) {
	d, err := c.Ensure(ctx, conn, entity)
	if err != nil {
		return "", err
	}
	name, err := ensureIndex(ctx, conn, d, fields, filter)
	if err != nil {
		return "", err
	}
	c.logger.Debug("index ensured", "entity", entity, "index", name)
	return name, nil
}

// ValidateIndex checks an index definition against d without touching the
// database.
func (d *Descriptor) ValidateIndex(fields []string, filter query.Predicate) error {
	if len(fields) == 0 {
		return fault.SchemaConflict(d.Entity, "", "index declares no fields")
	}
	for _, f := range fields {
		if !d.Has(f) {
			return fault.UnknownFilterField(d.Entity, f)
		}
	}
	return query.ValidatePredicate(filter, d.Entity, d)
}

func ensureIndex(ctx context.Context, ex store.Executor, d *Descriptor, fields []string, filter query.Predicate) (string, error) {
	if err := d.ValidateIndex(fields, filter); err != nil {
		return "", err
	}

	where, err := sqlgen.IndexFilter(filter)
	if err != nil {
		return "", fault.Wrap(err, "render index filter")
	}
	name, err := sqlgen.IndexName(d.Entity, fields, where)
	if err != nil {
		return "", fault.Wrap(err, "name index")
	}
	if _, err := ex.Exec(ctx, sqlgen.CreateIndex(name, d.Entity, fields, where)); err != nil {
		return "", fault.Wrap(err, "create index "+name)
	}
	return name, nil
}
