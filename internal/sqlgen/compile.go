// Package sqlgen compiles predicate trees and schema changes into SQLite
// statements.
//
// CRITICAL: Query values are parameterized, never interpolated. The only
// exception is a partial index filter, which SQLite requires to be literal;
// those literals are rendered through a fixed escaping routine.
package sqlgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/stow/query"
	"github.com/roach88/stow/record"
)

// Quote renders an identifier as a quoted SQLite identifier.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Compiler translates query predicates into SQL fragments.
type Compiler struct {
	// Inline renders literals into the SQL text instead of binding them.
	// Only used for partial index filters.
	Inline bool
}

// Predicate compiles p into a WHERE fragment and its bound arguments.
// A nil predicate compiles to an always-true fragment.
func (c Compiler) Predicate(p query.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case query.Compare:
		return c.compileCompare(pred)
	case query.In:
		return c.compileIn(pred)
	case query.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil // vacuous truth
		}
		return c.compileJunction(pred.Predicates, " AND ")
	case query.Or:
		if len(pred.Predicates) == 0 {
			return "0 = 1", nil, nil
		}
		return c.compileJunction(pred.Predicates, " OR ")
	case query.Not:
		if pred.Predicate == nil {
			return "", nil, fmt.Errorf("negation without an operand")
		}
		sql, args, err := c.Predicate(pred.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileCompare compiles a leaf comparison. Equality against null becomes
// IS NULL / IS NOT NULL.
func (c Compiler) compileCompare(cmp query.Compare) (string, []any, error) {
	if !cmp.Op.Valid() {
		return "", nil, fmt.Errorf("unsupported operator %q on %s", cmp.Op, cmp.Field)
	}
	col := Quote(cmp.Field)

	if record.IsNull(cmp.Value) {
		switch cmp.Op {
		case query.OpEq:
			return col + " IS NULL", nil, nil
		case query.OpNe:
			return col + " IS NOT NULL", nil, nil
		default:
			return "", nil, fmt.Errorf("operator %s cannot compare %s with null", cmp.Op, cmp.Field)
		}
	}

	lit, args, err := c.literal(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("compile %s: %w", cmp.Field, err)
	}
	return fmt.Sprintf("%s %s %s", col, cmp.Op, lit), args, nil
}

// compileIn compiles a set membership test. An empty set matches nothing.
func (c Compiler) compileIn(in query.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "0 = 1", nil, nil
	}

	parts := make([]string, len(in.Values))
	var args []any
	for i, v := range in.Values {
		lit, a, err := c.literal(v)
		if err != nil {
			return "", nil, fmt.Errorf("compile %s[%d]: %w", in.Field, i, err)
		}
		parts[i] = lit
		args = append(args, a...)
	}
	return fmt.Sprintf("%s IN (%s)", Quote(in.Field), strings.Join(parts, ", ")), args, nil
}

// compileJunction joins children with op. More than one child is parenthesized.
func (c Compiler) compileJunction(preds []query.Predicate, op string) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		sql, a, err := c.Predicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, op) + ")", args, nil
}

// literal returns the placeholder and argument for v, or the inline literal
// when the compiler is in inline mode.
func (c Compiler) literal(v record.Value) (string, []any, error) {
	if !c.Inline {
		arg, err := record.ToDriver(v)
		if err != nil {
			return "", nil, err
		}
		return "?", []any{arg}, nil
	}
	s, err := inlineLiteral(v)
	if err != nil {
		return "", nil, err
	}
	return s, nil, nil
}

func inlineLiteral(v record.Value) (string, error) {
	switch val := v.(type) {
	case nil, record.Null:
		return "NULL", nil
	case record.Int:
		return strconv.FormatInt(int64(val), 10), nil
	case record.Real:
		return strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case record.Text:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'", nil
	case record.Blob:
		return "X'" + hex.EncodeToString(val) + "'", nil
	case record.Ref:
		return inlineLiteral(val.ID)
	default:
		return "", fmt.Errorf("%s values cannot be written inline", record.KindOf(v))
	}
}
