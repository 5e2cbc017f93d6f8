package query

// Direction orders a sort key.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Sort is one sort key.
type Sort struct {
	Field     string
	Direction Direction
}

// Query is a predicate with optional sort keys and result limit.
//
// Queries are built fluently:
//
//	q := query.Where(query.Gt("age", 2)).SortBy("name", query.Ascending).Limit(10)
//
// Repeated Filter calls are combined with AND. Sort keys apply in call
// order; rows equal under every key come back in an unspecified order.
type Query struct {
	filters []Predicate
	sorts   []Sort
	limit   int
}

// New creates an empty query matching every row.
func New() *Query {
	return &Query{}
}

// Where creates a query filtered by p.
func Where(p Predicate) *Query {
	return New().Filter(p)
}

// Filter adds p to the query. A nil p is ignored.
func (q *Query) Filter(p Predicate) *Query {
	if p != nil {
		q.filters = append(q.filters, p)
	}
	return q
}

// SortBy appends a sort key.
func (q *Query) SortBy(field string, dir Direction) *Query {
	q.sorts = append(q.sorts, Sort{Field: field, Direction: dir})
	return q
}

// Limit caps the number of results. Zero or negative means no limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Predicate returns the combined filter, or nil when there is none.
func (q *Query) Predicate() Predicate {
	if q == nil {
		return nil
	}
	switch len(q.filters) {
	case 0:
		return nil
	case 1:
		return q.filters[0]
	default:
		preds := make([]Predicate, len(q.filters))
		copy(preds, q.filters)
		return And{Predicates: preds}
	}
}

// Sorts returns the sort keys in application order.
func (q *Query) Sorts() []Sort {
	if q == nil {
		return nil
	}
	out := make([]Sort, len(q.sorts))
	copy(out, q.sorts)
	return out
}

// MaxResults returns the result limit, zero when unlimited.
func (q *Query) MaxResults() int {
	if q == nil || q.limit < 0 {
		return 0
	}
	return q.limit
}
