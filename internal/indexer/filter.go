package indexer

// FilterOp is one comparison operator usable in a query filter clause.
type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNeq FilterOp = "neq"
	OpGt  FilterOp = "gt"
	OpGte FilterOp = "gte"
	OpLt  FilterOp = "lt"
	OpLte FilterOp = "lte"
	OpIn  FilterOp = "in"
)

// FilterClause is one `(field, op, value)` triple over persisted metadata.
type FilterClause struct {
	Field string
	Op    FilterOp
	Value any
}

// FilterGroup is a conjunction (AND) of clauses.
type FilterGroup []FilterClause

// Filter is a disjunction (OR) of FilterGroups — the DNF spec.md's query
// operation names. A nil or empty Filter matches everything.
type Filter []FilterGroup
