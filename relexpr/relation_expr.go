package relexpr

// RelationExpr is the relational algebra tree plan_view_query produces: a
// recursive structure of Get/Project/Filter/Map/Join/Union/Distinct/Reduce/
// Negate/Threshold/Constant nodes (spec §3). Children are plain pointers;
// there is no arena/boxing scheme, following the teacher's preference for
// direct struct graphs over an indirection layer (spec §9 notes this is an
// implementation choice, not a requirement).
type RelationExpr interface {
	relationExpr()
}

// Get references a catalog object by name, resolved against the catalog at
// plan time (a Get never survives a catalog drop without the dependent view
// having been removed first — see catalog.Store's Restrict/Cascade modes).
type Get struct {
	Name string
}

func (Get) relationExpr() {}

// Project keeps only the listed output-column indices of Input, in order
// (duplicates and reordering are both legal, e.g. for `SELECT b, a, a`).
type Project struct {
	Input   RelationExpr
	Outputs []int
}

func (Project) relationExpr() {}

// Filter keeps only the rows of Input for which every Predicate evaluates
// true (an implicit AND across the slice, matching how WHERE/HAVING/JOIN
// ON clauses are planned one conjunct at a time).
type Filter struct {
	Input      RelationExpr
	Predicates []ScalarExpr
}

func (Filter) relationExpr() {}

// Map appends the result of each Scalars expression as a new trailing
// column of Input.
type Map struct {
	Input   RelationExpr
	Scalars []ScalarExpr
}

func (Map) relationExpr() {}

// Join is the cross product of Left and Right with Predicate applied as a
// filter over the concatenated row (CROSS joins carry a literal-true
// Predicate). OUTER joins are lowered to a Union over this node and the
// nullable-extended non-matching side — see planner/join.go.
type Join struct {
	Left      RelationExpr
	Right     RelationExpr
	Predicate ScalarExpr
}

func (Join) relationExpr() {}

// Union concatenates the rows (with multiplicities) of Left and Right; both
// must share an output arity and, column-wise, scalar type.
type Union struct {
	Left  RelationExpr
	Right RelationExpr
}

func (Union) relationExpr() {}

// Distinct consolidates Input down to one copy of each distinct row.
type Distinct struct {
	Input RelationExpr
}

func (Distinct) relationExpr() {}

// Reduce groups Input by GroupKey (column indices into Input) and computes
// one output row per group: the group key columns followed by one column
// per Aggregate, in order.
type Reduce struct {
	Input      RelationExpr
	GroupKey   []int
	Aggregates []AggregateExpr
}

func (Reduce) relationExpr() {}

// Negate flips the multiplicity sign of every row of Input. Paired with
// Union and Threshold it implements an anti-join: Threshold(Union(left,
// Negate(matched))) keeps exactly the left rows with zero matches, which is
// how OUTER joins are lowered (see planner/join.go).
type Negate struct {
	Input RelationExpr
}

func (Negate) relationExpr() {}

// Threshold discards rows whose multiplicity is negative, clamping at zero.
type Threshold struct {
	Input RelationExpr
}

func (Threshold) relationExpr() {}

// Constant is a fixed, literal set of rows with no input — the FROM-less
// `dual` relation and VALUES-shaped expressions both lower to this.
type Constant struct {
	Rows []ConstantRow
	Typ  RelationType
}

func (Constant) relationExpr() {}

// ConstantRow pairs a literal row with its multiplicity, matching the
// RowDiff shape used everywhere else a (row, diff) pair is needed.
type ConstantRow struct {
	Row  []ScalarExpr
	Diff int64
}
