package tdbcore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scigolib/tdbcore/internal/utils"
)

// Op identifies a leaf comparison operator.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpGreater
	OpLess
	OpBetween
	OpBeginsWith
	OpEndsWith
	OpContains
)

// queryNode is one node of the in-memory predicate tree: And, Or,
// Leaf or SubtableDescend. Paren/Parent are pure
// assembly-time scoping and never appear in the finished tree.
type queryNode interface {
	eval(t *Table, row int) (bool, error)
}

type andNode struct{ children []queryNode }

func (n *andNode) eval(t *Table, row int) (bool, error) {
	for _, c := range n.children {
		ok, err := c.eval(t, row)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

type orNode struct{ children []queryNode }

func (n *orNode) eval(t *Table, row int) (bool, error) {
	for _, c := range n.children {
		ok, err := c.eval(t, row)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// intLeaf resolves its column by index when built at the outer query's
// own table (col >= 0, validated at assembly time); leaves built inside
// a Subtable scope instead carry the bare column name and resolve it
// against whatever nested table governs evaluation for that row, since
// a sub-table column's per-row nested table has no schema fixed ahead
// of time in this engine (documented simplification, see DESIGN.md).
type intLeaf struct {
	col     int
	colName string
	op      Op
	v       int64
	lo, hi  int64
}

func (n *intLeaf) resolveCol(t *Table) (int, error) {
	if n.col >= 0 {
		return n.col, nil
	}
	col := t.FindColumn(n.colName)
	if col < 0 {
		return 0, utils.WrapKind("query evaluation", utils.ErrMalformedQuery,
			fmt.Errorf("unknown column %q in sub-table scope", n.colName))
	}
	return col, nil
}

func (n *intLeaf) eval(t *Table, row int) (bool, error) {
	col, err := n.resolveCol(t)
	if err != nil {
		return false, err
	}
	var got int64
	if t.ColumnType(col) == TypeBool {
		var b bool
		b, err = t.GetBool(col, row)
		if b {
			got = 1
		}
	} else {
		got, err = t.GetInt(col, row)
	}
	if err != nil {
		return false, err
	}
	switch n.op {
	case OpEqual:
		return got == n.v, nil
	case OpNotEqual:
		return got != n.v, nil
	case OpGreater:
		return got > n.v, nil
	case OpLess:
		return got < n.v, nil
	case OpBetween:
		return got >= n.lo && got <= n.hi, nil
	default:
		return false, fmt.Errorf("int leaf: unsupported op %d", n.op)
	}
}

type stringLeaf struct {
	col           int
	colName       string
	op            Op
	v             string
	caseSensitive bool
}

func (n *stringLeaf) resolveCol(t *Table) (int, error) {
	if n.col >= 0 {
		return n.col, nil
	}
	col := t.FindColumn(n.colName)
	if col < 0 {
		return 0, utils.WrapKind("query evaluation", utils.ErrMalformedQuery,
			fmt.Errorf("unknown column %q in sub-table scope", n.colName))
	}
	return col, nil
}

func (n *stringLeaf) eval(t *Table, row int) (bool, error) {
	col, err := n.resolveCol(t)
	if err != nil {
		return false, err
	}
	got, err := t.GetString(col, row)
	if err != nil {
		return false, err
	}
	want := n.v
	if !n.caseSensitive {
		got = strings.ToLower(got)
		want = strings.ToLower(want)
	}
	switch n.op {
	case OpEqual:
		return got == want, nil
	case OpNotEqual:
		return got != want, nil
	case OpBeginsWith:
		return strings.HasPrefix(got, want), nil
	case OpEndsWith:
		return strings.HasSuffix(got, want), nil
	case OpContains:
		return strings.Contains(got, want), nil
	default:
		return false, fmt.Errorf("string leaf: unsupported op %d", n.op)
	}
}

// subtableDescendNode evaluates to true if any row of the nested table
// at (col, row) satisfies inner, its existential semantics.
type subtableDescendNode struct {
	col   int
	inner queryNode
}

func (n *subtableDescendNode) eval(t *Table, row int) (bool, error) {
	nested, err := t.GetSubtable(n.col, row)
	if err != nil {
		return false, err
	}
	for r := 0; r < nested.Size(); r++ {
		ok, err := n.inner.eval(nested, r)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// frame is one level of the builder's group stack: either a plain
// parenthesised group (subtableCol < 0) or a sub-table descent scope
// opened by Subtable (subtableCol >= 0). Each frame accumulates a list
// of conjunctions; Or starts a new one, so the finished frame is an Or
// over one-or-more And groups.
type frame struct {
	subtableCol int // -1 for a plain paren group
	disjuncts   [][]queryNode
}

func newFrame(subtableCol int) *frame {
	return &frame{subtableCol: subtableCol, disjuncts: [][]queryNode{nil}}
}

func (f *frame) appendNode(n queryNode) {
	last := len(f.disjuncts) - 1
	f.disjuncts[last] = append(f.disjuncts[last], n)
}

func (f *frame) finish() queryNode {
	var orChildren []queryNode
	for _, conj := range f.disjuncts {
		switch len(conj) {
		case 0:
			continue
		case 1:
			orChildren = append(orChildren, conj[0])
		default:
			orChildren = append(orChildren, &andNode{children: conj})
		}
	}
	switch len(orChildren) {
	case 0:
		return &andNode{} // empty predicate matches every row
	case 1:
		return orChildren[0]
	default:
		return &orNode{children: orChildren}
	}
}

// QueryBuilder assembles a predicate tree over one Table.
// Structural calls (LeftParen/RightParen/Or/Subtable/Parent) and leaf
// calls (via Column) can be freely interleaved; assembly errors are
// recorded and surfaced together when FindAll finalises the tree.
type QueryBuilder struct {
	table *Table
	stack []*frame
	err   error
}

// NewQuery starts a query builder bound to table; column names are
// resolved against table's schema as each leaf is added.
func NewQuery(table *Table) *QueryBuilder {
	return &QueryBuilder{table: table, stack: []*frame{newFrame(-1)}}
}

func (q *QueryBuilder) fail(err error) *QueryBuilder {
	if q.err == nil {
		q.err = utils.WrapKind("query assembly", utils.ErrMalformedQuery, err)
	}
	return q
}

func (q *QueryBuilder) top() *frame { return q.stack[len(q.stack)-1] }

// LeftParen opens a parenthesised group.
func (q *QueryBuilder) LeftParen() *QueryBuilder {
	q.stack = append(q.stack, newFrame(-1))
	return q
}

// RightParen closes the innermost parenthesised group and attaches it
// as a single node at the now-current position.
func (q *QueryBuilder) RightParen() *QueryBuilder {
	if q.err != nil {
		return q
	}
	if len(q.stack) < 2 || q.top().subtableCol >= 0 {
		return q.fail(fmt.Errorf("unbalanced right paren"))
	}
	f := q.stack[len(q.stack)-1]
	q.stack = q.stack[:len(q.stack)-1]
	q.top().appendNode(f.finish())
	return q
}

// Or splits the current conjunction into a disjunction at the
// innermost open group (or root, if no group is open).
func (q *QueryBuilder) Or() *QueryBuilder {
	if q.err != nil {
		return q
	}
	f := q.top()
	f.disjuncts = append(f.disjuncts, nil)
	return q
}

// Subtable opens a nested scope: subsequent leaves operate on the
// sub-table rooted at (current_row, col) until the matching Parent.
func (q *QueryBuilder) Subtable(colName string) *QueryBuilder {
	if q.err != nil {
		return q
	}
	col := q.table.FindColumn(colName)
	if col < 0 {
		return q.fail(fmt.Errorf("unknown column %q", colName))
	}
	if q.table.ColumnType(col) != TypeTable {
		return q.fail(fmt.Errorf("column %q is not a sub-table column", colName))
	}
	q.stack = append(q.stack, newFrame(col))
	return q
}

// Parent closes the most recently opened sub-table scope.
func (q *QueryBuilder) Parent() *QueryBuilder {
	if q.err != nil {
		return q
	}
	if len(q.stack) < 2 || q.top().subtableCol < 0 {
		return q.fail(fmt.Errorf("unbalanced Parent (no open Subtable scope)"))
	}
	f := q.stack[len(q.stack)-1]
	q.stack = q.stack[:len(q.stack)-1]
	q.top().appendNode(&subtableDescendNode{col: f.subtableCol, inner: f.finish()})
	return q
}

// LeafBuilder is the handle returned by Column, bound to one resolved
// column (or, inside a Subtable scope, a deferred column name — see
// intLeaf/stringLeaf); its comparison methods append a leaf node and
// return the owning QueryBuilder for further chaining.
type LeafBuilder struct {
	q        *QueryBuilder
	col      int // -1 when deferred (resolved by name at eval time)
	name     string
	typ      ColumnType
	deferred bool
}

// inSubtableScope reports whether any frame currently on the stack was
// opened by Subtable, meaning leaves built right now describe the
// nested table reached at evaluation time, not q.table itself.
func (q *QueryBuilder) inSubtableScope() bool {
	for _, f := range q.stack {
		if f.subtableCol >= 0 {
			return true
		}
	}
	return false
}

// Column resolves name against the bound table's schema and returns a
// leaf handle for it. An unknown column fails the query at assembly
// time — except inside a Subtable scope, where the nested
// table's schema isn't known until evaluation, so resolution (and any
// "unknown column" failure) is deferred to FindAll time instead.
func (q *QueryBuilder) Column(name string) *LeafBuilder {
	if q.err != nil {
		return &LeafBuilder{q: q, col: -1}
	}
	if q.inSubtableScope() {
		return &LeafBuilder{q: q, col: -1, name: name, deferred: true}
	}
	col := q.table.FindColumn(name)
	if col < 0 {
		q.fail(fmt.Errorf("unknown column %q", name))
		return &LeafBuilder{q: q, col: -1}
	}
	return &LeafBuilder{q: q, col: col, name: name, typ: q.table.ColumnType(col)}
}

func (l *LeafBuilder) requireInt() bool {
	if l.deferred {
		return true
	}
	switch l.typ {
	case TypeInt, TypeEnum, TypeDate, TypeBool:
		return true
	default:
		l.q.fail(fmt.Errorf("column %q is not an integer-like column", l.name))
		return false
	}
}

func (l *LeafBuilder) requireString() bool {
	if l.deferred {
		return true
	}
	switch l.typ {
	case TypeString, TypeBinary, TypeMixed:
		return true
	default:
		l.q.fail(fmt.Errorf("column %q is not a string-like column", l.name))
		return false
	}
}

// Equal adds an integer equality leaf.
func (l *LeafBuilder) Equal(v int64) *QueryBuilder { return l.intOp(OpEqual, v, 0, 0) }

// NotEqual adds an integer inequality leaf.
func (l *LeafBuilder) NotEqual(v int64) *QueryBuilder { return l.intOp(OpNotEqual, v, 0, 0) }

// Greater adds a strict greater-than leaf.
func (l *LeafBuilder) Greater(v int64) *QueryBuilder { return l.intOp(OpGreater, v, 0, 0) }

// Less adds a strict less-than leaf.
func (l *LeafBuilder) Less(v int64) *QueryBuilder { return l.intOp(OpLess, v, 0, 0) }

// Between adds an inclusive-range leaf.
func (l *LeafBuilder) Between(lo, hi int64) *QueryBuilder { return l.intOp(OpBetween, 0, lo, hi) }

func (l *LeafBuilder) intOp(op Op, v, lo, hi int64) *QueryBuilder {
	if l.q.err != nil {
		return l.q
	}
	if !l.requireInt() {
		return l.q
	}
	l.q.top().appendNode(&intLeaf{col: l.col, colName: l.name, op: op, v: v, lo: lo, hi: hi})
	return l.q
}

// EqualBool adds a boolean equality leaf.
func (l *LeafBuilder) EqualBool(v bool) *QueryBuilder {
	var iv int64
	if v {
		iv = 1
	}
	if l.q.err != nil {
		return l.q
	}
	if !l.deferred && l.typ != TypeBool {
		return l.q.fail(fmt.Errorf("column %q is not a bool column", l.name))
	}
	l.q.top().appendNode(&intLeaf{col: l.col, colName: l.name, op: OpEqual, v: iv})
	return l.q
}

// EqualString adds a case-flagged string equality leaf.
func (l *LeafBuilder) EqualString(v string, caseSensitive bool) *QueryBuilder {
	return l.stringOp(OpEqual, v, caseSensitive)
}

// NotEqualString adds a case-flagged string inequality leaf.
func (l *LeafBuilder) NotEqualString(v string, caseSensitive bool) *QueryBuilder {
	return l.stringOp(OpNotEqual, v, caseSensitive)
}

// BeginsWith adds a case-flagged prefix-match leaf.
func (l *LeafBuilder) BeginsWith(v string, caseSensitive bool) *QueryBuilder {
	return l.stringOp(OpBeginsWith, v, caseSensitive)
}

// EndsWith adds a case-flagged suffix-match leaf.
func (l *LeafBuilder) EndsWith(v string, caseSensitive bool) *QueryBuilder {
	return l.stringOp(OpEndsWith, v, caseSensitive)
}

// Contains adds a case-flagged substring-match leaf.
func (l *LeafBuilder) Contains(v string, caseSensitive bool) *QueryBuilder {
	return l.stringOp(OpContains, v, caseSensitive)
}

func (l *LeafBuilder) stringOp(op Op, v string, caseSensitive bool) *QueryBuilder {
	if l.q.err != nil {
		return l.q
	}
	if !l.requireString() {
		return l.q
	}
	l.q.top().appendNode(&stringLeaf{col: l.col, colName: l.name, op: op, v: v, caseSensitive: caseSensitive})
	return l.q
}

// TableView is the logical result of FindAll: a row-index set over the
// source Table supporting the set operations named below. It does
// not copy any cell data; materialising a standalone Table from a view
// is explicitly a separate request, left unimplemented here.
type TableView struct {
	table *Table
	rows  []int
}

// Rows returns the view's current row indices into the source table.
func (v *TableView) Rows() []int { return v.rows }

// Len returns the number of rows currently in the view.
func (v *TableView) Len() int { return len(v.rows) }

// Sort orders the view's rows by the int column col.
func (v *TableView) Sort(col string, ascending bool) error {
	idx := v.table.FindColumn(col)
	if idx < 0 {
		return utils.WrapKind("sort", utils.ErrMalformedQuery, fmt.Errorf("unknown column %q", col))
	}
	var sortErr error
	sort.SliceStable(v.rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		a, err := v.table.GetInt(idx, v.rows[i])
		if err != nil {
			sortErr = err
			return false
		}
		b, err := v.table.GetInt(idx, v.rows[j])
		if err != nil {
			sortErr = err
			return false
		}
		if ascending {
			return a < b
		}
		return a > b
	})
	return sortErr
}

// Range restricts the view to rows [from, to).
func (v *TableView) Range(from, to int) {
	if from < 0 {
		from = 0
	}
	if to > len(v.rows) {
		to = len(v.rows)
	}
	if from >= to {
		v.rows = nil
		return
	}
	v.rows = v.rows[from:to]
}

// Limit restricts the view to its first n rows.
func (v *TableView) Limit(n int) {
	if n < len(v.rows) {
		v.rows = v.rows[:n]
	}
}

// FindAll evaluates the assembled predicate against every row of the
// bound table and returns the matching set as a TableView.
// A query left with unbalanced parens/sub-table scopes, or referencing
// an unknown column, fails here with ErrMalformedQuery.
func (q *QueryBuilder) FindAll() (*TableView, error) {
	if q.err != nil {
		return nil, q.err
	}
	if len(q.stack) != 1 {
		return nil, utils.WrapKind("query assembly", utils.ErrMalformedQuery, fmt.Errorf("unbalanced paren/subtable scope"))
	}
	root := q.top().finish()

	view := &TableView{table: q.table}
	for row := 0; row < q.table.Size(); row++ {
		ok, err := root.eval(q.table, row)
		if err != nil {
			return nil, err
		}
		if ok {
			view.rows = append(view.rows, row)
		}
	}
	return view, nil
}
