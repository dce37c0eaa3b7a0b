// Package lql implements the Lattice query language, a textual form of the filter
// combinators. Expressions look like
//
//	WITH(position, velocity) & !CHANGED(health) | ALL()
//
// with & binding no tighter than | (evaluation is left to right, use parentheses).
// Component names are validated against the world through a resolver, so a query over an
// unregistered component fails at parse time rather than matching nothing.
package lql

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/lattice/filter"
)

type lqlOperator int

const (
	opAnd lqlOperator = iota
	opOr
)

var operatorMap = map[string]lqlOperator{"&": opAnd, "|": opOr}

// Capture tells the parser how to turn an operator token into an lqlOperator.
func (o *lqlOperator) Capture(s []string) error {
	if len(s) == 0 {
		return eris.New("invalid operator")
	}
	operator, ok := operatorMap[s[0]]
	if !ok {
		return eris.New("invalid operator")
	}
	*o = operator
	return nil
}

type lqlComponent struct {
	Name string `@Ident`
}

type lqlAll struct{}

type lqlNot struct {
	SubExpression *lqlValue `"!" @@`
}

type lqlWith struct {
	Components []*lqlComponent `"WITH" "(" (@@ ",")* @@ ")"`
}

type lqlWithout struct {
	Components []*lqlComponent `"WITHOUT" "(" (@@ ",")* @@ ")"`
}

type lqlAdded struct {
	Components []*lqlComponent `"ADDED" "(" (@@ ",")* @@ ")"`
}

type lqlChanged struct {
	Components []*lqlComponent `"CHANGED" "(" (@@ ",")* @@ ")"`
}

type lqlValue struct {
	All           *lqlAll     `@("ALL" "(" ")")`
	With          *lqlWith    `| @@`
	Without       *lqlWithout `| @@`
	Added         *lqlAdded   `| @@`
	Changed       *lqlChanged `| @@`
	Not           *lqlNot     `| @@`
	Subexpression *lqlTerm    `| "(" @@ ")"`
}

type lqlFactor struct {
	Base *lqlValue `@@`
}

type lqlOpFactor struct {
	Operator lqlOperator `@("&" | "|")`
	Factor   *lqlFactor  `@@`
}

type lqlTerm struct {
	Left  *lqlFactor     `@@`
	Right []*lqlOpFactor `@@*`
}

// Display

func (o lqlOperator) String() string {
	switch o {
	case opAnd:
		return "&"
	case opOr:
		return "|"
	}
	panic("unsupported operator")
}

func joinComponents(components []*lqlComponent) string {
	names := make([]string, 0, len(components))
	for _, comp := range components {
		names = append(names, comp.Name)
	}
	return strings.Join(names, ", ")
}

func (a *lqlAll) String() string { return "ALL()" }

func (w *lqlWith) String() string { return "WITH(" + joinComponents(w.Components) + ")" }

func (w *lqlWithout) String() string { return "WITHOUT(" + joinComponents(w.Components) + ")" }

func (a *lqlAdded) String() string { return "ADDED(" + joinComponents(a.Components) + ")" }

func (c *lqlChanged) String() string { return "CHANGED(" + joinComponents(c.Components) + ")" }

func (v *lqlValue) String() string {
	switch {
	case v.All != nil:
		return v.All.String()
	case v.With != nil:
		return v.With.String()
	case v.Without != nil:
		return v.Without.String()
	case v.Added != nil:
		return v.Added.String()
	case v.Changed != nil:
		return v.Changed.String()
	case v.Not != nil:
		return "!(" + v.Not.SubExpression.String() + ")"
	case v.Subexpression != nil:
		return "(" + v.Subexpression.String() + ")"
	default:
		panic("malformed query AST, check the grammar in lql.go")
	}
}

func (f *lqlFactor) String() string {
	return f.Base.String()
}

func (o *lqlOpFactor) String() string {
	return fmt.Sprintf("%s %s", o.Operator, o.Factor)
}

func (t *lqlTerm) String() string {
	out := []string{t.Left.String()}
	for _, r := range t.Right {
		out = append(out, r.String())
	}
	return strings.Join(out, " ")
}

var parser = participle.MustBuild[lqlTerm]()

// resolveAll validates every component name through the resolver and returns the names.
func resolveAll(components []*lqlComponent, resolve func(name string) error) ([]string, error) {
	names := make([]string, 0, len(components))
	for _, comp := range components {
		if err := resolve(comp.Name); err != nil {
			return nil, eris.Wrapf(err, "unknown component %q in query", comp.Name)
		}
		names = append(names, comp.Name)
	}
	return names, nil
}

// listToFilter expands a multi-component keyword into a conjunction of single-component
// filters, so WITH(a, b) means WITH(a) & WITH(b).
func listToFilter(
	components []*lqlComponent,
	resolve func(name string) error,
	single func(name string) filter.Filter,
) (filter.Filter, error) {
	if len(components) == 0 {
		return nil, eris.New("component list cannot be empty")
	}
	names, err := resolveAll(components, resolve)
	if err != nil {
		return nil, err
	}
	if len(names) == 1 {
		return single(names[0]), nil
	}
	filters := make([]filter.Filter, 0, len(names))
	for _, name := range names {
		filters = append(filters, single(name))
	}
	return filter.And(filters...), nil
}

func valueToFilter(value *lqlValue, resolve func(name string) error) (filter.Filter, error) {
	switch {
	case value.All != nil:
		return filter.All(), nil
	case value.With != nil:
		return listToFilter(value.With.Components, resolve, filter.WithNamed)
	case value.Without != nil:
		return listToFilter(value.Without.Components, resolve, filter.WithoutNamed)
	case value.Added != nil:
		return listToFilter(value.Added.Components, resolve, filter.AddedNamed)
	case value.Changed != nil:
		return listToFilter(value.Changed.Components, resolve, filter.ChangedNamed)
	case value.Not != nil:
		sub, err := valueToFilter(value.Not.SubExpression, resolve)
		if err != nil {
			return nil, err
		}
		return filter.Not(sub), nil
	case value.Subexpression != nil:
		return termToFilter(value.Subexpression, resolve)
	default:
		return nil, eris.New("unknown query AST node")
	}
}

func termToFilter(term *lqlTerm, resolve func(name string) error) (filter.Filter, error) {
	if term.Left == nil {
		return nil, eris.New("not enough values in expression")
	}
	acc, err := valueToFilter(term.Left.Base, resolve)
	if err != nil {
		return nil, err
	}
	for _, opFactor := range term.Right {
		next, err := valueToFilter(opFactor.Factor.Base, resolve)
		if err != nil {
			return nil, err
		}
		switch opFactor.Operator {
		case opAnd:
			acc = filter.And(acc, next)
		case opOr:
			acc = filter.Or(acc, next)
		default:
			return nil, eris.New("invalid operator")
		}
	}
	return acc, nil
}

// Parse compiles a query expression into a filter. The resolver is consulted once per
// component name and any error it returns fails the whole parse.
func Parse(text string, resolve func(name string) error) (filter.Filter, error) {
	term, err := parser.ParseString("", text)
	if err != nil {
		return nil, eris.Wrap(err, "malformed query")
	}
	return termToFilter(term, resolve)
}
