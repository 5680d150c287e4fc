package fuzzy

import (
	"fmt"
	"strings"
)

type op int

const (
	opNone op = iota
	opIs
	opAnd
	opOr
)

// Expr is an antecedent expression over (variable, term) references. Names
// are only checked when the expression is compiled into a RuleBase.
type Expr struct {
	op       op
	variable string
	term     string
	children []Expr
}

// Is references the degree of term in variable.
func Is(variable, term string) Expr {
	return Expr{op: opIs, variable: variable, term: term}
}

// And is the minimum of its children.
func And(exprs ...Expr) Expr {
	return Expr{op: opAnd, children: exprs}
}

// Or is the maximum of its children.
func Or(exprs ...Expr) Expr {
	return Expr{op: opOr, children: exprs}
}

func (e Expr) String() string {
	switch e.op {
	case opIs:
		return e.variable + "[" + e.term + "]"
	case opAnd, opOr:
		sep := " & "
		if e.op == opOr {
			sep = " | "
		}
		parts := make([]string, len(e.children))
		for i := range e.children {
			parts[i] = e.children[i].String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	default:
		return "<empty>"
	}
}

// Assignment sets a consequent term as a rule output.
type Assignment struct {
	Variable string
	Term     string
}

func Then(variable, term string) Assignment {
	return Assignment{Variable: variable, Term: term}
}

func (a Assignment) String() string {
	return a.Variable + "[" + a.Term + "]"
}

type Rule struct {
	Name string
	If   Expr
	Then []Assignment
}

func (r Rule) String() string {
	parts := make([]string, len(r.Then))
	for i := range r.Then {
		parts[i] = r.Then[i].String()
	}
	return fmt.Sprintf("IF %s THEN %s", r.If, strings.Join(parts, ", "))
}

// node is a compiled Expr with names resolved to indices.
type node struct {
	op       op
	variable int
	term     int
	children []node
}

// eval returns the firing strength given fuzzified degrees indexed by
// antecedent then term.
func (n node) eval(degrees [][]float64) float64 {
	switch n.op {
	case opIs:
		return degrees[n.variable][n.term]
	case opAnd:
		strength := 1.0
		for i := range n.children {
			strength = min(strength, n.children[i].eval(degrees))
		}
		return strength
	default:
		strength := 0.0
		for i := range n.children {
			strength = max(strength, n.children[i].eval(degrees))
		}
		return strength
	}
}

func (n node) visit(f func(variable int)) {
	if n.op == opIs {
		f(n.variable)
		return
	}
	for i := range n.children {
		n.children[i].visit(f)
	}
}

type termRef struct {
	variable int
	term     int
}

type compiledRule struct {
	name string
	cond node
	then []termRef
}
