// Package expr models the declarative feature filter handed to the rendering
// engine as a small AST, with a serializer for MapLibre's expression syntax and
// an evaluator for engines that run on this side of the wire.
package expr

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

func (op Op) IsValid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// Expr is a boolean predicate over a feature's properties.
type Expr interface {
	json.Marshaler
	Eval(props map[string]any) bool
	isExpr()
}

// AllOf is true when every clause is; an empty AllOf matches everything.
type AllOf struct {
	Clauses []Expr
}

// AnyOf is true when at least one clause is; an empty AnyOf matches nothing.
type AnyOf struct {
	Clauses []Expr
}

// Compare tests a feature attribute against a literal string, number or bool.
type Compare struct {
	Op    Op
	Field string
	Value any
}

func (AllOf) isExpr()   {}
func (AnyOf) isExpr()   {}
func (Compare) isExpr() {}

func All(clauses ...Expr) AllOf { return AllOf{Clauses: clauses} }
func Any(clauses ...Expr) AnyOf { return AnyOf{Clauses: clauses} }

func Eq(field string, v any) Compare  { return Compare{Op: OpEq, Field: field, Value: v} }
func Lt(field string, v any) Compare  { return Compare{Op: OpLt, Field: field, Value: v} }
func Lte(field string, v any) Compare { return Compare{Op: OpLte, Field: field, Value: v} }
func Gt(field string, v any) Compare  { return Compare{Op: OpGt, Field: field, Value: v} }
func Gte(field string, v any) Compare { return Compare{Op: OpGte, Field: field, Value: v} }

func (a AllOf) MarshalJSON() ([]byte, error) {
	return marshalGroup("all", a.Clauses)
}

func (a AnyOf) MarshalJSON() ([]byte, error) {
	return marshalGroup("any", a.Clauses)
}

func marshalGroup(head string, clauses []Expr) ([]byte, error) {
	out := make([]any, 0, len(clauses)+1)
	out = append(out, head)
	for _, c := range clauses {
		out = append(out, c)
	}
	return json.Marshal(out)
}

func (c Compare) MarshalJSON() ([]byte, error) {
	if !c.Op.IsValid() {
		return nil, fmt.Errorf("expr: invalid operator %q", c.Op)
	}
	if _, ok := literal(c.Value); !ok {
		return nil, fmt.Errorf("expr: unsupported literal %T for %q", c.Value, c.Field)
	}
	return json.Marshal([]any{string(c.Op), []string{"get", c.Field}, c.Value})
}

func (a AllOf) Eval(props map[string]any) bool {
	for _, c := range a.Clauses {
		if !c.Eval(props) {
			return false
		}
	}
	return true
}

func (a AnyOf) Eval(props map[string]any) bool {
	for _, c := range a.Clauses {
		if c.Eval(props) {
			return true
		}
	}
	return false
}

func (c Compare) Eval(props map[string]any) bool {
	got, present := props[c.Field]
	if !present || got == nil {
		return false
	}
	lhs, ok := literal(got)
	if !ok {
		return false
	}
	rhs, ok := literal(c.Value)
	if !ok {
		return false
	}

	if lhs.kind != rhs.kind {
		return c.Op == OpNe
	}
	cmp := lhs.compare(rhs)
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	}
	if lhs.kind == kindBool {
		return false
	}
	switch c.Op {
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

// Fingerprint hashes the serialized form; equal expressions share a fingerprint.
func Fingerprint(e Expr) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16), nil
}

type kind int

const (
	kindString kind = iota
	kindNumber
	kindBool
)

type value struct {
	kind kind
	s    string
	n    float64
	b    bool
}

func (v value) compare(o value) int {
	switch v.kind {
	case kindNumber:
		switch {
		case v.n < o.n:
			return -1
		case v.n > o.n:
			return 1
		}
		return 0
	case kindBool:
		if v.b == o.b {
			return 0
		}
		if !v.b {
			return -1
		}
		return 1
	default:
		switch {
		case v.s < o.s:
			return -1
		case v.s > o.s:
			return 1
		}
		return 0
	}
}

func literal(x any) (value, bool) {
	switch t := x.(type) {
	case string:
		return value{kind: kindString, s: t}, true
	case bool:
		return value{kind: kindBool, b: t}, true
	case float64:
		return value{kind: kindNumber, n: t}, true
	case float32:
		return value{kind: kindNumber, n: float64(t)}, true
	case int:
		return value{kind: kindNumber, n: float64(t)}, true
	case int64:
		return value{kind: kindNumber, n: float64(t)}, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return value{}, false
		}
		return value{kind: kindNumber, n: f}, true
	}
	return value{}, false
}
