package record

import (
	"errors"
	"fmt"
)

// Scans filter rows with a small typed expression tree: constants, attribute
// references, per-type comparisons and boolean connectives.

var ErrBadExpr = errors.New("record: invalid expression")

// CmpOp is a comparison over two values of the same type.
type CmpOp int

const (
	CmpEqual CmpOp = iota
	CmpLess
	CmpGreater
)

func (op CmpOp) String() string {
	switch op {
	case CmpEqual:
		return "="
	case CmpLess:
		return "<"
	case CmpGreater:
		return ">"
	default:
		return "?"
	}
}

// BoolOp is a connective over BOOL operands.
type BoolOp int

const (
	OpAnd BoolOp = iota
	OpOr
	OpNot
)

// Expr is a predicate tree node. Exactly one of the constructors below
// produces each shape; a nil *Expr means "all rows" to the scan engine.
type Expr struct {
	kind     exprKind
	constant Value
	attrIdx  int
	cmp      CmpOp
	boolOp   BoolOp
	left     *Expr
	right    *Expr // nil for OpNot
}

type exprKind int

const (
	exprConst exprKind = iota
	exprAttr
	exprCmp
	exprBool
)

// Const wraps a constant value.
func Const(v Value) *Expr { return &Expr{kind: exprConst, constant: v} }

// AttrRef references attribute i of the scanned record.
func AttrRef(i int) *Expr { return &Expr{kind: exprAttr, attrIdx: i} }

// Cmp compares two subexpressions with the given operator.
func Cmp(op CmpOp, left, right *Expr) *Expr {
	return &Expr{kind: exprCmp, cmp: op, left: left, right: right}
}

// And, Or and Not combine BOOL subexpressions.
func And(left, right *Expr) *Expr {
	return &Expr{kind: exprBool, boolOp: OpAnd, left: left, right: right}
}

func Or(left, right *Expr) *Expr {
	return &Expr{kind: exprBool, boolOp: OpOr, left: left, right: right}
}

func Not(e *Expr) *Expr { return &Expr{kind: exprBool, boolOp: OpNot, left: e} }

// EvalExpr evaluates the expression against one record. Predicates used by
// scans must yield a BOOL value.
func EvalExpr(rec *Record, s Schema, e *Expr) (Value, error) {
	if e == nil {
		return Value{}, fmt.Errorf("%w: nil expression", ErrBadExpr)
	}
	switch e.kind {
	case exprConst:
		return e.constant, nil

	case exprAttr:
		return GetAttr(rec, s, e.attrIdx)

	case exprCmp:
		l, err := EvalExpr(rec, s, e.left)
		if err != nil {
			return Value{}, err
		}
		r, err := EvalExpr(rec, s, e.right)
		if err != nil {
			return Value{}, err
		}
		var res bool
		switch e.cmp {
		case CmpEqual:
			res, err = l.Equals(r)
		case CmpLess:
			res, err = l.Less(r)
		case CmpGreater:
			res, err = r.Less(l)
		default:
			return Value{}, fmt.Errorf("%w: unknown comparison %d", ErrBadExpr, e.cmp)
		}
		if err != nil {
			return Value{}, err
		}
		return BoolValue(res), nil

	case exprBool:
		l, err := EvalExpr(rec, s, e.left)
		if err != nil {
			return Value{}, err
		}
		if l.Type != TypeBool {
			return Value{}, fmt.Errorf("%w: %s operand is %s, want BOOL", ErrBadExpr, "boolean", l.Type)
		}
		switch e.boolOp {
		case OpNot:
			return BoolValue(!l.B), nil
		case OpAnd:
			if !l.B {
				return BoolValue(false), nil
			}
		case OpOr:
			if l.B {
				return BoolValue(true), nil
			}
		default:
			return Value{}, fmt.Errorf("%w: unknown boolean op %d", ErrBadExpr, e.boolOp)
		}
		r, err := EvalExpr(rec, s, e.right)
		if err != nil {
			return Value{}, err
		}
		if r.Type != TypeBool {
			return Value{}, fmt.Errorf("%w: boolean operand is %s, want BOOL", ErrBadExpr, r.Type)
		}
		return BoolValue(r.B), nil

	default:
		return Value{}, fmt.Errorf("%w: unknown node kind %d", ErrBadExpr, e.kind)
	}
}
