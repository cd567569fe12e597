package expr

import (
	"errors"
	"fmt"
	"reflect"
)

// Op is a binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var opNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "?"
}

// IsComparison reports whether op produces a bool.
func (op Op) IsComparison() bool { return op >= OpEq }

// ParseOp maps an operator symbol or name to an Op.
func ParseOp(s string) (Op, bool) {
	for i, name := range opNames {
		if name == s {
			return Op(i), true
		}
	}
	switch s {
	case "add":
		return OpAdd, true
	case "sub":
		return OpSub, true
	case "mul":
		return OpMul, true
	case "div":
		return OpDiv, true
	case "eq":
		return OpEq, true
	case "ne":
		return OpNe, true
	case "lt":
		return OpLt, true
	case "le":
		return OpLe, true
	case "gt":
		return OpGt, true
	case "ge":
		return OpGe, true
	}
	return 0, false
}

var (
	// ErrOperand is reported for operands an operator does not accept.
	ErrOperand = errors.New("invalid operand")
	// ErrDivideByZero is reported by integer division by zero.
	ErrDivideByZero = errors.New("integer divide by zero")
)

// Apply evaluates op on two operand values. Both back ends share it so that
// interpreted and compiled code agree on every result.
func Apply(op Op, l, r any) (any, error) {
	switch lv := l.(type) {
	case int:
		rv, ok := r.(int)
		if !ok {
			break
		}
		return applyOrdered(op, lv, rv, op == OpDiv && rv == 0)
	case int64:
		rv, ok := r.(int64)
		if !ok {
			break
		}
		return applyOrdered(op, lv, rv, op == OpDiv && rv == 0)
	case float64:
		rv, ok := r.(float64)
		if !ok {
			break
		}
		return applyOrdered(op, lv, rv, false)
	case string:
		rv, ok := r.(string)
		if !ok {
			break
		}
		switch op {
		case OpAdd:
			return lv + rv, nil
		case OpSub, OpMul, OpDiv:
			return nil, fmt.Errorf("%w: %s on strings", ErrOperand, op)
		}
		return compare(op, lv, rv), nil
	case bool:
		rv, ok := r.(bool)
		if !ok {
			break
		}
		switch op {
		case OpEq:
			return lv == rv, nil
		case OpNe:
			return lv != rv, nil
		}
		return nil, fmt.Errorf("%w: %s on bools", ErrOperand, op)
	}
	if (op == OpEq || op == OpNe) && isComparable(l) && isComparable(r) {
		eq := l == r
		return eq == (op == OpEq), nil
	}
	return nil, fmt.Errorf("%w: %T %s %T", ErrOperand, l, op, r)
}

func isComparable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

type number interface {
	~int | ~int64 | ~float64
}

func applyOrdered[T number](op Op, l, r T, divZero bool) (any, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if divZero {
			return nil, ErrDivideByZero
		}
		return l / r, nil
	}
	return compare(op, l, r), nil
}

func compare[T number | ~string](op Op, l, r T) bool {
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpLt:
		return l < r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	default:
		return l >= r
	}
}
