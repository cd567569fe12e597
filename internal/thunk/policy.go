package thunk

import (
	"fmt"

	"github.com/funvibe/thunkjit/internal/config"
)

// Policy selects how a thunk turns its tree into a callable. It is fixed
// when the thunk type is built.
type Policy int

const (
	// Immediate compiles natively on first use, at most once per thunk.
	Immediate Policy = iota
	// Interpreted runs the tree-walk interpreter and never compiles.
	Interpreted
	// Tiered interprets first and compiles natively after a number of calls.
	Tiered
)

func (p Policy) String() string {
	switch p {
	case Immediate:
		return config.PolicyImmediate
	case Interpreted:
		return config.PolicyInterpreted
	case Tiered:
		return config.PolicyTiered
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy maps a configuration name to a policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case config.PolicyImmediate:
		return Immediate, nil
	case config.PolicyInterpreted:
		return Interpreted, nil
	case config.PolicyTiered:
		return Tiered, nil
	}
	return 0, fmt.Errorf("unknown policy %q", name)
}

// State is the observable stage of a thunk.
type State int32

const (
	Pending State = iota
	Interpreting
	Compiled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Interpreting:
		return "interpreting"
	case Compiled:
		return "compiled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
