package backend

import (
	"fmt"

	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/interp"
)

// TreeWalkBackend wraps the tree-walk interpreter
type TreeWalkBackend struct {
	interpreter *interp.Interpreter
}

// NewTreeWalk creates a new tree-walk backend
func NewTreeWalk() *TreeWalkBackend {
	return &TreeWalkBackend{interpreter: interp.New()}
}

// Compile prepares l for interpretation. Errors in the tree surface when the
// returned callable runs.
func (b *TreeWalkBackend) Compile(l *expr.Lambda) (expr.Callable, error) {
	if l == nil {
		return nil, fmt.Errorf("no tree to interpret")
	}
	return b.interpreter.Interpret(l), nil
}

// Name returns the backend name
func (b *TreeWalkBackend) Name() string {
	return config.TreeWalkBackendName
}
