package backend

import (
	"fmt"

	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/native"
)

// NativeBackend lowers trees with the native compiler
type NativeBackend struct {
	compiler *native.Compiler
}

// NewNative creates a new native backend
func NewNative() *NativeBackend {
	return &NativeBackend{compiler: native.New()}
}

// Compile checks and lowers l; ill-typed trees fail here.
func (b *NativeBackend) Compile(l *expr.Lambda) (expr.Callable, error) {
	if l == nil {
		return nil, fmt.Errorf("no tree to compile")
	}
	fn, err := b.compiler.Compile(l)
	if err != nil {
		return nil, fmt.Errorf("compilation error: %w", err)
	}
	return fn, nil
}

// Name returns the backend name
func (b *NativeBackend) Name() string {
	return config.NativeBackendName
}
