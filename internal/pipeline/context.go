// Package pipeline chains the stages that turn an expression tree with free
// variables into a callable delegate.
package pipeline

import (
	"log/slog"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/scope"
	"github.com/funvibe/thunkjit/internal/thunk"
)

// Processor is one stage of a pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext is the state passed between stages.
type PipelineContext struct {
	Name    string
	Tree    *expr.Lambda
	Frame   scope.Frame     // capture frames of the tree's enclosing scopes
	Closure *closure.Record // live record of the innermost frame

	Quoted    *expr.Lambda
	ThunkType *thunk.Type
	Thunk     *thunk.Thunk
	Delegate  *thunk.Dispatcher

	Errors []error
	Logger *slog.Logger
}

func NewPipelineContext(name string, tree *expr.Lambda) *PipelineContext {
	return &PipelineContext{Name: name, Tree: tree, Logger: config.DiscardLogger()}
}

// AddError records err against the context.
func (ctx *PipelineContext) AddError(err error) {
	ctx.Errors = append(ctx.Errors, err)
	ctx.Log().Debug("pipeline stage failed", "name", ctx.Name, "error", err)
}

// Log returns the context logger, discarding output when none is set.
func (ctx *PipelineContext) Log() *slog.Logger {
	if ctx.Logger == nil {
		return config.DiscardLogger()
	}
	return ctx.Logger
}
