package factory

import (
	"github.com/funvibe/thunkjit/internal/pipeline"
)

// Processor wraps ctx.Quoted in a thunk from the factory and binds it to
// ctx.Closure.
type Processor struct {
	Factory *Factory
}

func (fp *Processor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Quoted == nil {
		return ctx
	}
	th, err := fp.Factory.Thunk(ctx.Quoted)
	if err != nil {
		ctx.AddError(err)
		return ctx
	}
	ctx.ThunkType = th.Type()
	ctx.Thunk = th
	ctx.Delegate = th.CreateDelegate(ctx.Closure)
	ctx.Log().Debug("delegate created", "name", ctx.Name, "type", th.Type().String())
	return ctx
}
