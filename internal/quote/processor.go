package quote

import (
	"errors"

	"github.com/funvibe/thunkjit/internal/pipeline"
)

// Processor resolves the captured variables of ctx.Tree into ctx.Quoted.
type Processor struct{}

func (qp *Processor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Tree == nil {
		ctx.AddError(errors.New("quote: no tree"))
		return ctx
	}
	var rec Record
	if ctx.Closure != nil {
		rec = ctx.Closure
	}
	quoted, err := QuoteLambda(ctx.Tree, ctx.Frame, rec)
	if err != nil {
		ctx.AddError(err)
		return ctx
	}
	ctx.Quoted = quoted
	return ctx
}
