package pipeline

import "errors"

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. Every stage runs; a stage whose inputs are
// missing because an earlier one failed leaves the context unchanged.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}

// Err joins the errors collected by the stages.
func (ctx *PipelineContext) Err() error {
	return errors.Join(ctx.Errors...)
}
