package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/thunkjit/internal/expr"
)

type recordStage struct {
	name string
	err  error
	seen *[]string
}

func (s recordStage) Process(ctx *PipelineContext) *PipelineContext {
	*s.seen = append(*s.seen, s.name)
	if s.err != nil {
		ctx.AddError(s.err)
	}
	return ctx
}

func TestRunAllStages(t *testing.T) {
	var seen []string
	errA := errors.New("stage a failed")
	errC := errors.New("stage c failed")
	p := New(
		recordStage{name: "a", err: errA, seen: &seen},
		recordStage{name: "b", seen: &seen},
		recordStage{name: "c", err: errC, seen: &seen},
	)

	c := expr.Param("c", expr.RecordType)
	ctx := p.Run(NewPipelineContext("f", expr.NewLambda("f", expr.IntType, expr.Const(1), c)))
	if got := strings.Join(seen, ","); got != "a,b,c" {
		t.Errorf("Expected stages a,b,c, got %s", got)
	}
	err := ctx.Err()
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("Expected both stage errors, got %v", err)
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := &PipelineContext{}
	if ctx.Err() != nil {
		t.Error("Expected no error")
	}
	if ctx.Log() == nil {
		t.Error("Expected a discard logger")
	}
	ctx.AddError(errors.New("x"))
	if ctx.Err() == nil {
		t.Error("Expected the added error")
	}
}
