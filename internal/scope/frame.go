// Package scope describes capture frames: per lexical nesting level, which
// variables were hoisted into which slot of that level's closure record.
// Frames are produced by the front end and only read by the quoter.
package scope

import (
	"fmt"

	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
)

// Frame maps variables of one nesting level to closure record slots.
type Frame interface {
	// Lookup returns the slot holding v at this level.
	Lookup(v *expr.Parameter) (slot int, ok bool)
	// Parent returns the enclosing level, or nil at the outermost level.
	Parent() Frame
}

// CaptureFrame is the plain map-backed Frame.
type CaptureFrame struct {
	slots  map[*expr.Parameter]int
	parent *CaptureFrame
}

// NewFrame declares a level whose variables occupy consecutive slots. When
// parent is non-nil the first slot is reserved for the parent record and
// the variables start at the next one.
func NewFrame(parent *CaptureFrame, vars ...*expr.Parameter) *CaptureFrame {
	f := &CaptureFrame{slots: make(map[*expr.Parameter]int, len(vars)), parent: parent}
	offset := 0
	if parent != nil {
		offset = config.ParentSlot + 1
	}
	for i, v := range vars {
		f.slots[v] = offset + i
	}
	return f
}

// Bind places v in an explicit slot.
func (f *CaptureFrame) Bind(v *expr.Parameter, slot int) *CaptureFrame {
	f.slots[v] = slot
	return f
}

func (f *CaptureFrame) Lookup(v *expr.Parameter) (int, bool) {
	slot, ok := f.slots[v]
	return slot, ok
}

func (f *CaptureFrame) Parent() Frame {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

// Len reports the number of variables declared at this level.
func (f *CaptureFrame) Len() int { return len(f.slots) }

func (f *CaptureFrame) String() string {
	depth := 0
	for p := f.parent; p != nil; p = p.parent {
		depth++
	}
	return fmt.Sprintf("frame(depth=%d, vars=%d)", depth, len(f.slots))
}
