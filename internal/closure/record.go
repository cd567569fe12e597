package closure

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/funvibe/thunkjit/internal/config"
)

// RecordPtrType is the static type of a slot holding a closure record.
var RecordPtrType = reflect.TypeFor[*Record]()

// Shape is a RecordType closed over concrete slot types.
type Shape struct {
	recordType *RecordType
	slots      []reflect.Type
	name       string
}

func (s *Shape) RecordType() *RecordType { return s.recordType }

func (s *Shape) Arity() int { return len(s.slots) }

// SlotType returns the static type of slot i.
func (s *Shape) SlotType(i int) reflect.Type { return s.slots[i] }

func (s *Shape) String() string { return s.name }

// New builds a record of this shape over the given cells. Each cell's type
// must be exactly the slot type.
func (s *Shape) New(cells ...Cell) (*Record, error) {
	if len(cells) != len(s.slots) {
		return nil, fmt.Errorf("%s: got %d cells, want %d", s.name, len(cells), len(s.slots))
	}
	for i, c := range cells {
		if c == nil {
			return nil, fmt.Errorf("%s: cell %d is nil", s.name, i)
		}
		if c.Type() != s.slots[i] {
			return nil, fmt.Errorf("%s: cell %d: %w", s.name, i, &ConversionError{Want: s.slots[i], Got: c.Type()})
		}
	}
	return &Record{shape: s, cells: append([]Cell(nil), cells...)}, nil
}

// Zero builds a record of this shape with zero-valued cells.
func (s *Shape) Zero() *Record {
	cells := make([]Cell, len(s.slots))
	for i, typ := range s.slots {
		cells[i] = NewCell(typ)
	}
	return &Record{shape: s, cells: cells}
}

// Record is a fixed-arity heap record of storage cells. Slots are reachable
// both through typed Field access and through the ordinal Get/Set/Cell
// protocol; both observe the same storage.
type Record struct {
	shape *Shape
	cells []Cell
}

// New builds a record over cells using the default generator.
func New(cells ...Cell) (*Record, error) {
	rt, err := DefaultGenerator().Create(len(cells))
	if err != nil {
		return nil, err
	}
	types := make([]reflect.Type, len(cells))
	for i, c := range cells {
		if c == nil {
			return nil, fmt.Errorf("closure: cell %d is nil", i)
		}
		types[i] = c.Type()
	}
	shape, err := rt.Instantiate(types...)
	if err != nil {
		return nil, err
	}
	return shape.New(cells...)
}

// NewNested builds a record whose parent slot holds parent, followed by
// cells.
func NewNested(parent *Record, cells ...Cell) (*Record, error) {
	all := make([]Cell, 0, len(cells)+1)
	all = append(all, NewSlot(parent))
	all = append(all, cells...)
	return New(all...)
}

func (r *Record) Shape() *Shape { return r.shape }

func (r *Record) Count() int { return len(r.cells) }

// Cell returns the storage cell of slot i.
func (r *Record) Cell(i int) (Cell, error) {
	if err := checkIndex(i, len(r.cells)); err != nil {
		return nil, err
	}
	return r.cells[i], nil
}

// Get returns the value held in slot i.
func (r *Record) Get(i int) (any, error) {
	c, err := r.Cell(i)
	if err != nil {
		return nil, err
	}
	return c.Load(), nil
}

// Set stores v in slot i, converting it to the slot type.
func (r *Record) Set(i int, v any) error {
	c, err := r.Cell(i)
	if err != nil {
		return err
	}
	return c.Store(v)
}

// Parent returns the enclosing record held in the parent slot, if any.
func (r *Record) Parent() (*Record, bool) {
	if len(r.cells) <= config.ParentSlot {
		return nil, false
	}
	p, ok := r.cells[config.ParentSlot].Load().(*Record)
	return p, ok && p != nil
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString(r.shape.recordType.Name)
	sb.WriteByte('{')
	for i, c := range r.cells {
		if i > 0 {
			sb.WriteString(", ")
		}
		if c.Type() == RecordPtrType {
			sb.WriteString("<parent>")
			continue
		}
		fmt.Fprintf(&sb, "%v", c.Load())
	}
	sb.WriteByte('}')
	return sb.String()
}

// Field returns slot i as a typed slot for direct access to its Value.
func Field[T any](r *Record, i int) (*Slot[T], error) {
	c, err := r.Cell(i)
	if err != nil {
		return nil, err
	}
	s, ok := c.(*Slot[T])
	if !ok {
		return nil, &ConversionError{Want: reflect.TypeFor[T](), Got: c.Type()}
	}
	return s, nil
}
