package closure

import "fmt"

// Variables is ordinal read/write access to a list of variables, as
// produced by a runtime-variables node. *Record satisfies it too.
type Variables interface {
	Count() int
	Get(i int) (any, error)
	Set(i int, v any) error
}

// Cells is a list of storage cells exposed as Variables.
type Cells []Cell

func (c Cells) Count() int { return len(c) }

func (c Cells) Get(i int) (any, error) {
	if err := checkIndex(i, len(c)); err != nil {
		return nil, err
	}
	return c[i].Load(), nil
}

func (c Cells) Set(i int, v any) error {
	if err := checkIndex(i, len(c)); err != nil {
		return err
	}
	return c[i].Store(v)
}

// merged interleaves two variable groups according to a signed index
// array.
type merged struct {
	local   Variables
	hoisted Variables
	indexes []int
}

// Merge builds one view over a local group and a hoisted group. A
// non-negative indexes[i] selects that position of local; a negative one
// selects position -1-indexes[i] of hoisted. Reads and writes go to the
// original storage of either group.
func Merge(local, hoisted Variables, indexes []int) (Variables, error) {
	for i, idx := range indexes {
		var err error
		if idx >= 0 {
			err = checkIndex(idx, local.Count())
		} else {
			err = checkIndex(-1-idx, hoisted.Count())
		}
		if err != nil {
			return nil, fmt.Errorf("closure: merge index %d: %w", i, err)
		}
	}
	return &merged{local: local, hoisted: hoisted, indexes: indexes}, nil
}

func (m *merged) Count() int { return len(m.indexes) }

func (m *merged) Get(i int) (any, error) {
	if err := checkIndex(i, len(m.indexes)); err != nil {
		return nil, err
	}
	idx := m.indexes[i]
	if idx >= 0 {
		return m.local.Get(idx)
	}
	return m.hoisted.Get(-1 - idx)
}

func (m *merged) Set(i int, v any) error {
	if err := checkIndex(i, len(m.indexes)); err != nil {
		return err
	}
	idx := m.indexes[i]
	if idx >= 0 {
		return m.local.Set(idx, v)
	}
	return m.hoisted.Set(-1-idx, v)
}
