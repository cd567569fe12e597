package native

import "github.com/funvibe/thunkjit/internal/expr"

// funcScope tracks the variables visible in one lambda being compiled. All
// parameters, block variables and handler variables of the lambda share one
// frame; nested lambdas get their own.
type funcScope struct {
	visible   map[*expr.Parameter]int
	shadowed  map[*expr.Parameter][]int
	capacity  int
	enclosing *funcScope
}

func (c *compiler) beginFunction() {
	c.scope = &funcScope{
		visible:   make(map[*expr.Parameter]int),
		shadowed:  make(map[*expr.Parameter][]int),
		enclosing: c.scope,
	}
}

// endFunction closes the current lambda and returns its frame size.
func (c *compiler) endFunction() int {
	n := c.scope.capacity
	c.scope = c.scope.enclosing
	return n
}

// declare allocates a fresh slot for p in the current frame.
func (c *compiler) declare(p *expr.Parameter) int {
	s := c.scope
	if prev, ok := s.visible[p]; ok {
		s.shadowed[p] = append(s.shadowed[p], prev)
	}
	slot := s.capacity
	s.capacity++
	s.visible[p] = slot
	return slot
}

// undeclare ends the visibility of p's innermost declaration.
func (c *compiler) undeclare(p *expr.Parameter) {
	s := c.scope
	if prev := s.shadowed[p]; len(prev) > 0 {
		s.visible[p] = prev[len(prev)-1]
		s.shadowed[p] = prev[:len(prev)-1]
		return
	}
	delete(s.visible, p)
}

// reach resolves p to the number of frames to walk up and the slot there.
func (c *compiler) reach(p *expr.Parameter) (depth, slot int) {
	for s := c.scope; s != nil; s = s.enclosing {
		if slot, ok := s.visible[p]; ok {
			return depth, slot
		}
		depth++
	}
	fail(p, "unbound variable %s", p.Name)
	return 0, 0
}
