package expr

import "fmt"

// Visitor rewrites a node. Implementations usually handle the node kinds
// they care about and call Transform for everything else.
type Visitor interface {
	Visit(n Node) (Node, error)
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(Node) (Node, error)

func (f VisitorFunc) Visit(n Node) (Node, error) { return f(n) }

// Transform visits the children of n with v and rebuilds n only if at least
// one child changed; otherwise n itself is returned. Declarations
// (lambda parameters, block variables, catch variables) are not visited.
func Transform(v Visitor, n Node) (Node, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil

	case *Constant, *Parameter, *CellValue, *RuntimeVariables, *MergeVariables:
		return n, nil

	case *Lambda:
		body, err := visitOpt(v, n.Body)
		if err != nil {
			return nil, err
		}
		if body == n.Body {
			return n, nil
		}
		return &Lambda{Name: n.Name, Params: n.Params, Body: body, Result: n.Result}, nil

	case *Block:
		body, changed, err := visitList(v, n.Body)
		if err != nil {
			return nil, err
		}
		if !changed {
			return n, nil
		}
		return &Block{Vars: n.Vars, Body: body}, nil

	case *Binary:
		left, err := v.Visit(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := v.Visit(n.Right)
		if err != nil {
			return nil, err
		}
		if left == n.Left && right == n.Right {
			return n, nil
		}
		return &Binary{Op: n.Op, Left: left, Right: right}, nil

	case *Assign:
		target, err := v.Visit(n.Target)
		if err != nil {
			return nil, err
		}
		value, err := v.Visit(n.Value)
		if err != nil {
			return nil, err
		}
		if target == n.Target && value == n.Value {
			return n, nil
		}
		return &Assign{Target: target, Value: value}, nil

	case *Conditional:
		test, err := v.Visit(n.Test)
		if err != nil {
			return nil, err
		}
		then, err := v.Visit(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := visitOpt(v, n.Else)
		if err != nil {
			return nil, err
		}
		if test == n.Test && then == n.Then && els == n.Else {
			return n, nil
		}
		return &Conditional{Test: test, Then: then, Else: els}, nil

	case *Try:
		body, err := v.Visit(n.Body)
		if err != nil {
			return nil, err
		}
		changed := body != n.Body
		handlers := n.Handlers
		copied := false
		for i, h := range n.Handlers {
			out, err := v.Visit(h)
			if err != nil {
				return nil, err
			}
			c, ok := out.(*Catch)
			if !ok {
				return nil, fmt.Errorf("expr: handler rewritten to %T, want *Catch", out)
			}
			if c == h {
				continue
			}
			if !copied {
				handlers = append([]*Catch(nil), n.Handlers...)
				copied = true
			}
			handlers[i] = c
			changed = true
		}
		finally, err := visitOpt(v, n.Finally)
		if err != nil {
			return nil, err
		}
		if !changed && finally == n.Finally {
			return n, nil
		}
		return &Try{Body: body, Handlers: handlers, Finally: finally}, nil

	case *Catch:
		body, err := v.Visit(n.Body)
		if err != nil {
			return nil, err
		}
		if body == n.Body {
			return n, nil
		}
		return &Catch{Var: n.Var, Body: body}, nil

	case *Throw:
		value, err := v.Visit(n.Value)
		if err != nil {
			return nil, err
		}
		if value == n.Value {
			return n, nil
		}
		return &Throw{Value: value}, nil

	case *Invoke:
		target, err := v.Visit(n.Target)
		if err != nil {
			return nil, err
		}
		args, changed, err := visitList(v, n.Args)
		if err != nil {
			return nil, err
		}
		if target == n.Target && !changed {
			return n, nil
		}
		return &Invoke{Target: target, Args: args, typ: n.typ}, nil

	case *Slot:
		rec, err := v.Visit(n.Record)
		if err != nil {
			return nil, err
		}
		if rec == n.Record {
			return n, nil
		}
		return &Slot{Record: rec, Index: n.Index, typ: n.typ}, nil
	}
	return nil, fmt.Errorf("expr: unknown node %T", n)
}

func visitOpt(v Visitor, n Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	return v.Visit(n)
}

// visitList returns the original slice when nothing changed.
func visitList(v Visitor, nodes []Node) ([]Node, bool, error) {
	var out []Node
	for i, n := range nodes {
		m, err := v.Visit(n)
		if err != nil {
			return nil, false, err
		}
		if m != n && out == nil {
			out = make([]Node, len(nodes))
			copy(out, nodes[:i])
		}
		if out != nil {
			out[i] = m
		}
	}
	if out == nil {
		return nodes, false, nil
	}
	return out, true, nil
}
