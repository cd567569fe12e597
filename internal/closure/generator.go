package closure

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RecordType is the generated definition of a closure record of a fixed
// arity. It is generic over its slot types: Instantiate closes it over one
// concrete tuple of types.
type RecordType struct {
	ID   uuid.UUID
	Name string

	arity int

	mu     sync.Mutex
	shapes map[string][]*Shape // keyed by the printed type tuple
}

// Arity returns the number of slots of records of this type.
func (t *RecordType) Arity() int { return t.arity }

func (t *RecordType) String() string { return t.Name }

// Instantiate returns the shape of this record type for the given slot
// types. The same tuple of types always yields the same *Shape.
func (t *RecordType) Instantiate(types ...reflect.Type) (*Shape, error) {
	if len(types) != t.arity {
		return nil, fmt.Errorf("%s: instantiated with %d slot types, want %d", t.Name, len(types), t.arity)
	}
	for i, typ := range types {
		if typ == nil {
			return nil, fmt.Errorf("%s: slot %d has no type", t.Name, i)
		}
	}

	key := typeKey(types)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.shapes[key] {
		if sameTypes(s.slots, types) {
			return s, nil
		}
	}
	s := &Shape{
		recordType: t,
		slots:      append([]reflect.Type(nil), types...),
		name:       t.Name + "[" + key + "]",
	}
	t.shapes[key] = append(t.shapes[key], s)
	return s, nil
}

// Generator produces one RecordType per arity and reuses it indefinitely.
type Generator struct {
	once  sync.Once
	mu    sync.RWMutex
	types map[int]*RecordType
}

// NewGenerator returns an empty generator. The type table is allocated on
// first use.
func NewGenerator() *Generator {
	return &Generator{}
}

var defaultGenerator = NewGenerator()

// DefaultGenerator returns the process-wide generator.
func DefaultGenerator() *Generator { return defaultGenerator }

func (g *Generator) table() map[int]*RecordType {
	g.once.Do(func() {
		g.types = make(map[int]*RecordType)
	})
	return g.types
}

// Create returns the record type for arity, defining it on first request.
func (g *Generator) Create(arity int) (*RecordType, error) {
	if arity < 0 {
		return nil, fmt.Errorf("closure: negative arity %d", arity)
	}
	types := g.table()

	g.mu.RLock()
	t, ok := types[arity]
	g.mu.RUnlock()
	if ok {
		return t, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := types[arity]; ok {
		return t, nil
	}
	t = &RecordType{
		ID:     uuid.New(),
		Name:   "Closure" + strconv.Itoa(arity),
		arity:  arity,
		shapes: make(map[string][]*Shape),
	}
	types[arity] = t
	return t, nil
}

// Defined reports how many record types have been generated so far.
func (g *Generator) Defined() int {
	types := g.table()
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(types)
}

func typeKey(types []reflect.Type) string {
	parts := make([]string, len(types))
	for i, typ := range types {
		parts[i] = typ.String()
	}
	return strings.Join(parts, ", ")
}

func sameTypes(a, b []reflect.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
