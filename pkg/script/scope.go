package script

import (
	"sort"

	"golang.org/x/text/cases"
)

// NormalizeIdent returns the canonical form of a case-insensitive name.
func NormalizeIdent(name string) string {
	// Casers keep state, so one is made per call.
	return cases.Fold().String(name)
}

// Record is the composite value bound to a FOR loop variable.
type Record struct {
	Columns []string
	Values  []any
}

// Field returns the value of a column by case-insensitive name.
func (r *Record) Field(name string) (any, bool) {
	want := NormalizeIdent(name)
	for i := len(r.Columns) - 1; i >= 0; i-- {
		if NormalizeIdent(r.Columns[i]) == want {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Variable is a declared script variable.
type Variable struct {
	Name   string
	Type   string
	Value  any
	Record *Record
}

// Scope maps variable names to variables.
type Scope struct {
	vars  map[string]*Variable
	order []string
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{vars: make(map[string]*Variable)}
}

// Get returns a variable declared directly in this scope.
func (s *Scope) Get(name string) (*Variable, bool) {
	v, ok := s.vars[NormalizeIdent(name)]
	return v, ok
}

// Put declares or replaces a variable in this scope.
func (s *Scope) Put(v *Variable) {
	key := NormalizeIdent(v.Name)
	if _, ok := s.vars[key]; !ok {
		s.order = append(s.order, key)
	}
	v.Name = key
	s.vars[key] = v
}

// Names returns the variable names in declaration order.
func (s *Scope) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of variables in the scope.
func (s *Scope) Len() int {
	return len(s.vars)
}

// ScopeStack is the chain of open scopes, outermost first.
type ScopeStack struct {
	scopes []*Scope
}

// NewScopeStack creates a stack holding the given scopes.
func NewScopeStack(scopes ...*Scope) *ScopeStack {
	return &ScopeStack{scopes: scopes}
}

// Push opens a scope.
func (s *ScopeStack) Push(sc *Scope) {
	s.scopes = append(s.scopes, sc)
}

// Pop closes the innermost scope.
func (s *ScopeStack) Pop() *Scope {
	if len(s.scopes) == 0 {
		return nil
	}
	sc := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]
	return sc
}

// Depth returns the number of open scopes.
func (s *ScopeStack) Depth() int {
	return len(s.scopes)
}

// Innermost returns the innermost scope, or nil.
func (s *ScopeStack) Innermost() *Scope {
	if len(s.scopes) == 0 {
		return nil
	}
	return s.scopes[len(s.scopes)-1]
}

// Lookup finds a variable searching innermost to outermost.
func (s *ScopeStack) Lookup(name string) (*Variable, bool) {
	key := NormalizeIdent(name)
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i].vars[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Resolve returns the value of name or of record.field when field is not
// empty.
func (s *ScopeStack) Resolve(name, field string) (any, bool) {
	v, ok := s.Lookup(name)
	if !ok {
		return nil, false
	}
	if field == "" {
		if v.Record != nil {
			return v.Record, true
		}
		return v.Value, true
	}
	if v.Record == nil {
		return nil, false
	}
	return v.Record.Field(field)
}

// Declare adds a variable to the innermost scope. Redeclaring a name in the
// same scope fails unless replace is set.
func (s *ScopeStack) Declare(name, typ string, value any, replace bool) error {
	sc := s.Innermost()
	if sc == nil {
		sc = NewScope()
		s.Push(sc)
	}
	if _, exists := sc.Get(name); exists && !replace {
		return newError(CondVariableAlreadyExists, noPos,
			map[string]string{"variableName": NormalizeIdent(name)},
			"cannot create the variable %s because it already exists", NormalizeIdent(name))
	}
	sc.Put(&Variable{Name: name, Type: typ, Value: value})
	return nil
}

// Assign sets the nearest visible variable named name.
func (s *ScopeStack) Assign(name string, value any) error {
	v, ok := s.Lookup(name)
	if !ok {
		return newError(CondUnresolvedVariable, noPos,
			map[string]string{"variableName": NormalizeIdent(name)},
			"cannot resolve variable %s", NormalizeIdent(name))
	}
	v.Value = value
	v.Record = nil
	return nil
}

// Snapshot returns the visible variables with inner declarations hiding
// outer ones.
func (s *ScopeStack) Snapshot() map[string]any {
	out := make(map[string]any)
	for _, sc := range s.scopes {
		for k, v := range sc.vars {
			if v.Record != nil {
				out[k] = v.Record
				continue
			}
			out[k] = v.Value
		}
	}
	return out
}

// VisibleNames returns the sorted names of all visible variables.
func (s *ScopeStack) VisibleNames() []string {
	seen := make(map[string]struct{})
	for _, sc := range s.scopes {
		for k := range sc.vars {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
