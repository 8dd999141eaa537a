package store

import (
	"sort"
	"strings"

	"github.com/kitelev/exocortex-graph/pkg/rdf"
)

// Binding is a solution mapping: variable names bound to terms, in the
// order the variables were first bound. A produced binding is never
// mutated; operators extend a binding by cloning it first.
//
// Compatibility deliberately compares terms by their canonical string
// form rather than typed equality, matching the store's dedup semantics.
type Binding struct {
	vars  map[string]rdf.Term
	order []string
}

// NewBinding creates an empty binding.
func NewBinding() *Binding {
	return &Binding{vars: make(map[string]rdf.Term)}
}

// Bind sets a variable. Binding an already-bound variable overwrites its
// value; callers joining bindings must check compatibility first.
func (b *Binding) Bind(name string, term rdf.Term) {
	if _, ok := b.vars[name]; !ok {
		b.order = append(b.order, name)
	}
	b.vars[name] = term
}

// Get returns the term bound to a variable.
func (b *Binding) Get(name string) (rdf.Term, bool) {
	t, ok := b.vars[name]
	return t, ok
}

// Names returns the bound variable names in first-bound order.
// The returned slice is owned by the binding.
func (b *Binding) Names() []string {
	return b.order
}

// Len returns the number of bound variables.
func (b *Binding) Len() int {
	return len(b.vars)
}

// Clone creates an independent copy.
func (b *Binding) Clone() *Binding {
	out := &Binding{
		vars:  make(map[string]rdf.Term, len(b.vars)),
		order: append([]string(nil), b.order...),
	}
	for k, v := range b.vars {
		out.vars[k] = v
	}
	return out
}

// CompatibleWith reports whether two bindings agree, by string form, on
// every variable present in both. Bindings with no shared variables are
// always compatible.
func (b *Binding) CompatibleWith(other *Binding) bool {
	small, large := b, other
	if len(large.vars) < len(small.vars) {
		small, large = large, small
	}
	for name, term := range small.vars {
		if o, ok := large.vars[name]; ok {
			if term.String() != o.String() {
				return false
			}
		}
	}
	return true
}

// SharesVariable reports whether the two bindings have any variable in
// common, regardless of values.
func (b *Binding) SharesVariable(other *Binding) bool {
	small, large := b, other
	if len(large.vars) < len(small.vars) {
		small, large = large, small
	}
	for name := range small.vars {
		if _, ok := large.vars[name]; ok {
			return true
		}
	}
	return false
}

// Merge combines two compatible bindings into a new one. The second
// return value is false when the bindings conflict on a shared variable.
func (b *Binding) Merge(other *Binding) (*Binding, bool) {
	if !b.CompatibleWith(other) {
		return nil, false
	}
	out := b.Clone()
	for _, name := range other.order {
		if _, ok := out.vars[name]; !ok {
			out.Bind(name, other.vars[name])
		}
	}
	return out, true
}

// Signature returns a canonical string identifying the binding's
// variable-to-value assignment, used for DISTINCT.
func (b *Binding) Signature() string {
	names := append([]string(nil), b.order...)
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(b.vars[name].String())
		sb.WriteByte(';')
	}
	return sb.String()
}
