package vars

import "github.com/kiln-build/kiln/internal/pool"

// Override is one entry in a variable's override chain: a value assigned
// at a particular scope directory, which takes effect at that scope and
// all of its descendants unless a more specific override supersedes it.
type Override struct {
	At    pool.Dir
	Value Value
}

// Binding is a variable's base value plus its ordered override chain.
// Overrides are stored outermost-first; Resolve walks them to find the
// most specific one enclosing the lookup site.
type Binding struct {
	Decl      *Decl
	Base      Value
	Overrides []Override
}

// AddOverride appends an override at scope dir. Overrides are expected to
// be added outermost-to-innermost as the loader descends the scope tree;
// Resolve relies on that ordering to prefer the last (most specific) match.
func (b *Binding) AddOverride(at pool.Dir, v Value) {
	b.Overrides = append(b.Overrides, Override{At: at, Value: v})
}

// Resolve combines the base value with whichever overrides enclose at,
// returning the value visible from that scope. An override at dir D
// encloses a lookup at dir L when D is a prefix of (or equal to) L.
func (b *Binding) Resolve(at pool.Dir) Value {
	if b == nil {
		return nil
	}
	best := b.Base
	for _, o := range b.Overrides {
		if o.At.IsPrefixOf(at) {
			best = o.Value
		}
	}
	return best
}

// FindOriginal returns the base value (ignoring overrides) and a depth
// equal to the number of overrides layered over it, used by scope lookup
// to disambiguate override application across the scope chain.
func (b *Binding) FindOriginal() (Value, int) {
	if b == nil {
		return nil, -1
	}
	return b.Base, len(b.Overrides)
}
