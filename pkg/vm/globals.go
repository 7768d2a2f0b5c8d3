package vm

import "github.com/kristofer/ionscript/pkg/value"

// Globals is the VM's global-variable table (spec §6): a name-keyed store
// the host reaches through Post/Get/Has/Undefine and running scripts
// through the `post`/`get` builtins. Unlike named slots, globals are not part of any activation
// frame and outlive individual Run calls.
type Globals struct {
	vals map[string]value.Value
}

// NewGlobals returns an empty global table.
func NewGlobals() *Globals {
	return &Globals{vals: make(map[string]value.Value)}
}

// Post sets (or overwrites) name's value.
func (g *Globals) Post(name string, v value.Value) {
	g.vals[name] = v
}

// Get returns name's value and whether it was present.
func (g *Globals) Get(name string) (value.Value, bool) {
	v, ok := g.vals[name]
	return v, ok
}

// Has reports whether name has been posted.
func (g *Globals) Has(name string) bool {
	_, ok := g.vals[name]
	return ok
}

// Undefine removes name, if present.
func (g *Globals) Undefine(name string) {
	delete(g.vals, name)
}

// Keys returns every posted name, in no particular order — used by the
// `dump()` builtin for diagnostics.
func (g *Globals) Keys() []string {
	keys := make([]string, 0, len(g.vals))
	for k := range g.vals {
		keys = append(keys, k)
	}
	return keys
}
