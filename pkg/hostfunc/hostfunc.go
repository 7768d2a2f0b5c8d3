// Package hostfunc describes the compile-time half of the host-function
// calling convention (spec §6): a registry mapping a callable name to the
// {group-id, function-id, min/max arity} tuple the compiler bakes into
// CALL_HF instructions and checks arity against at compile time.
//
// The runtime half — actually invoking a host group, with pause/resume —
// lives in pkg/vm, which is given the same ids by whatever wires a
// Registry and a set of pkg/vm.HostGroup implementations together (see
// pkg/stdlib).
package hostfunc

// Signature is one host function's compile-time contract.
type Signature struct {
	GroupID  uint8
	FuncID   uint8
	MinArgs  int
	MaxArgs  int // -1 means unbounded
}

// Registry maps host function names to their Signature.
type Registry struct {
	sigs map[string]Signature
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sigs: make(map[string]Signature)}
}

// Register adds or overwrites the signature for name.
func (r *Registry) Register(name string, sig Signature) {
	r.sigs[name] = sig
}

// Lookup returns the signature registered for name, if any.
func (r *Registry) Lookup(name string) (Signature, bool) {
	sig, ok := r.sigs[name]
	return sig, ok
}
