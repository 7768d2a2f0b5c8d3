// Package value implements the dynamically typed runtime value (C6): a
// tagged variant over nil, bool, number, string, list, dictionary, and
// script function (spec §3).
//
// Lists and dictionaries are reference-semantic: a Value holding a List or
// Dictionary holds a pointer to shared backing storage, so copying the
// Value (e.g. MOVE, argument passing) produces a new handle to the same
// underlying container rather than a structural copy (spec §3, §9). There
// is no cycle collector: a program that makes a list/dictionary contain
// itself leaks that cycle for the lifetime of the VM (spec §9 — documented
// choice, not a bug).
package value

import (
	"fmt"
	"strconv"
)

// Kind discriminates the tagged variant.
type Kind int

const (
	Nil Kind = iota
	Bool
	Number
	String
	List
	Dictionary
	ScriptFunction
)

func (k Kind) String() string {
	switch k {
	case Nil:
		return "nil"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case List:
		return "list"
	case Dictionary:
		return "dictionary"
	case ScriptFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Value is the VM's dynamically typed runtime value.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list *ListValue
	dict *DictValue
	fn   *Function
}

// Function describes a compiled script function's entry point and frame
// shape (spec §3: ScriptFunction{ip, n_args, n_registers}).
type Function struct {
	IP          uint32
	NArgs       uint8
	NRegisters  uint8
}

// ListValue is the reference-shared backing storage for a List value.
type ListValue struct {
	Items []Value
}

// key is a comparable canonical form of a non-container Value, used to key
// DictValue's map (spec §3: "Dictionary keys admit any non-container
// value").
type key struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// DictValue is the reference-shared backing storage for a Dictionary
// value.
type DictValue struct {
	entries map[key]Value
	order   []key // preserves insertion order for dump()/Keys(); not part of the language's observable semantics (spec §3: "ordering among keys is not observable")
}

// NewDict returns an empty dictionary backing store.
func NewDict() *DictValue {
	return &DictValue{entries: make(map[key]Value)}
}

func (d *DictValue) keyOf(k Value) (key, error) {
	switch k.kind {
	case Nil, Bool, Number, String:
		return key{kind: k.kind, b: k.b, n: k.n, s: k.s}, nil
	default:
		return key{}, fmt.Errorf("value of type %s cannot be used as a dictionary key", k.kind)
	}
}

// Get returns the value stored at k and whether it was present.
func (d *DictValue) Get(k Value) (Value, bool, error) {
	ck, err := d.keyOf(k)
	if err != nil {
		return Value{}, false, err
	}
	v, ok := d.entries[ck]
	return v, ok, nil
}

// Set inserts or overwrites the value stored at k.
func (d *DictValue) Set(k, v Value) error {
	ck, err := d.keyOf(k)
	if err != nil {
		return err
	}
	if _, exists := d.entries[ck]; !exists {
		d.order = append(d.order, ck)
	}
	d.entries[ck] = v
	return nil
}

// Len returns the number of entries.
func (d *DictValue) Len() int { return len(d.entries) }

// Keys returns the dictionary's keys as Values, in insertion order.
func (d *DictValue) Keys() []Value {
	out := make([]Value, 0, len(d.order))
	for _, ck := range d.order {
		out = append(out, keyToValue(ck))
	}
	return out
}

func keyToValue(k key) Value {
	switch k.kind {
	case Nil:
		return NewNil()
	case Bool:
		return NewBool(k.b)
	case Number:
		return NewNumber(k.n)
	case String:
		return NewString(k.s)
	default:
		return NewNil()
	}
}

// Constructors.

func NewNil() Value                        { return Value{kind: Nil} }
func NewBool(b bool) Value                 { return Value{kind: Bool, b: b} }
func NewNumber(n float64) Value            { return Value{kind: Number, n: n} }
func NewString(s string) Value             { return Value{kind: String, s: s} }
func NewList(items []Value) Value          { return Value{kind: List, list: &ListValue{Items: items}} }
func NewDictionary(d *DictValue) Value     { return Value{kind: Dictionary, dict: d} }
func NewFunction(ip uint32, nArgs, nRegs uint8) Value {
	return Value{kind: ScriptFunction, fn: &Function{IP: ip, NArgs: nArgs, NRegisters: nRegs}}
}

// Accessors. Callers are expected to check Kind first; these do not
// check it, and on a mismatch return the payload field's zero value
// (false, 0, "", or a nil pointer for List/Dict/Function).

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool { return v.b }

func (v Value) Number() float64 { return v.n }

func (v Value) Str() string { return v.s }

func (v Value) List() *ListValue { return v.list }

func (v Value) Dict() *DictValue { return v.dict }

func (v Value) Function() *Function { return v.fn }

// Truthy implements the VM's boolean coercion (spec §4.4, JUMP_COND): nil
// and the boolean false are falsy; every other value, including the
// number 0 and the empty string, is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case Nil:
		return false
	case Bool:
		return v.b
	default:
		return true
	}
}

// String renders v for display (the `str` and `print` builtins, spec §6).
func (v Value) String() string {
	switch v.kind {
	case Nil:
		return "nil"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Number:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case String:
		return v.s
	case List:
		out := "["
		for i, item := range v.list.Items {
			if i > 0 {
				out += ", "
			}
			out += item.String()
		}
		return out + "]"
	case Dictionary:
		out := "{"
		for i, k := range v.dict.Keys() {
			if i > 0 {
				out += ", "
			}
			val, _, _ := v.dict.Get(k)
			out += k.String() + ": " + val.String()
		}
		return out + "}"
	case ScriptFunction:
		return "<function>"
	default:
		return "<unknown>"
	}
}
