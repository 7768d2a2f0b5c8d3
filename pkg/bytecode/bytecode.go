// Package bytecode defines the instruction set and the little-endian,
// length-prefixed wire format the compiler (C5) emits and the virtual
// machine (C7) consumes (spec §4.3, §6).
//
// Operand widths are fixed (spec §6):
//
//	opcode       1 byte
//	location     1 byte, signed (negative = register, non-negative = named slot)
//	index (ip)   4 bytes, unsigned
//	small_size   1 byte, unsigned
//	number       8 bytes, float64
//	bool         1 byte
//	string       4-byte length prefix + UTF-8 bytes
package bytecode

// OpCode is a single bytecode operation. The set below is closed; the VM's
// dispatch loop switches over it exhaustively (spec §4.4).
type OpCode byte

const (
	OpNop OpCode = iota

	// OpReg n_registers: reserves n_registers anonymous registers at the
	// current frame's top. Emitted once at program start and implicitly
	// at each function entry via StoreAtF's operand.
	OpReg

	OpPush    // push: pushes an empty (nil) value
	OpPushVal // push.val <loc>: copy values[loc] onto the stack top
	OpPopTo   // pop.to <loc>: values[loc] = pop()
	OpPushN   // push.n <number>
	OpPushS   // push.s <string>
	OpPushB   // push.b <bool>
	OpPop     // pop
	OpPopN    // pop.n <small_size>

	OpStoreAtNil // store_at.nil <loc>
	OpStoreAtF   // store_at.f <loc>, <ip>, <small_size n_args>, <small_size n_registers>
	OpMove       // move <dst>, <src>

	OpAdd // add <target>, <first>, <second>
	OpSub
	OpMul
	OpDiv

	OpNot // not <target>, <source>
	OpAnd // and <target>, <first>, <second>
	OpOr

	OpEq // eq <target>, <first>, <second>
	OpNeq
	OpGr
	OpGre
	OpLs
	OpLse

	OpJump     // jump <ip>
	OpJumpCond // jump.cond <condition loc>, <ip> — jumps if condition is false

	OpReturnNil // ret.nil
	OpReturn    // ret <loc>

	OpPCallSFG // pcall_sf.g <loc>: reserve callee's register band, global-resolved
	OpPCallSFL // pcall_sf.l <loc>: same, frame-local-resolved
	OpCallSFG  // call_sf.g <loc>, <small_size n_args>
	OpCallSFL  // call_sf.l <loc>, <small_size n_args>
	OpCallHF   // call_hf <small_size hfg_id>, <small_size fn_id>, <small_size n_args>

	OpListNew       // list.new <target>
	OpListAdd       // list.add <list loc>, <value loc>
	OpDictionaryNew // dict.new <target>
	OpDictionaryAdd // dict.add <dict loc>, <key loc>, <value loc>

	OpGet // get <target>, <container>, <index>
	OpSet // set <container>, <index>, <value>
)

var opCodeNames = [...]string{
	OpNop: "nop", OpReg: "reg", OpPush: "push", OpPushVal: "push.val",
	OpPopTo: "pop.to", OpPushN: "push.n", OpPushS: "push.s", OpPushB: "push.b",
	OpPop: "pop", OpPopN: "pop.n", OpStoreAtNil: "store_at.nil",
	OpStoreAtF: "store_at.f", OpMove: "move", OpAdd: "add", OpSub: "sub",
	OpMul: "mul", OpDiv: "div", OpNot: "not", OpAnd: "and", OpOr: "or",
	OpEq: "eq", OpNeq: "neq", OpGr: "gr", OpGre: "gre", OpLs: "ls", OpLse: "lse",
	OpJump: "jump", OpJumpCond: "jump.cond", OpReturnNil: "ret.nil",
	OpReturn: "ret", OpPCallSFG: "pcall_sf.g", OpPCallSFL: "pcall_sf.l",
	OpCallSFG: "call_sf.g", OpCallSFL: "call_sf.l", OpCallHF: "call_hf",
	OpListNew: "list.new", OpListAdd: "list.add", OpDictionaryNew: "dict.new",
	OpDictionaryAdd: "dict.add", OpGet: "get", OpSet: "set",
}

func (op OpCode) String() string {
	if int(op) >= 0 && int(op) < len(opCodeNames) && opCodeNames[op] != "" {
		return opCodeNames[op]
	}
	return "unknown"
}

// Location addresses a value-stack slot relative to the current activation
// frame: non-negative values index named slots upward from the frame base;
// negative values index registers downward from the same base, into the
// register band reserved just below it. It is a signed byte, capping a frame at 128 registers and 127
// named slots (spec §9).
type Location = int8

// Index is an instruction-pointer/offset into the bytecode stream.
type Index = uint32
