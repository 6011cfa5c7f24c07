package vm

// OpCode represents a pcode instruction
type OpCode byte

// Stack Operations
const (
	OP_PUSH OpCode = iota // Push constant from pool [index]
	OP_POP                // Discard top of stack
	OP_DUP                // Duplicate top of stack
)

// Variable Operations
const (
	OP_GET_LOCAL OpCode = OP_DUP + 1 + iota // Push local variable [slot]
	OP_SET_LOCAL                            // Pop and store to local [slot]
	OP_GET_GLOBAL                           // Push session global [symbol]
	OP_SET_GLOBAL                           // Pop and store to session global [symbol]
	OP_GET_FIELD                            // Pop obj; push obj field [slot]
	OP_SET_FIELD                            // Pop obj, value; store field [slot]
	OP_GET_THIS_FIELD                       // Push field of current receiver [slot]
	OP_SET_THIS_FIELD                       // Pop; store field of current receiver [slot]
	OP_GET_THIS                             // Push the current receiver
)

// Arithmetic Operations
const (
	OP_ADD OpCode = OP_GET_THIS + 1 + iota // Pop b, a; push a + b
	OP_SUB                                       // Pop b, a; push a - b
	OP_MUL                                       // Pop b, a; push a * b
	OP_DIV                                       // Pop b, a; push a / b
	OP_MOD                                       // Pop b, a; push a % b
	OP_NEG                                       // Pop a; push -a
)

// Comparison Operations
const (
	OP_EQ OpCode = OP_NEG + 1 + iota // Pop b, a; push a == b
	OP_NE                            // Pop b, a; push a != b
	OP_LT                            // Pop b, a; push a < b
	OP_LE                            // Pop b, a; push a <= b
	OP_GT                            // Pop b, a; push a > b
	OP_GE                            // Pop b, a; push a >= b
)

// Logical Operations
const (
	OP_NOT OpCode = OP_GE + 1 + iota // Pop a; push !a
	OP_AND                           // Short-circuit AND [offset]
	OP_OR                            // Short-circuit OR [offset]
)

// Bitwise Operations
const (
	OP_BITAND OpCode = OP_OR + 1 + iota // Pop b, a; push a & b
	OP_BITOR                            // Pop b, a; push a | b
	OP_BITXOR                           // Pop b, a; push a ^ b
	OP_BITNOT                           // Pop a; push ~a
	OP_SHL                              // Pop b, a; push a << b
	OP_SHR                              // Pop b, a; push a >> b
)

// Conversion
const (
	OP_CONVERT OpCode = OP_SHR + 1 + iota // Convert top of stack [type]
)

// Control Flow
const (
	OP_JUMP OpCode = OP_CONVERT + 1 + iota // Unconditional forward jump [offset]
	OP_JUMP_IF_FALSE                       // Pop; forward jump if falsy [offset]
	OP_JUMP_IF_TRUE                        // Pop; forward jump if truthy [offset]
	OP_LOOP                                // Backward jump [offset] (IP -= offset)
	OP_RETURN                              // Pop and return
	OP_RETURN_VOID                         // Return with no value
)

// Calls and Objects
const (
	OP_CALL OpCode = OP_RETURN_VOID + 1 + iota // Call named function [symbol, argc]
	OP_CALL_METHOD                             // Pop args, obj; call method [symbol, argc]
	OP_NEW                                     // Construct class instance [symbol, argc]
	OP_DESTROY                                 // Run destructor of class-typed local [slot]
)

// Pointers and Indexing
const (
	OP_LOAD_IND OpCode = OP_DESTROY + 1 + iota // Pop ptr; push pointee [type]
	OP_STORE_IND                               // Pop ptr, value; store pointee [type]
	OP_ADDR_GLOBAL                             // Push address of host-aliased global [symbol]
	OP_INDEX                                   // Pop idx, base; push element [type]
	OP_STORE_IDX                               // Pop idx, ptr, value; store element [type]
)

var opNames = map[OpCode]string{
	OP_PUSH:           "PUSH",
	OP_POP:            "POP",
	OP_DUP:            "DUP",
	OP_GET_LOCAL:      "GET_LOCAL",
	OP_SET_LOCAL:      "SET_LOCAL",
	OP_GET_GLOBAL:     "GET_GLOBAL",
	OP_SET_GLOBAL:     "SET_GLOBAL",
	OP_GET_FIELD:      "GET_FIELD",
	OP_SET_FIELD:      "SET_FIELD",
	OP_GET_THIS_FIELD: "GET_THIS_FIELD",
	OP_SET_THIS_FIELD: "SET_THIS_FIELD",
	OP_GET_THIS:       "GET_THIS",
	OP_ADD:            "ADD",
	OP_SUB:            "SUB",
	OP_MUL:            "MUL",
	OP_DIV:            "DIV",
	OP_MOD:            "MOD",
	OP_NEG:            "NEG",
	OP_EQ:             "EQ",
	OP_NE:             "NE",
	OP_LT:             "LT",
	OP_LE:             "LE",
	OP_GT:             "GT",
	OP_GE:             "GE",
	OP_NOT:            "NOT",
	OP_AND:            "AND",
	OP_OR:             "OR",
	OP_BITAND:         "BITAND",
	OP_BITOR:          "BITOR",
	OP_BITXOR:         "BITXOR",
	OP_BITNOT:         "BITNOT",
	OP_SHL:            "SHL",
	OP_SHR:            "SHR",
	OP_CONVERT:        "CONVERT",
	OP_JUMP:           "JUMP",
	OP_JUMP_IF_FALSE:  "JUMP_IF_FALSE",
	OP_JUMP_IF_TRUE:   "JUMP_IF_TRUE",
	OP_LOOP:           "LOOP",
	OP_RETURN:         "RETURN",
	OP_RETURN_VOID:    "RETURN_VOID",
	OP_CALL:           "CALL",
	OP_CALL_METHOD:    "CALL_METHOD",
	OP_NEW:            "NEW",
	OP_DESTROY:        "DESTROY",
	OP_LOAD_IND:       "LOAD_IND",
	OP_STORE_IND:      "STORE_IND",
	OP_ADDR_GLOBAL:    "ADDR_GLOBAL",
	OP_INDEX:          "INDEX",
	OP_STORE_IDX:      "STORE_IDX",
}

// String returns the mnemonic for an opcode
func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// operandBytes returns how many operand bytes follow the opcode
func operandBytes(op OpCode) int {
	switch op {
	case OP_CALL, OP_CALL_METHOD, OP_NEW:
		return 3 // uint16 symbol + byte argc
	case OP_PUSH, OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_GLOBAL, OP_SET_GLOBAL,
		OP_GET_FIELD, OP_SET_FIELD, OP_GET_THIS_FIELD, OP_SET_THIS_FIELD,
		OP_CONVERT, OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE, OP_LOOP,
		OP_AND, OP_OR, OP_DESTROY, OP_LOAD_IND, OP_STORE_IND,
		OP_ADDR_GLOBAL, OP_INDEX, OP_STORE_IDX:
		return 2 // uint16 operand
	default:
		return 0
	}
}
