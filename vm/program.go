package vm

import (
	"fmt"
	"strings"

	"cinder/ctype"
)

// Program represents compiled pcode
type Program struct {
	Code      []byte        // Pcode instructions
	Constants []ctype.Value // Constant pool
	Symbols   []string      // Global, function, and field names
	Types     []*ctype.Type // Types referenced by CONVERT/LOAD_IND/STORE_IND/INDEX
	VarNames  []string      // Local variable name table
	VarTypes  []*ctype.Type // Declared local types, parallel to VarNames
	LineInfo  []LineEntry   // Source line mapping
	NumLocals int           // Number of local slots
	Name      string        // Function name, or "" for a fragment body
}

// LineEntry maps a pcode IP to a source line
type LineEntry struct {
	StartIP int // First IP for this line
	Line    int // Source line number
}

// LineForIP returns the source line number for a given IP
func (p *Program) LineForIP(ip int) int {
	for i := len(p.LineInfo) - 1; i >= 0; i-- {
		if p.LineInfo[i].StartIP <= ip {
			return p.LineInfo[i].Line
		}
	}
	return 0
}

// Disassemble renders the program one instruction per line
func (p *Program) Disassemble() string {
	var b strings.Builder
	ip := 0
	for ip < len(p.Code) {
		op := OpCode(p.Code[ip])
		fmt.Fprintf(&b, "%04d %s", ip, op)
		ip++
		switch operandBytes(op) {
		case 2:
			arg := int(p.Code[ip]) | int(p.Code[ip+1])<<8
			ip += 2
			fmt.Fprintf(&b, " %d%s", arg, p.operandNote(op, arg))
		case 3:
			arg := int(p.Code[ip]) | int(p.Code[ip+1])<<8
			argc := int(p.Code[ip+2])
			ip += 3
			fmt.Fprintf(&b, " %d%s argc=%d", arg, p.operandNote(op, arg), argc)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (p *Program) operandNote(op OpCode, arg int) string {
	switch op {
	case OP_PUSH:
		if arg < len(p.Constants) {
			return fmt.Sprintf(" (%s)", p.Constants[arg])
		}
	case OP_GET_LOCAL, OP_SET_LOCAL, OP_DESTROY:
		if arg < len(p.VarNames) {
			return fmt.Sprintf(" (%s)", p.VarNames[arg])
		}
	case OP_GET_GLOBAL, OP_SET_GLOBAL, OP_ADDR_GLOBAL,
		OP_CALL, OP_CALL_METHOD, OP_NEW:
		if arg < len(p.Symbols) {
			return fmt.Sprintf(" (%s)", p.Symbols[arg])
		}
	case OP_CONVERT, OP_LOAD_IND, OP_STORE_IND, OP_INDEX, OP_STORE_IDX:
		if arg < len(p.Types) {
			return fmt.Sprintf(" (%s)", p.Types[arg])
		}
	}
	return ""
}
