// Package debug implements the bytecode disassembler and instruction
// tracer used by the --with-disassembly and --trace CLI flags.
package debug

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mna/loxvm/lang/value"
)

// DisassembleChunk writes a human-readable listing of every instruction in
// chunk to w, prefixed by name.
func DisassembleChunk(w io.Writer, chunk *value.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction writes a single instruction at offset to w and
// returns the offset of the next instruction.
func DisassembleInstruction(w io.Writer, chunk *value.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)

	line := chunk.LineOf(offset)
	if offset > 0 && line == chunk.LineOf(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	op := value.OpCode(chunk.Code[offset])
	switch op {
	case value.OpConstant:
		return constantInstruction(w, op, chunk, offset)
	case value.OpConstantLong:
		return constantLongInstruction(w, op, chunk, offset)
	case value.OpGetLocal, value.OpSetLocal, value.OpGetUpvalue, value.OpSetUpvalue, value.OpCall:
		return byteInstruction(w, op, chunk, offset)
	case value.OpGetGlobal, value.OpDefineGlobal, value.OpSetGlobal:
		return constantInstruction(w, op, chunk, offset)
	case value.OpJump, value.OpJumpIfFalse:
		return jumpInstruction(w, op, 1, chunk, offset)
	case value.OpLoop:
		return jumpInstruction(w, op, -1, chunk, offset)
	case value.OpClosure:
		return closureInstruction(w, chunk, offset)
	default:
		return simpleInstruction(w, op, offset)
	}
}

func simpleInstruction(w io.Writer, op value.OpCode, offset int) int {
	fmt.Fprintf(w, "%s\n", op)
	return offset + 1
}

func byteInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, slot)
	return offset + 2
}

func jumpInstruction(w io.Writer, op value.OpCode, sign int, chunk *value.Chunk, offset int) int {
	jump := int(binary.BigEndian.Uint16(chunk.Code[offset+1 : offset+3]))
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, target)
	return offset + 3
}

func constantInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].String())
	return offset + 2
}

func constantLongInstruction(w io.Writer, op value.OpCode, chunk *value.Chunk, offset int) int {
	idx := int(chunk.Code[offset+1]) | int(chunk.Code[offset+2])<<8 | int(chunk.Code[offset+3])<<16
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].String())
	return offset + 4
}

func closureInstruction(w io.Writer, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", value.OpClosure, idx, chunk.Constants[idx].String())
	offset += 2

	fn, ok := chunk.Constants[idx].AsObj().(*value.ObjFunction)
	if !ok {
		return offset
	}
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}
