package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/loxvm/lang/value"
)

func TestDisassembleChunkSimpleInstructions(t *testing.T) {
	var c value.Chunk
	c.WriteConstant(value.Number(1), 1)
	c.Write(byte(value.OpPrint), 1)
	c.Write(byte(value.OpNil), 2)
	c.Write(byte(value.OpReturn), 2)

	var buf bytes.Buffer
	DisassembleChunk(&buf, &c, "test")

	out := buf.String()
	require.Contains(t, out, "== test ==")
	require.Contains(t, out, "OP_CONSTANT")
	require.Contains(t, out, "OP_PRINT")
	require.Contains(t, out, "OP_RETURN")
}

func TestDisassembleJumpInstruction(t *testing.T) {
	var c value.Chunk
	c.Write(byte(value.OpJump), 1)
	c.Write(0, 1)
	c.Write(5, 1)
	c.Write(byte(value.OpReturn), 1)

	var buf bytes.Buffer
	offset := DisassembleInstruction(&buf, &c, 0)
	require.Equal(t, 3, offset)
	require.Contains(t, buf.String(), "OP_JUMP")
	require.Contains(t, buf.String(), "-> 8")
}

func TestDisassembleConstantLongInstruction(t *testing.T) {
	var c value.Chunk
	for i := 0; i < 257; i++ {
		c.AddConstant(value.Number(float64(i)))
	}
	c.Write(byte(value.OpConstantLong), 1)
	c.Write(0, 1) // low byte of index 256 (0x000100)
	c.Write(1, 1) // mid byte
	c.Write(0, 1) // high byte

	var buf bytes.Buffer
	offset := DisassembleInstruction(&buf, &c, 0)
	require.Equal(t, 4, offset)
	require.Contains(t, buf.String(), "OP_CONSTANT_LONG")
}
