package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFalsey(t *testing.T) {
	require.True(t, Nil.IsFalsey())
	require.True(t, Bool(false).IsFalsey())
	require.False(t, Bool(true).IsFalsey())
	require.False(t, Number(0).IsFalsey())
	require.False(t, FromObj(NewObjString("")).IsFalsey())
}

func TestEqual(t *testing.T) {
	require.True(t, Equal(Nil, Nil))
	require.True(t, Equal(Bool(true), Bool(true)))
	require.False(t, Equal(Bool(true), Bool(false)))
	require.True(t, Equal(Number(1), Number(1)))
	require.False(t, Equal(Number(1), Number(2)))
	require.False(t, Equal(Nil, Bool(false)))
	require.False(t, Equal(Number(0), Bool(false)))

	s1 := NewObjString("abc")
	s2 := NewObjString("abc") // distinct allocation, same bytes, NOT interned here
	require.False(t, Equal(FromObj(s1), FromObj(s2)))
	require.True(t, Equal(FromObj(s1), FromObj(s1)))
}

func TestPrintedForm(t *testing.T) {
	require.Equal(t, "nil", Nil.String())
	require.Equal(t, "true", Bool(true).String())
	require.Equal(t, "false", Bool(false).String())
	require.Equal(t, "1", Number(1).String())
	require.Equal(t, "1.5", Number(1.5).String())
	require.Equal(t, "foo", FromObj(NewObjString("foo")).String())

	fn := NewObjFunction()
	require.Equal(t, "<script>", fn.String())
	fn.Name = NewObjString("add")
	require.Equal(t, "<fn add>", fn.String())

	closure := NewObjClosure(fn)
	require.Equal(t, "<fn add>", closure.String())

	native := NewObjNative("clock", func(args []Value) Value { return Number(0) })
	require.Equal(t, "<native fn>", native.String())
}

func TestFNV1a32(t *testing.T) {
	// known FNV-1a 32-bit vectors
	require.Equal(t, uint32(0x811c9dc5), FNV1a32(""))
	require.Equal(t, uint32(0xe40c292c), FNV1a32("a"))
}
