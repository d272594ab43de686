package compiler

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/mna/loxvm/lang/debug"
	"github.com/mna/loxvm/lang/value"
	"github.com/stretchr/testify/require"
)

// testInterner is a minimal Interner for compiler tests: it deduplicates by
// byte sequence the same way the VM's real intern table does, so tests can
// assert reference identity of string constants.
type testInterner struct {
	table map[string]*value.ObjString
}

func newTestInterner() *testInterner { return &testInterner{table: map[string]*value.ObjString{}} }

func (ti *testInterner) Intern(s string) *value.ObjString {
	if existing, ok := ti.table[s]; ok {
		return existing
	}
	obj := value.NewObjString(s)
	ti.table[s] = obj
	return obj
}

func compileOK(t *testing.T, src string) *value.ObjFunction {
	t.Helper()
	fn, err := Compile(src, newTestInterner())
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

func TestCompileSimpleExpression(t *testing.T) {
	fn := compileOK(t, "print 1 + 2 * 3;")
	require.Contains(t, fn.Chunk.Code, byte(value.OpAdd))
	require.Contains(t, fn.Chunk.Code, byte(value.OpMultiply))
	require.Contains(t, fn.Chunk.Code, byte(value.OpPrint))
}

func TestCompileStringInterningSharedAcrossLiterals(t *testing.T) {
	ti := newTestInterner()
	fn, err := Compile(`var a = "foo"; var b = "foo";`, ti)
	require.NoError(t, err)
	var strs []*value.ObjString
	for _, c := range fn.Chunk.Constants {
		if c.IsString() {
			strs = append(strs, c.AsString())
		}
	}
	// "a", "foo", "b", "foo": the two "foo" constants must be the same
	// pointer because they were interned.
	require.Len(t, strs, 4)
	require.Same(t, strs[1], strs[3])
}

func TestCompileConstantLongPromotion(t *testing.T) {
	var src string
	for i := 0; i < 300; i++ {
		src += "print 1;\n"
	}
	fn := compileOK(t, src)
	require.Greater(t, len(fn.Chunk.Constants), 255)
	require.Contains(t, fn.Chunk.Code, byte(value.OpConstantLong))
}

func TestCompileTooManyParameters(t *testing.T) {
	var params string
	for i := 0; i < 256; i++ {
		if i > 0 {
			params += ","
		}
		params += "p" + strconv.Itoa(i)
	}
	src := "fun f(" + params + ") { return 1; }"
	_, err := Compile(src, newTestInterner())
	require.ErrorContains(t, err, "Can't have more than 255 parameters.")
}

func TestCompileReturnAtTopLevelIsError(t *testing.T) {
	_, err := Compile("return 1;", newTestInterner())
	require.Error(t, err)
}

func TestCompileInvalidAssignmentTarget(t *testing.T) {
	_, err := Compile("1 + 2 = 3;", newTestInterner())
	require.Error(t, err)
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	fn := compileOK(t, `
		fun make() {
			var x = 0;
			fun inc() { x = x + 1; return x; }
			return inc;
		}
	`)
	// the top-level script defines a global "make" via OP_DEFINE_GLOBAL; the
	// make function itself emits an OP_CLOSURE for inc with one upvalue.
	require.NotNil(t, fn)
	require.Contains(t, fn.Chunk.Code, byte(value.OpDefineGlobal))

	var makeFn, incFn *value.ObjFunction
	for _, k := range fn.Chunk.Constants {
		if f, ok := k.AsObj().(*value.ObjFunction); ok {
			makeFn = f
		}
	}
	require.NotNil(t, makeFn)
	require.Contains(t, makeFn.Chunk.Code, byte(value.OpClosure))
	for _, k := range makeFn.Chunk.Constants {
		if f, ok := k.AsObj().(*value.ObjFunction); ok {
			incFn = f
		}
	}
	require.NotNil(t, incFn)
	require.Equal(t, 1, incFn.UpvalueCount)
}

func TestMultipleErrorsAreAggregated(t *testing.T) {
	_, err := Compile("1 1; 2 2; 3 3;", newTestInterner())
	require.Error(t, err)
	var errs ErrorList
	require.ErrorAs(t, err, &errs)
	require.GreaterOrEqual(t, len(errs), 2)
}

func TestRecompilingEquivalentSourceIsByteIdentical(t *testing.T) {
	src := `
		var total = 0;
		fun add(a, b) { return a + b; }
		for (var i = 0; i < 3; i = i + 1) total = add(total, i);
		print total;
	`
	fn1 := compileOK(t, src)
	fn2 := compileOK(t, src)

	require.Equal(t, fn1.Chunk.Code, fn2.Chunk.Code)
	require.Equal(t, len(fn1.Chunk.Constants), len(fn2.Chunk.Constants))
	for i := range fn1.Chunk.Constants {
		require.Equal(t, fn1.Chunk.Constants[i].String(), fn2.Chunk.Constants[i].String())
	}

	var dis1, dis2 bytes.Buffer
	debug.DisassembleChunk(&dis1, &fn1.Chunk, "test")
	debug.DisassembleChunk(&dis2, &fn2.Chunk, "test")
	require.Equal(t, dis1.String(), dis2.String())
}

func TestPatchJumpOverflow(t *testing.T) {
	c := &compiler{intern: newTestInterner()}
	topLevel := value.NewObjFunction()
	c.fc = &funcState{function: topLevel, kind: funcKindScript}
	off := c.emitJump(value.OpJump)
	// pad past the 16-bit limit
	for i := 0; i < 0x10001; i++ {
		c.emitOp(value.OpNil)
	}
	c.patchJump(off)
	require.True(t, c.hadError)
}
