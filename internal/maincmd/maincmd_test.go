package maincmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

func TestRunFileSuccessExitsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.lox")
	require.NoError(t, os.WriteFile(path, []byte("print 1 + 1;"), 0o644))

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	c := &Cmd{}
	code := c.runFile(context.Background(), stdio, path)

	require.Equal(t, 0, code)
	require.Equal(t, "2\n", out.String())
	require.Empty(t, errOut.String())
}

func TestRunFileCompileErrorExits65(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.lox")
	require.NoError(t, os.WriteFile(path, []byte("print ;"), 0o644))

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	c := &Cmd{}
	code := c.runFile(context.Background(), stdio, path)

	require.Equal(t, exitDataErr, code)
	require.NotEmpty(t, errOut.String())
}

func TestRunFileRuntimeErrorExits70(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.lox")
	require.NoError(t, os.WriteFile(path, []byte("print undefined_var;"), 0o644))

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	c := &Cmd{}
	code := c.runFile(context.Background(), stdio, path)

	require.Equal(t, exitSoftErr, code)
	require.Contains(t, errOut.String(), "Undefined variable undefined_var.")
}

func TestRunFileMissingFileIsFatalHostError(t *testing.T) {
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	c := &Cmd{}
	code := c.runFile(context.Background(), stdio, filepath.Join(t.TempDir(), "missing.lox"))

	require.Equal(t, exitIOErr, code)
	require.NotEmpty(t, errOut.String())
}

func TestReplKeepsGlobalsAcrossLines(t *testing.T) {
	in := bytes.NewBufferString("var a = 1;\nprint a + 1;\n")
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut, Stdin: in}
	c := &Cmd{}

	code := c.repl(context.Background(), stdio)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "2\n")
}

func TestWithDisassemblyPrintsChunkBeforeRunning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disasm.lox")
	require.NoError(t, os.WriteFile(path, []byte("print 1;"), 0o644))

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	c := &Cmd{WithDisassembly: true}
	code := c.runFile(context.Background(), stdio, path)

	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "== "+path+" ==")
	require.Contains(t, out.String(), "1\n")
}
