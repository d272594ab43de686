package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/loxvm/lang/debug"
	"github.com/mna/loxvm/vm"
)

// runFile reads the whole source file at path, interprets it, and returns
// the process exit code: 0 on success, 65 on a compile error, 70 on a
// runtime error. A read failure never reaches the compiler or VM at all,
// so it gets its own exit code rather than being folded into either.
func (c *Cmd) runFile(ctx context.Context, stdio mainer.Stdio, path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return exitIOErr
	}

	m := newMachine(stdio, c)
	if c.WithDisassembly {
		fn, cerr := compileForDisassembly(src, m)
		if cerr != nil {
			fmt.Fprintln(stdio.Stderr, cerr)
			return exitDataErr
		}
		debug.DisassembleChunk(stdio.Stdout, &fn.Chunk, path)
	}

	switch status := m.Interpret(string(src)); status {
	case vm.StatusOK:
		return 0
	case vm.StatusCompileError:
		return exitDataErr
	default:
		return exitSoftErr
	}
}
