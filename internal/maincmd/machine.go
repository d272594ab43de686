package maincmd

import (
	"github.com/mna/mainer"

	"github.com/mna/loxvm/lang/compiler"
	"github.com/mna/loxvm/lang/value"
	"github.com/mna/loxvm/vm"
)

// newMachine builds a VM wired to stdio and the --trace flag.
func newMachine(stdio mainer.Stdio, c *Cmd) *vm.VM {
	m := vm.New()
	m.Stdout = stdio.Stdout
	m.Stderr = stdio.Stderr
	if c.Trace {
		m.Trace = stdio.Stdout
	}
	return m
}

// compileForDisassembly compiles src against m's string table without
// running it, for the --with-disassembly preview.
func compileForDisassembly(src []byte, m *vm.VM) (*value.ObjFunction, error) {
	return compiler.Compile(string(src), m)
}
