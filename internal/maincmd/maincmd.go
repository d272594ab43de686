package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"
)

const binName = "lox"

// exit codes: 0 on success, 65 on a compile error, 70 on a runtime error,
// 74 when the source file can't be read at all (a fatal host error,
// distinct from either kind of Lox-level failure).
const (
	exitDataErr = 65
	exitSoftErr = 70
	exitIOErr   = 74
)

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Bytecode compiler and virtual machine for the Lox programming language.

With a <path> argument, compiles and runs the named source file, then
exits 0 on success, 65 on a compile error, 70 on a runtime error, or 74
if the file can't be read. With no <path>, starts an interactive
read-eval-print loop over stdin/stdout, running until end of input.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --trace                   Print each instruction as it executes.
       --with-disassembly        Print the compiled chunk before running it.
`, binName)
)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Trace           bool `flag:"trace"`
	WithDisassembly bool `flag:"with-disassembly"`

	args []string
}

func (c *Cmd) SetArgs(args []string) { c.args = args }
func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return errors.New("at most one source file path may be provided")
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if len(c.args) == 1 {
		return mainer.ExitCode(c.runFile(ctx, stdio, c.args[0]))
	}
	return mainer.ExitCode(c.repl(ctx, stdio))
}
