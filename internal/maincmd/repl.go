package maincmd

import (
	"bufio"
	"fmt"
	"io"

	"context"

	"github.com/mna/mainer"

	"github.com/mna/loxvm/vm"
)

// repl reads one line at a time from stdio.Stdin, interprets it, and loops
// until EOF. Each line runs against the same VM, so globals and closures
// persist across lines the way a long-running script would see them within
// a single run. The loop always exits 0; a compile or runtime error on one
// line is reported and the REPL simply continues.
func (c *Cmd) repl(ctx context.Context, stdio mainer.Stdio) int {
	m := newMachine(stdio, c)
	scan := bufio.NewScanner(stdio.Stdin)

	fmt.Fprint(stdio.Stdout, "> ")
	for scan.Scan() {
		select {
		case <-ctx.Done():
			return 0
		default:
		}
		m.Interpret(scan.Text())
		fmt.Fprint(stdio.Stdout, "> ")
	}
	if err := scan.Err(); err != nil && err != io.EOF {
		fmt.Fprintln(stdio.Stderr, err)
	}
	fmt.Fprintln(stdio.Stdout)
	return 0
}
