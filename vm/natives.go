package vm

import (
	"time"

	"github.com/mna/loxvm/lang/value"
)

// start anchors clock()'s epoch; only the elapsed duration since this
// package was initialized is observable, never wall-clock time, so no host
// environment state leaks into Lox code.
var start = time.Now()

// nativeClock implements the standard environment's clock(): seconds since
// an arbitrary epoch, double precision.
func nativeClock(args []value.Value) value.Value {
	return value.Number(time.Since(start).Seconds())
}
