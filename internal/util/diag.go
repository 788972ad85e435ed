// diag.go provides unbuffered diagnostic output for verbose mode.
//
// Ground: util/io.go's Writer/ListenWrite pair, repurposed from assembler-
// line buffering to verbose-mode diagnostic buffering, since this core
// never emits text assembly (backend/asm.go's job is gone — see DESIGN.md).
// The teacher serializes many worker goroutines' text through a channel
// listener because each one appends instruction-by-instruction; here each
// caller logs a handful of lines at a time, so a mutex around a single
// io.Writer is enough and avoids the goroutine-lifecycle bookkeeping
// (ListenWrite/Close) the channel version needed.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Diag prints verbose compiler diagnostics (pass progress lines, IR
// dumps) straight to its writer, one whole line per call. Safe for
// concurrent use.
type Diag struct {
	mx      sync.Mutex
	w       io.Writer
	enabled bool
}

// NewDiag returns a Diag that writes to os.Stdout when enabled is true,
// and discards everything otherwise.
func NewDiag(enabled bool) *Diag {
	return &Diag{w: os.Stdout, enabled: enabled}
}

// Printf writes a formatted diagnostic line, prefixed with tag in
// brackets, if diagnostics are enabled.
func (d *Diag) Printf(tag, format string, args ...interface{}) {
	if d == nil || !d.enabled {
		return
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	fmt.Fprintf(d.w, "[%s] %s\n", tag, fmt.Sprintf(format, args...))
}

// Dump writes s verbatim, terminated with a newline, if diagnostics are
// enabled. Used for IR dumps (llvm.Module.String()) which already contain
// their own internal formatting.
func (d *Diag) Dump(s string) {
	if d == nil || !d.enabled {
		return
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	fmt.Fprintln(d.w, s)
}
