// label.go provides unique basic-block names for LLVM IR and interned keys
// for the global string-literal pool.
//
// Ground: util/label.go's channel-based generator. The teacher runs one
// label generator as a package-level goroutine serving every worker thread
// in the process. That doesn't fit here: spec.md §9 retires hidden
// package-level singletons in favor of resources a Cg owns per compilation,
// so Labeler is a small mutex-guarded struct instead of a goroutine+channel
// pair, constructed once per driver.Build call.
package util

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// LabelKind selects which basic-block name family Block draws from.
type LabelKind int

const (
	LabelIfThen LabelKind = iota
	LabelIfElse
	LabelIfEnd
	LabelWhileHead
	LabelWhileEnd
	LabelForHead
	LabelForEnd
	LabelLoopBody
	labelKindCount
)

var labelPrefixes = [labelKindCount]string{
	"if.then",
	"if.else",
	"if.end",
	"while.head",
	"while.end",
	"for.head",
	"for.end",
	"loop.body",
}

// Labeler generates unique LLVM basic-block names for one compilation unit.
// Safe for concurrent use; the current codegen pipeline calls it from a
// single goroutine.
type Labeler struct {
	mx      sync.Mutex
	indices [labelKindCount]int
}

// NewLabeler returns a fresh Labeler with every counter at zero.
func NewLabeler() *Labeler {
	return &Labeler{}
}

// Block returns the next unique name for kind, e.g. "if.then.3".
func (l *Labeler) Block(kind LabelKind) string {
	l.mx.Lock()
	defer l.mx.Unlock()
	if kind < 0 || kind >= labelKindCount {
		return "label.invalid"
	}
	name := fmt.Sprintf("%s.%d", labelPrefixes[kind], l.indices[kind])
	l.indices[kind]++
	return name
}

// InternKey returns a stable name for the global that backs string literal
// s in the module's string pool, keyed by FNV-1a so the same literal always
// maps to the same global name. The key alone does not deduplicate: the
// codegen's string cache, guarded by its own lock, does that (spec.md §4.A).
func InternKey(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf(".str.%016x", h.Sum64())
}
