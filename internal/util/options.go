// Package util provides the ambient stack shared by analysis, codegen and
// the driver: CLI option parsing, parallel error aggregation, scope/loop
// stacks, label/name generation, and verbose diagnostic output.
//
// Ground: vslc's util package (args.go, perror.go, stack.go, label.go,
// io.go), extended with the LLVM-era emission flags from spec.md §6 and a
// handful of ambient-stack libraries drawn from the rest of the pack.
package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// EmitMode selects the driver's output stage (spec.md §4.I, §6).
type EmitMode int

const (
	EmitExe EmitMode = iota // Default: verify, emit object, invoke linker.
	EmitLL
	EmitObj
	EmitJIT
)

// Options collects the compiler's configuration, merged from (in
// increasing priority) breadc.yaml, environment variables, and CLI flags.
type Options struct {
	Src     string // Path to source file.
	Out     string // Path to output file.
	Threads int    // Requested thread count; validated, but every pass runs sequentially.
	Verbose bool   // Print compiler diagnostics and IR dump to stdout.

	Emit EmitMode

	TargetArch   string // e.g. "x86_64", "aarch64". Empty = host default.
	TargetVendor string
	TargetOS     string

	// DebugLink mirrors the BREAD_DEBUG_LINK environment variable: when
	// set, the driver prints the linker command line before running it.
	DebugLink bool

	// RunID identifies this compilation for diagnostic logging; stamped
	// once per process so concurrent breadc invocations writing to a
	// shared log can be told apart.
	RunID uuid.UUID

	// isTTY caches whether Verbose output should be colorized.
	isTTY bool
}

const maxThreads = 64
const appVersion = "breadc 0.1"

// fileConfig is the shape of an optional breadc.yaml project config file,
// applied before CLI flags so flags always win.
//
// Ground: funvibe-funxy/internal/ext/config.go's yaml.v3 struct-tag style.
type fileConfig struct {
	Threads      int    `yaml:"threads"`
	TargetArch   string `yaml:"target_arch"`
	TargetVendor string `yaml:"target_vendor"`
	TargetOS     string `yaml:"target_os"`
	Verbose      bool   `yaml:"verbose"`
}

// ParseArgs parses command line arguments, merging over any breadc.yaml
// found in the working directory.
func ParseArgs() (Options, error) {
	opt := Options{
		RunID: uuid.New(),
		isTTY: isatty.IsTerminal(os.Stdout.Fd()),
	}

	if cfg, err := loadFileConfig("breadc.yaml"); err == nil {
		applyFileConfig(&opt, cfg)
	}

	if os.Getenv("BREAD_DEBUG_LINK") != "" {
		opt.DebugLink = true
	}

	if len(os.Args) < 2 {
		return opt, nil
	}
	args := os.Args[1:]

	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--help", "-help":
			printHelp()
			os.Exit(0)
		case "-v", "--version":
			fmt.Println(appVersion)
			os.Exit(0)
		case "--verbose", "-vb":
			opt.Verbose = true
		case "--emit-ll":
			opt.Emit = EmitLL
		case "--emit-obj":
			opt.Emit = EmitObj
		case "--emit-exe":
			opt.Emit = EmitExe
		case "--jit":
			opt.Emit = EmitJIT
		case "-o":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			opt.Out = args[i1+1]
			i1++
		case "-t":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			t, err := strconv.Atoi(args[i1+1])
			if err != nil || t < 1 || t > maxThreads {
				return opt, fmt.Errorf("thread count must be integer in range [1, %d]", maxThreads)
			}
			opt.Threads = t
			i1++
		case "-arch":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			opt.TargetArch = args[i1+1]
			i1++
		case "-os":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			opt.TargetOS = args[i1+1]
			i1++
		case "-vendor":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			opt.TargetVendor = args[i1+1]
			i1++
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			opt.Src = args[i1]
		}
	}
	if opt.Threads == 0 {
		opt.Threads = 1
	}
	return opt, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func applyFileConfig(opt *Options, cfg fileConfig) {
	if cfg.Threads > 0 {
		opt.Threads = cfg.Threads
	}
	if cfg.TargetArch != "" {
		opt.TargetArch = cfg.TargetArch
	}
	if cfg.TargetVendor != "" {
		opt.TargetVendor = cfg.TargetVendor
	}
	if cfg.TargetOS != "" {
		opt.TargetOS = cfg.TargetOS
	}
	opt.Verbose = opt.Verbose || cfg.Verbose
}

// Colorize wraps s in an ANSI color code when verbose output is going to a
// real terminal, and leaves it untouched otherwise (ground: isatty usage
// in funvibe-funxy/internal/evaluator/builtins_term.go).
func (o Options) Colorize(code, s string) string {
	if !o.isTTY {
		return s
	}
	return fmt.Sprintf("\x1b[%sm%s\x1b[0m", code, s)
}

func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, --help\tPrints this help message and exits.")
	_, _ = fmt.Fprintln(w, "--emit-ll\tPrint the generated LLVM IR to the output file.")
	_, _ = fmt.Fprintln(w, "--emit-obj\tEmit a native object file.")
	_, _ = fmt.Fprintln(w, "--emit-exe\tEmit a native executable by invoking the linker (default).")
	_, _ = fmt.Fprintln(w, "--jit\tJIT-execute the compiled module instead of writing output.")
	_, _ = fmt.Fprintln(w, "-o\tPath to the output file.")
	_, _ = fmt.Fprintf(w, "-t\tThread count, in range [1, %d]. Accepted and validated; passes currently run sequentially.\n", maxThreads)
	_, _ = fmt.Fprintln(w, "-arch, -os, -vendor\tTarget triple components. Default to host.")
	_, _ = fmt.Fprintln(w, "--verbose, -vb\tPrint compiler diagnostics and the generated IR to stdout.")
	_, _ = fmt.Fprintln(w, "-v, --version\tPrints application version and exits.")
	_ = w.Flush()
}
