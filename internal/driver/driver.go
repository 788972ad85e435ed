// Package driver orchestrates a compilation end to end (spec.md §4.I):
// run the analysis passes, lower every class and function into LLVM IR,
// verify the module, then either write it out (.ll/.o/linked executable)
// or JIT-execute it.
//
// Ground: ir/llvm/transform.go's GenLLVM — header pass then body pass over
// collected functions, then genMain, then the target-machine/emission
// tail (InitializeAllTargets.../CreateTargetMachine/EmitToMemoryBuffer).
// GenLLVM's two responsibilities (IR construction, native emission) are
// split here into lowering (internal/codegen) and this package, since
// spec.md §4.I treats them as one orchestration step rather than one
// function.
package driver

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tinygo.org/x/go-llvm"

	"breadc/internal/analysis"
	"breadc/internal/ast"
	"breadc/internal/codegen"
	"breadc/internal/runtimebridge"
	"breadc/internal/util"
)

// ErrorKind classifies a driver.Error so callers (cmd/breadc) can pick an
// exit code without string-matching (spec.md §7).
type ErrorKind int

const (
	CompileError ErrorKind = iota
	CodegenInternalError
	VerificationError
	EmissionError
	JITError
	BoundsError
	TypeError
)

func (k ErrorKind) String() string {
	switch k {
	case CompileError:
		return "CompileError"
	case CodegenInternalError:
		return "CodegenInternalError"
	case VerificationError:
		return "VerificationError"
	case EmissionError:
		return "EmissionError"
	case JITError:
		return "JITError"
	case BoundsError:
		return "BoundsError"
	case TypeError:
		return "TypeError"
	default:
		return "UnknownError"
	}
}

// Error is the driver's error taxonomy (spec.md §7): every stage wraps its
// failure in one of these so errors.As can recover Kind without parsing
// the message.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Build runs the full pipeline over an analyzed root and acts on
// opt.Emit. root's top-level ClassDecl and FunctionDecl children are
// registered as declarations; any other child is kept as a bare top-level
// statement for the synthesized main.
func Build(opt util.Options, root *ast.Node) error {
	if root == nil || root.Kind != ast.Program {
		return wrap(CompileError, "expected a Program root node", nil)
	}

	diag := util.NewDiag(opt.Verbose)
	diag.Printf("driver", "run %s: compiling %s", opt.RunID, opt.Src)

	stability := analysis.Analyze(root)
	escape := analysis.AnalyzeEscape(root)

	moduleName := filepath.Base(opt.Src)
	if moduleName == "" || moduleName == "." {
		moduleName = "bread_module"
	}
	cg := codegen.New(moduleName, diag)
	cg.Stability = stability
	cg.Escape = escape
	defer cg.Dispose()

	topStmts, err := registerDecls(cg, root)
	if err != nil {
		return err
	}
	if err := codegen.LowerClassBodies(cg); err != nil {
		return wrap(CodegenInternalError, "lowering class bodies", err)
	}
	for _, fn := range cg.Funcs {
		if err := codegen.LowerFunctionBody(cg, fn); err != nil {
			return wrap(CodegenInternalError, fmt.Sprintf("lowering function %s", fn.Name), err)
		}
	}

	initFn := codegen.BuildRuntimeInitClasses(cg)
	if _, err := codegen.BuildMain(cg, initFn, topStmts); err != nil {
		return wrap(CodegenInternalError, "building main", err)
	}

	if err := verify(cg); err != nil {
		return err
	}

	diag.Dump(cg.Module.String())

	switch opt.Emit {
	case util.EmitLL:
		return emitLL(opt, cg)
	case util.EmitObj:
		return emitObj(opt, cg, llvm.ObjectFile)
	case util.EmitJIT:
		return runJIT(cg)
	default:
		return emitExe(opt, cg)
	}
}

// registerDecls runs spec.md §4.I's two-pass scheme over the program's
// top-level children: pre-declare every class's and function's IR
// signature first (so any call site can reference it regardless of
// declaration order), deferring bodies to the second pass. Any child
// that isn't a ClassDecl/FunctionDecl is a bare top-level statement
// (spec.md §8's end-to-end scenarios are scripts, not bodies of a
// user-written main) and is returned for BuildMain to lower in source
// order alongside the other top-level statements.
//
// Ground: ir/llvm/transform.go's GenLLVM — collect funcWrapper headers in
// one pass over root.Children, then lower bodies in a second pass.
func registerDecls(cg *codegen.Cg, root *ast.Node) ([]*ast.Node, error) {
	var topStmts []*ast.Node
	for _, n := range root.Children {
		switch n.Kind {
		case ast.ClassDecl:
			codegen.RegisterClassDecl(cg, n)
		case ast.FunctionDecl:
			d := n.Data.(ast.FunctionDeclData)
			if d.IsMethod {
				return nil, wrap(CodegenInternalError,
					fmt.Sprintf("top-level FunctionDecl %q is marked IsMethod", d.Name), nil)
			}
			ir := cg.DeclareFunction(d.Name, len(d.Params))
			cg.RegisterFunc(&codegen.CgFunction{
				Name: d.Name, IR: ir, Body: n.Children[0],
				Params: d.Params, RequiredParams: d.RequiredCount(),
			})
		default:
			topStmts = append(topStmts, n)
		}
	}
	return topStmts, nil
}

func verify(cg *codegen.Cg) error {
	if err := llvm.VerifyModule(cg.Module, llvm.ReturnStatusAction); err != nil {
		return wrap(VerificationError, "module verification failed", err)
	}
	return nil
}

func emitLL(opt util.Options, cg *codegen.Cg) error {
	out := opt.Out
	if out == "" {
		out = fmt.Sprintf("./%s.ll", strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src)))
	}
	if err := os.WriteFile(out, []byte(cg.Module.String()), 0644); err != nil {
		return wrap(EmissionError, "writing .ll output", err)
	}
	return nil
}

// targetMachine builds a target machine for opt's triple, defaulting to
// the host when TargetArch is empty.
//
// Ground: ir/llvm/transform.go's genTargetTriple/CreateTargetMachine tail,
// simplified since Options here carries plain triple-component strings
// rather than the teacher's enum enumerations.
func targetMachine(opt util.Options) (llvm.TargetMachine, error) {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple := llvm.DefaultTargetTriple()
	if opt.TargetArch != "" {
		vendor := opt.TargetVendor
		if vendor == "" {
			vendor = "pc"
		}
		osName := opt.TargetOS
		if osName == "" {
			osName = "unknown"
		}
		triple = fmt.Sprintf("%s-%s-%s", opt.TargetArch, vendor, osName)
	}

	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return llvm.TargetMachine{}, wrap(EmissionError, "resolving target triple "+triple, err)
	}
	tm := target.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelDefault, llvm.RelocDefault, llvm.CodeModelDefault)
	return tm, nil
}

func emitObj(opt util.Options, cg *codegen.Cg, ft llvm.CodeGenFileType) error {
	tm, err := targetMachine(opt)
	if err != nil {
		return err
	}
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()
	cg.Module.SetDataLayout(td.String())
	cg.Module.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(cg.Module, ft)
	if err != nil {
		return wrap(EmissionError, "emitting object code", err)
	}

	out := opt.Out
	if out == "" {
		out = fmt.Sprintf("./%s.o", strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src)))
	}
	if err := os.WriteFile(out, buf.Bytes(), 0755); err != nil {
		return wrap(EmissionError, "writing object file", err)
	}
	return nil
}

// emitExe emits an object file to a temp path and invokes the system
// linker (the C compiler driver, which carries the runtime's archive) to
// produce an executable, per spec.md §1's "the driver shells out to it
// but does not implement it".
func emitExe(opt util.Options, cg *codegen.Cg) error {
	objPath := opt.Out + ".tmp.o"
	if opt.Out == "" {
		objPath = fmt.Sprintf("./%s.tmp.o", strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src)))
	}
	objOpt := opt
	objOpt.Out = objPath
	if err := emitObj(objOpt, cg, llvm.ObjectFile); err != nil {
		return err
	}
	defer os.Remove(objPath)

	out := opt.Out
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src))
	}

	linker := "cc"
	args := []string{objPath, "-o", out, "-lbreadrt"}
	if opt.DebugLink {
		fmt.Println(strings.Join(append([]string{linker}, args...), " "))
	}
	cmd := exec.Command(linker, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return wrap(EmissionError, "invoking linker", err)
	}
	return nil
}

// runJIT wires a compiled module into the boxed-value runtime and executes
// main (spec.md §4.H/§4.I's --jit path). main is self-contained — BuildMain
// already emits the runtime_init_classes/subsystem-init call sequence as
// its own first instructions — so unlike ExecuteCompiledMethod callers,
// this runs no separate RunInit first.
func runJIT(cg *codegen.Cg) error {
	bridge, err := runtimebridge.New(cg)
	if err != nil {
		return wrap(JITError, "creating execution engine", err)
	}
	defer bridge.Dispose()

	if _, err := bridge.ExecuteMain(); err != nil {
		return wrap(JITError, "executing main", err)
	}
	return nil
}

// IsErrorKind reports whether err wraps a driver.Error of kind k.
func IsErrorKind(err error, k ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == k
	}
	return false
}
