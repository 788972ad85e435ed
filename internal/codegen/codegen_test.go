package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"breadc/internal/analysis"
	"breadc/internal/ast"
	"breadc/internal/types"
	"breadc/internal/util"
)

// newTestCg builds a Cg with stability/escape annotations over root, ready
// to register and lower functions/classes — the codegen package's
// counterpart of driver.Build's setup, kept local so these tests don't
// depend on internal/driver.
func newTestCg(root *ast.Node) *Cg {
	cg := New("test", util.NewDiag(false))
	cg.Stability = analysis.Analyze(root)
	cg.Escape = analysis.AnalyzeEscape(root)
	return cg
}

func lowerFunc(t *testing.T, cg *Cg, decl *ast.Node) {
	t.Helper()
	d := decl.Data.(ast.FunctionDeclData)
	ir := cg.DeclareFunction(d.Name, len(d.Params))
	fn := &CgFunction{Name: d.Name, IR: ir, Body: decl.Children[0], Params: d.Params, RequiredParams: d.RequiredCount()}
	require.NoError(t, LowerFunctionBody(cg, fn))
}

func TestVarDeclUnboxedIntGetsDualSlots(t *testing.T) {
	body := ast.Blk(
		ast.VarDeclStmt("x", types.Scalar(types.TypeInt), false, ast.Int(1)),
		ast.ReturnStmt(ast.Ident("x")),
	)
	decl := ast.FunctionDeclStmt("f", nil, nil, body)
	cg := newTestCg(ast.Program(decl))
	lowerFunc(t, cg, decl)

	ir := cg.Module.String()
	require.Contains(t, ir, "define void @f")
	require.Contains(t, ir, "call i64 @value_get_int")
	require.Contains(t, ir, "call i32 @var_decl")
}

func TestArithmeticTakesUnboxedFastPathWhenStable(t *testing.T) {
	ref := ast.Ident("x")
	body := ast.Blk(
		ast.VarDeclStmt("x", types.Scalar(types.TypeInt), false, ast.Int(1)),
		ast.ReturnStmt(ast.Bin("+", ref, ast.Int(2))),
	)
	decl := ast.FunctionDeclStmt("f", nil, nil, body)
	cg := newTestCg(ast.Program(decl))
	lowerFunc(t, cg, decl)

	ir := cg.Module.String()
	require.Contains(t, ir, "add i64")
	require.Contains(t, ir, "call void @value_set_int")
}

func TestStringLiteralsAreInternedAndDeduplicated(t *testing.T) {
	body := ast.Blk(
		ast.PrintStmt(ast.Str("hello")),
		ast.PrintStmt(ast.Str("hello")),
	)
	decl := ast.FunctionDeclStmt("f", nil, nil, body)
	cg := newTestCg(ast.Program(decl))
	lowerFunc(t, cg, decl)

	require.Equal(t, 1, len(cg.stringGlobals))
}

func TestWhileLoopWiresHeadBodyEndBlocks(t *testing.T) {
	body := ast.Blk(ast.WhileStmt(ast.Bool(true), ast.Blk(ast.BreakStmt())))
	decl := ast.FunctionDeclStmt("f", nil, nil, body)
	cg := newTestCg(ast.Program(decl))
	lowerFunc(t, cg, decl)

	ir := cg.Module.String()
	require.Contains(t, ir, "while.head")
	require.Contains(t, ir, "while.end")
}

func TestForRangeUsesRuntimeLoopVariableWithoutPhi(t *testing.T) {
	loop := ast.ForRangeStmt("i", 0, 10, 1, ast.Blk(ast.ContinueStmt()))
	decl := ast.FunctionDeclStmt("f", nil, nil, ast.Blk(loop))
	cg := newTestCg(ast.Program(decl))
	lowerFunc(t, cg, decl)

	ir := cg.Module.String()
	require.Contains(t, ir, "declare_loop_variable")
	require.NotContains(t, ir, "phi ")
}

func TestClassRegistersMangledMethodNames(t *testing.T) {
	speak := ast.FunctionDeclStmt("speak", nil, nil, ast.Blk(ast.ReturnStmt(nil)))
	init := ast.FunctionDeclStmt("init", nil, nil, ast.Blk(ast.ReturnStmt(nil)))
	cls := ast.ClassDeclStmt(ast.ClassDeclData{
		Name:        "Animal",
		FieldNames:  []string{"name"},
		Methods:     []*ast.Node{speak},
		Constructor: init,
	})
	cg := newTestCg(ast.Program(cls))
	c := RegisterClassDecl(cg, cls)
	require.NoError(t, LowerClassBodies(cg))

	ir := cg.Module.String()
	require.Contains(t, ir, "define void @Animal.speak")
	require.Contains(t, ir, "define void @Animal.init")
	require.Equal(t, "Animal", c.Name)
	require.Equal(t, []string{"speak"}, c.MethodNames)
}

func TestRuntimeInitClassesRegistersEveryClassAndResolvesInheritanceOnce(t *testing.T) {
	initA := ast.FunctionDeclStmt("init", nil, nil, ast.Blk(ast.ReturnStmt(nil)))
	clsA := ast.ClassDeclStmt(ast.ClassDeclData{Name: "Base", FieldNames: []string{"x"}, Constructor: initA})
	clsB := ast.ClassDeclStmt(ast.ClassDeclData{Name: "Derived", ParentName: "Base", FieldNames: []string{"y"}})

	cg := newTestCg(ast.Program(clsA, clsB))
	RegisterClassDecl(cg, clsA)
	RegisterClassDecl(cg, clsB)
	require.NoError(t, LowerClassBodies(cg))
	BuildRuntimeInitClasses(cg)

	ir := cg.Module.String()
	require.Contains(t, ir, "define void @runtime_init_classes")
	require.Equal(t, 1, countOccurrences(ir, "call void @class_resolve_inheritance"))
	require.Equal(t, 2, countOccurrences(ir, "call i8* @class_create_instance"))
}

func TestClassWithNoInitSynthesizesConstructorFromFieldDefaults(t *testing.T) {
	cls := ast.ClassDeclStmt(ast.ClassDeclData{
		Name:          "Point",
		FieldNames:    []string{"x", "y"},
		FieldDefaults: []*ast.Node{ast.Int(0), ast.Int(0)},
	})
	cg := newTestCg(ast.Program(cls))
	c := RegisterClassDecl(cg, cls)
	require.True(t, c.SyntheticCtor)
	require.NoError(t, LowerClassBodies(cg))

	ir := cg.Module.String()
	require.Contains(t, ir, "define void @Point.init")
	require.Equal(t, 2, countOccurrences(ir, "call i32 @member_set_op"))
}

func TestClassWithNoInitAndNoDefaultsGetsNoConstructor(t *testing.T) {
	cls := ast.ClassDeclStmt(ast.ClassDeclData{Name: "Empty", FieldNames: []string{"x"}})
	cg := newTestCg(ast.Program(cls))
	c := RegisterClassDecl(cg, cls)
	require.False(t, c.SyntheticCtor)
	require.True(t, c.ConstructorFunc.IsNil())
	require.NoError(t, LowerClassBodies(cg))
}

func TestAllFieldsOrdersParentFieldsFirstAndDeduplicates(t *testing.T) {
	clsA := ast.ClassDeclStmt(ast.ClassDeclData{Name: "Base", FieldNames: []string{"x", "y"}})
	clsB := ast.ClassDeclStmt(ast.ClassDeclData{Name: "Derived", ParentName: "Base", FieldNames: []string{"y", "z"}})

	cg := newTestCg(ast.Program(clsA, clsB))
	RegisterClassDecl(cg, clsA)
	RegisterClassDecl(cg, clsB)

	require.Equal(t, []string{"x", "y", "z"}, cg.allFields("Derived"))
}

func countOccurrences(s, substr string) int {
	n := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			n++
			i += len(substr) - 1
		}
	}
	return n
}
