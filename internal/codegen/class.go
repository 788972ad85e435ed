package codegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"breadc/internal/ast"
)

// declareMethodFunc declares a method/constructor IR function under the
// method ABI scaffold of spec.md §4.A: param 0 is the output Value*,
// param 1 is self, followed by paramCount boxed arguments.
func declareMethodFunc(cg *Cg, name string, paramCount int) llvm.Value {
	params := make([]llvm.Type, paramCount+2)
	for i1 := range params {
		params[i1] = cg.ValuePtrTy
	}
	ft := llvm.FunctionType(cg.VoidTy, params, false)
	return llvm.AddFunction(cg.Module, name, ft)
}

// RegisterClassDecl builds the compile-time Class record for a ClassDecl
// node and pre-declares every method/constructor IR function, so calls
// made while lowering other functions can reference them even before
// their bodies are emitted (spec.md §4.I's two-pass scheme applied to
// class bodies). IR function names are mangled class.method to avoid
// collisions between identically named methods on unrelated classes.
func RegisterClassDecl(cg *Cg, n *ast.Node) *Class {
	d := n.Data.(ast.ClassDeclData)
	cls := &Class{Name: d.Name, ParentName: d.ParentName, FieldNames: d.FieldNames, FieldDefaults: d.FieldDefaults}

	cls.Methods = append(cls.Methods, d.Methods...)
	for _, m := range d.Methods {
		md := m.Data.(ast.FunctionDeclData)
		cls.MethodNames = append(cls.MethodNames, md.Name)
	}
	cls.Constructor = d.Constructor

	cls.MethodFuncs = make([]llvm.Value, len(cls.Methods))
	for i1, m := range cls.Methods {
		md := m.Data.(ast.FunctionDeclData)
		irName := fmt.Sprintf("%s.%s", d.Name, md.Name)
		cls.MethodFuncs[i1] = declareMethodFunc(cg, irName, len(md.Params))
	}
	if cls.Constructor != nil {
		cd := cls.Constructor.Data.(ast.FunctionDeclData)
		cls.ConstructorFunc = declareMethodFunc(cg, fmt.Sprintf("%s.init", d.Name), len(cd.Params))
	} else if hasAnyDefault(cls.FieldDefaults) {
		cls.ConstructorFunc = declareMethodFunc(cg, fmt.Sprintf("%s.init", d.Name), 0)
		cls.SyntheticCtor = true
	}

	cg.RegisterClass(cls)
	return cls
}

func hasAnyDefault(defaults []*ast.Node) bool {
	for _, n := range defaults {
		if n != nil {
			return true
		}
	}
	return false
}

// syntheticInitBody builds self.field = <default> for every field on cls
// that declares one, as a Block AST so it runs through the normal
// statement lowerer like any other constructor body (spec.md §3's
// implicit default constructor for a class with no explicit init).
func syntheticInitBody(cls *Class) *ast.Node {
	var stmts []*ast.Node
	for i1, name := range cls.FieldNames {
		if i1 >= len(cls.FieldDefaults) || cls.FieldDefaults[i1] == nil {
			continue
		}
		stmts = append(stmts, &ast.Node{
			Kind:     ast.MemberAssign,
			Data:     ast.MemberAssignData{Name: name},
			Children: []*ast.Node{ast.Ident("self"), cls.FieldDefaults[i1]},
		})
	}
	return ast.Blk(stmts...)
}

// LowerClassBodies emits every registered class's method and constructor
// bodies (spec.md §4.G), the class-lowering counterpart of the deferred
// free-function pass driver.Build runs over cg.Funcs.
func LowerClassBodies(cg *Cg) error {
	for _, name := range cg.ClassOrder {
		cls := cg.Classes[name]
		for i1, m := range cls.Methods {
			md := m.Data.(ast.FunctionDeclData)
			fn := &CgFunction{
				Name: md.Name, IR: cls.MethodFuncs[i1], Body: m.Children[0],
				Params: md.Params, RequiredParams: md.RequiredCount(),
				IsMethod: true, ClassName: cls.Name,
			}
			if err := LowerFunctionBody(cg, fn); err != nil {
				return fmt.Errorf("class %s method %s: %w", cls.Name, md.Name, err)
			}
		}
		if cls.Constructor != nil {
			cd := cls.Constructor.Data.(ast.FunctionDeclData)
			fn := &CgFunction{
				Name: "init", IR: cls.ConstructorFunc, Body: cls.Constructor.Children[0],
				Params: cd.Params, RequiredParams: cd.RequiredCount(),
				IsMethod: true, ClassName: cls.Name,
			}
			if err := LowerFunctionBody(cg, fn); err != nil {
				return fmt.Errorf("class %s constructor: %w", cls.Name, err)
			}
		} else if cls.SyntheticCtor {
			fn := &CgFunction{
				Name: "init", IR: cls.ConstructorFunc, Body: syntheticInitBody(cls),
				IsMethod: true, ClassName: cls.Name,
			}
			if err := LowerFunctionBody(cg, fn); err != nil {
				return fmt.Errorf("class %s synthetic constructor: %w", cls.Name, err)
			}
		}
	}
	return nil
}

// allFields returns className's full field list, parent fields first,
// deduplicated, by walking the ParentName chain. Bounded to guard against
// a cyclic chain slipping past earlier validation.
func (cg *Cg) allFields(className string) []string {
	cg.classMx.Lock()
	var chain []*Class
	for name := className; name != "" && len(chain) < 32; {
		cls, ok := cg.Classes[name]
		if !ok {
			break
		}
		chain = append(chain, cls)
		name = cls.ParentName
	}
	cg.classMx.Unlock()

	seen := make(map[string]bool)
	var out []string
	for i1 := len(chain) - 1; i1 >= 0; i1-- {
		for _, f := range chain[i1].FieldNames {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// BuildRuntimeInitClasses synthesizes the runtime_init_classes function
// spec.md §4.G calls for: per class, in declaration order, register its
// runtime definition and install its compiled methods/constructor, then
// resolve inheritance once every class is known. The same
// class_create_instance primitive used at `new`-expression call sites
// (buildConstructorCall) is reused here — the runtime's class registry is
// keyed by name, so this call's effect is to populate that registry
// rather than to build a user-visible instance.
func BuildRuntimeInitClasses(cg *Cg) llvm.Value {
	ft := llvm.FunctionType(cg.VoidTy, nil, false)
	fn := llvm.AddFunction(cg.Module, "runtime_init_classes", ft)
	bb := llvm.AddBasicBlock(fn, "entry")
	cg.Builder.SetInsertPointAtEnd(bb)

	for _, name := range cg.ClassOrder {
		cls := cg.Classes[name]
		fields := cg.allFields(name)
		fieldsArr := cg.buildStringArray(fields)
		methodsArr := cg.buildStringArray(cls.MethodNames)
		parentName := llvm.ConstNull(cg.StrPtrTy)
		if cls.ParentName != "" {
			parentName = cg.InternString(cls.ParentName)
		}
		inst := cg.Builder.CreateCall(cg.RT("class_create_instance"), []llvm.Value{
			cg.InternString(cls.Name), parentName,
			llvm.ConstInt(cg.Int32Ty, uint64(len(fields)), false), fieldsArr,
			llvm.ConstInt(cg.Int32Ty, uint64(len(cls.MethodNames)), false), methodsArr,
		}, "")
		cg.Builder.CreateCall(cg.RT("class_register_definition"), []llvm.Value{inst}, "")

		for i1, mf := range cls.MethodFuncs {
			ptr := cg.Builder.CreateBitCast(mf, cg.ValuePtrTy, "")
			cg.Builder.CreateCall(cg.RT("class_set_compiled_method"), []llvm.Value{
				inst, llvm.ConstInt(cg.Int32Ty, uint64(i1), false), ptr,
			}, "")
		}
		if !cls.ConstructorFunc.IsNil() {
			ptr := cg.Builder.CreateBitCast(cls.ConstructorFunc, cg.ValuePtrTy, "")
			cg.Builder.CreateCall(cg.RT("class_set_compiled_constructor"), []llvm.Value{inst, ptr}, "")
		}
	}
	cg.Builder.CreateCall(cg.RT("class_resolve_inheritance"), nil, "")
	cg.Builder.CreateRetVoid()
	return fn
}
