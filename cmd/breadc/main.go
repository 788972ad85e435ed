// Command breadc is the BreadLang compiler's entry point: parse CLI
// options, obtain an analyzed syntax tree, and hand it to driver.Build.
//
// Ground: vslc's src/main.go run()/main() split (parse args, read source,
// run compiler stages, report errors with an exit code). Lexing/parsing
// source text into an ast.Node tree is an external collaborator outside
// this repository's scope (spec.md §1); loadSyntaxTree is the seam a
// parser package plugs into.
package main

import (
	"errors"
	"fmt"
	"os"

	"breadc/internal/ast"
	"breadc/internal/driver"
	"breadc/internal/util"
)

// loadSyntaxTree is overridden by a parser collaborator at link time or
// via a build that vendors one in; the compiler core itself ships no
// lexer/parser (spec.md §1's Non-goals).
var loadSyntaxTree = func(path string) (*ast.Node, error) {
	return nil, errors.New("no parser collaborator wired into this build")
}

func run(opt util.Options) error {
	if opt.Src == "" {
		return errors.New("no source file given")
	}
	root, err := loadSyntaxTree(opt.Src)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}
	return driver.Build(opt, root)
}

func main() {
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "command line argument error: %s\n", err)
		os.Exit(1)
	}

	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		switch {
		case driver.IsErrorKind(err, driver.VerificationError),
			driver.IsErrorKind(err, driver.CodegenInternalError):
			os.Exit(2)
		default:
			os.Exit(1)
		}
	}
}
