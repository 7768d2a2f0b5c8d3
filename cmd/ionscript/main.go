// Command ionscript is a thin smoke-test binary for the ionscript
// library: it runs a single source file through the lexer, parser,
// compiler, and VM with the standard host-function group wired in. It
// exists to exercise the library end-to-end, not as a deliverable CLI
// surface.
package main

import (
	"fmt"
	"os"

	"github.com/kristofer/ionscript/pkg/compiler"
	"github.com/kristofer/ionscript/pkg/hostfunc"
	"github.com/kristofer/ionscript/pkg/lexer"
	"github.com/kristofer/ionscript/pkg/parser"
	"github.com/kristofer/ionscript/pkg/stdlib"
	"github.com/kristofer/ionscript/pkg/vm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ionscript <file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		os.Exit(1)
	}

	p := parser.New(lexer.New(string(data)))
	program, err := p.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		os.Exit(1)
	}

	reg := hostfunc.NewRegistry()
	stdlib.RegisterSignatures(reg)

	c := compiler.New(reg)
	buf, err := c.Compile(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
		os.Exit(1)
	}

	machine := vm.New(vm.Options{})
	machine.RegisterHostGroup(stdlib.GroupID, stdlib.New(machine))

	if err := machine.Run(buf); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		os.Exit(1)
	}
}
