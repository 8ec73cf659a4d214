// Command hcbc compiles a mnemonic listing plus a --meta file back into an
// HCB scenario container, the write half of the round-trip toolchain
// spec.md §6 describes. Per the resolved Open Question in SPEC_FULL.md
// §9, the "Lua" source this tool consumes is the assembler's own
// mnemonic text form (the --lua flag name matches the original
// rfvp lua2hcb_compiler naming), not the human-readable scripting
// language — that compiler front-end is an explicit non-goal.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hcbscript/hcbvm/asm"
	"github.com/hcbscript/hcbvm/container"
	"github.com/hcbscript/hcbvm/luacfg"
)

func main() {
	metaPath := flag.String("meta", "", "metadata Lua file (required)")
	luaPath := flag.String("lua", "", "assembler mnemonic listing to compile (required)")
	outPath := flag.String("out", "", "output HCB container file (required)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hcbc --meta FILE --lua FILE --out FILE\n\n")
		fmt.Fprintf(os.Stderr, "Assembles a mnemonic listing plus a metadata file into an HCB\nscenario container.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *metaPath == "" || *luaPath == "" || *outPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*metaPath, *luaPath, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "hcbc: %v\n", err)
		os.Exit(1)
	}
}

func run(metaPath, luaPath, outPath string) error {
	meta, err := luacfg.Load(metaPath)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	src, err := os.ReadFile(luaPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", luaPath, err)
	}

	bytecode, labels, err := asm.AssembleWithLabels(string(src))
	if err != nil {
		return fmt.Errorf("assemble %s: %w", luaPath, err)
	}

	entryPoint := uint32(0)
	if meta.EntryLabel != "" {
		addr, ok := labels[meta.EntryLabel]
		if !ok {
			return fmt.Errorf("entry label %q not defined in %s", meta.EntryLabel, luaPath)
		}
		entryPoint = addr
	}

	prog := &container.Program{
		Bytecode:         bytecode,
		EntryPoint:       entryPoint,
		NonVolatileCount: meta.NonVolatileCount,
		VolatileCount:    meta.VolatileCount,
		ScreenWidth:      meta.ScreenWidth,
		ScreenHeight:     meta.ScreenHeight,
		Title:            meta.Title,
		Charset:          meta.Charset,
		Syscalls:         meta.Syscalls,
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()

	if err := prog.Encode(out); err != nil {
		return fmt.Errorf("encode %s: %w", outPath, err)
	}

	return nil
}
