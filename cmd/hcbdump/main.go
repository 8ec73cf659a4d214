// Command hcbdump decompiles an HCB scenario container into a mnemonic
// listing plus a YAML metadata sidecar, the read half of the round-trip
// toolchain spec.md §6 describes. Its flag handling follows
// cmd/ie32to64/main.go in the teacher repo: stdlib flag, a custom Usage,
// one-line errors to stderr, non-zero exit on any failure.
package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/hcbscript/hcbvm/asm"
	"github.com/hcbscript/hcbvm/container"
)

func main() {
	input := flag.String("input", "", "input HCB container file (required)")
	output := flag.String("output", "", "output disassembly listing file (required)")
	lang := flag.String("lang", "shift-jis", "text encoding of the container: shift-jis or utf-8")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hcbdump --input FILE --output FILE [--lang shift-jis|utf-8]\n\n")
		fmt.Fprintf(os.Stderr, "Decompiles an HCB scenario container into a mnemonic listing and a\n<title>.yaml metadata sidecar written alongside --output.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *input == "" || *output == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*input, *output, *lang); err != nil {
		fmt.Fprintf(os.Stderr, "hcbdump: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath, lang string) error {
	charset, ok := container.ParseCharset(lang)
	if !ok {
		return fmt.Errorf("unknown --lang %q (want shift-jis or utf-8)", lang)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer f.Close()

	prog, err := container.Decode(f, charset)
	if err != nil {
		return fmt.Errorf("decode %s: %w", inputPath, err)
	}

	listing, err := asm.Disassemble(prog.Bytecode)
	if err != nil {
		return fmt.Errorf("disassemble %s: %w", inputPath, err)
	}

	if err := os.WriteFile(outputPath, []byte(listing), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	sidecarPath := sidecarPathFor(outputPath, prog.Title)
	if err := writeSidecar(sidecarPath, prog); err != nil {
		return fmt.Errorf("write %s: %w", sidecarPath, err)
	}

	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// sidecarPathFor names the metadata sidecar <title>.yaml next to
// outputPath, or output.yaml if the title is empty or contains nothing
// usable as a filename.
func sidecarPathFor(outputPath, title string) string {
	dir := ""
	if idx := lastSlash(outputPath); idx >= 0 {
		dir = outputPath[:idx+1]
	}
	name := unsafeFilenameChars.ReplaceAllString(title, "_")
	for len(name) > 0 && name[0] == '_' {
		name = name[1:]
	}
	for len(name) > 0 && name[len(name)-1] == '_' {
		name = name[:len(name)-1]
	}
	if name == "" {
		return dir + "output.yaml"
	}
	return dir + name + ".yaml"
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// sidecarMeta is the YAML shape written alongside the disassembly
// listing: enough of container.Program's metadata that hcbc's --meta
// format can be hand-derived from it for a round trip.
type sidecarMeta struct {
	Title      string         `yaml:"title"`
	Charset    string         `yaml:"charset"`
	EntryPoint uint32         `yaml:"entry_point"`
	Screen     sidecarScreen  `yaml:"screen"`
	Globals    sidecarGlobals `yaml:"globals"`
	Syscalls   []sidecarSys   `yaml:"syscalls"`
}

type sidecarScreen struct {
	Width  uint16 `yaml:"w"`
	Height uint16 `yaml:"h"`
}

type sidecarGlobals struct {
	NonVolatile uint16 `yaml:"non_volatile"`
	Volatile    uint16 `yaml:"volatile"`
}

type sidecarSys struct {
	Name string `yaml:"name"`
	Argc uint32 `yaml:"argc"`
}

func writeSidecar(path string, prog *container.Program) error {
	meta := sidecarMeta{
		Title:      prog.Title,
		Charset:    prog.Charset.String(),
		EntryPoint: prog.EntryPoint,
		Screen:     sidecarScreen{Width: prog.ScreenWidth, Height: prog.ScreenHeight},
		Globals:    sidecarGlobals{NonVolatile: prog.NonVolatileCount, Volatile: prog.VolatileCount},
	}
	for _, sc := range prog.Syscalls {
		meta.Syscalls = append(meta.Syscalls, sidecarSys{Name: sc.Name, Argc: sc.Argc})
	}

	out, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
