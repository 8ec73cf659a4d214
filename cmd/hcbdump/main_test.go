package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/hcbscript/hcbvm/container"
)

func TestSidecarPathFor(t *testing.T) {
	cases := []struct {
		out, title, want string
	}{
		{"out/listing.asm", "My Game", "out/My_Game.yaml"},
		{"listing.asm", "", "output.yaml"},
		{"listing.asm", "???", "output.yaml"},
		{"dir/x.asm", "Ok-Name.1", "dir/Ok-Name.1.yaml"},
	}
	for _, c := range cases {
		got := sidecarPathFor(c.out, c.title)
		if got != c.want {
			t.Errorf("sidecarPathFor(%q, %q) = %q, want %q", c.out, c.title, got, c.want)
		}
	}
}

func TestRunWritesListingAndSidecar(t *testing.T) {
	dir := t.TempDir()

	prog := &container.Program{
		Bytecode:         []byte{0x03, 0x02}, // push.nil; retv
		EntryPoint:       0,
		NonVolatileCount: 2,
		VolatileCount:    1,
		ScreenWidth:      320,
		ScreenHeight:     240,
		Title:            "Demo",
		Charset:          container.CharsetShiftJIS,
		Syscalls:         []container.SyscallDesc{{Name: "wait", Argc: 1}},
	}
	inputPath := filepath.Join(dir, "in.hcb")
	f, err := os.Create(inputPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := prog.Encode(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	outputPath := filepath.Join(dir, "out.asm")
	if err := run(inputPath, outputPath, "shift-jis"); err != nil {
		t.Fatalf("run: %v", err)
	}

	listing, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read listing: %v", err)
	}
	if !bytes.Contains(listing, []byte("push.nil")) || !bytes.Contains(listing, []byte("retv")) {
		t.Errorf("listing missing expected mnemonics:\n%s", listing)
	}

	sidecar, err := os.ReadFile(filepath.Join(dir, "Demo.yaml"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var meta sidecarMeta
	if err := yaml.Unmarshal(sidecar, &meta); err != nil {
		t.Fatalf("unmarshal sidecar: %v", err)
	}
	if meta.Title != "Demo" || meta.Globals.NonVolatile != 2 || meta.Globals.Volatile != 1 {
		t.Errorf("sidecar meta = %+v", meta)
	}
	if len(meta.Syscalls) != 1 || meta.Syscalls[0].Name != "wait" {
		t.Errorf("sidecar syscalls = %+v", meta.Syscalls)
	}
}

func TestRunRejectsUnknownLang(t *testing.T) {
	dir := t.TempDir()
	if err := run(filepath.Join(dir, "missing.hcb"), filepath.Join(dir, "out.asm"), "latin1"); err == nil {
		t.Fatal("expected error for unknown --lang")
	}
}
