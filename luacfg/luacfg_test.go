package luacfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hcbscript/hcbvm/container"
)

func writeMeta(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	return path
}

func TestLoadParsesAllFields(t *testing.T) {
	path := writeMeta(t, `
title = "Demo Scenario"
charset = "utf-8"
screen = { w = 640, h = 480 }
globals = { non_volatile = 4, volatile = 2 }
syscalls = {
    { name = "wait", argc = 1 },
    { name = "say",  argc = 2 },
}
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Title != "Demo Scenario" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.Charset != container.CharsetUTF8 {
		t.Errorf("Charset = %v, want utf-8", m.Charset)
	}
	if m.ScreenWidth != 640 || m.ScreenHeight != 480 {
		t.Errorf("screen = %dx%d", m.ScreenWidth, m.ScreenHeight)
	}
	if m.NonVolatileCount != 4 || m.VolatileCount != 2 {
		t.Errorf("globals = %d/%d", m.NonVolatileCount, m.VolatileCount)
	}
	if len(m.Syscalls) != 2 || m.Syscalls[0].Name != "wait" || m.Syscalls[0].Argc != 1 {
		t.Errorf("syscalls = %+v", m.Syscalls)
	}
	if m.Syscalls[1].Name != "say" || m.Syscalls[1].Argc != 2 {
		t.Errorf("syscalls[1] = %+v", m.Syscalls[1])
	}
}

func TestLoadDefaultsCharsetToShiftJIS(t *testing.T) {
	path := writeMeta(t, `
title = "T"
syscalls = {}
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Charset != container.CharsetShiftJIS {
		t.Errorf("Charset = %v, want shift-jis default", m.Charset)
	}
}

func TestLoadMissingSyscallsErrors(t *testing.T) {
	path := writeMeta(t, `title = "T"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing syscalls table")
	}
}

func TestLoadRejectsUnknownCharset(t *testing.T) {
	path := writeMeta(t, `
title = "T"
charset = "latin1"
syscalls = {}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown charset")
	}
}
