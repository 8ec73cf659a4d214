// Package luacfg reads the compiler CLI's --meta file: a small Lua script
// (not the scenario scripting language itself, which is an explicit
// non-goal) that declares a program's title, screen size, global-variable
// counts, and syscall table. It is evaluated with a sandboxed
// *lua.LState from github.com/yuin/gopher-lua, the scripting library the
// teacher already lists in its go.mod, and only ever reads global table
// values back out — it never exposes Go callbacks into the script, so
// the metadata file cannot reach outside its own table literals.
package luacfg

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/hcbscript/hcbvm/container"
)

// Meta is the parsed contents of a --meta file, ready to be combined with
// an assembled bytecode region into a container.Program.
type Meta struct {
	Title            string
	Charset          container.Charset
	ScreenWidth      uint16
	ScreenHeight     uint16
	NonVolatileCount uint16
	VolatileCount    uint16
	Syscalls         []container.SyscallDesc
	// EntryLabel names the assembler label the compiler should resolve
	// as the program's entry point. Empty means "byte offset 0", the
	// assembler's implicit first instruction.
	EntryLabel string
}

// Load evaluates the Lua source at path and extracts the fields hcbc
// needs. The expected shape is:
//
//	title = "My Scenario"
//	charset = "shift-jis"        -- or "utf-8"; defaults to shift-jis
//	entry = "main"               -- label in the .lua-listing source; defaults to offset 0
//	screen = { w = 640, h = 480 }
//	globals = { non_volatile = 64, volatile = 16 }
//	syscalls = {
//	    { name = "wait", argc = 1 },
//	    { name = "say",  argc = 2 },
//	}
func Load(path string) (*Meta, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	// Only the base, table and string libraries are opened; no
	// io/os/package libraries are opened, so the metadata file cannot
	// touch the filesystem or the environment.
	for _, pair := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(pair.fn), NRet: 0, Protect: true}, lua.LString(pair.name)); err != nil {
			return nil, fmt.Errorf("luacfg: open %s: %w", pair.name, err)
		}
	}

	if err := L.DoFile(path); err != nil {
		return nil, fmt.Errorf("luacfg: %w", err)
	}

	m := &Meta{Charset: container.CharsetShiftJIS}

	if title := L.GetGlobal("title"); title.Type() == lua.LTString {
		m.Title = title.String()
	}
	if entry := L.GetGlobal("entry"); entry.Type() == lua.LTString {
		m.EntryLabel = entry.String()
	}
	if cs := L.GetGlobal("charset"); cs.Type() == lua.LTString {
		parsed, ok := container.ParseCharset(cs.String())
		if !ok {
			return nil, fmt.Errorf("luacfg: unknown charset %q", cs.String())
		}
		m.Charset = parsed
	}

	if screen, ok := L.GetGlobal("screen").(*lua.LTable); ok {
		m.ScreenWidth = uint16(lua.LVAsNumber(screen.RawGetString("w")))
		m.ScreenHeight = uint16(lua.LVAsNumber(screen.RawGetString("h")))
	}

	if globals, ok := L.GetGlobal("globals").(*lua.LTable); ok {
		m.NonVolatileCount = uint16(lua.LVAsNumber(globals.RawGetString("non_volatile")))
		m.VolatileCount = uint16(lua.LVAsNumber(globals.RawGetString("volatile")))
	}

	syscalls, ok := L.GetGlobal("syscalls").(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("luacfg: %s: missing syscalls table", path)
	}
	var err error
	syscalls.ForEach(func(_ lua.LValue, v lua.LValue) {
		if err != nil {
			return
		}
		entry, ok := v.(*lua.LTable)
		if !ok {
			err = fmt.Errorf("luacfg: syscalls entries must be tables")
			return
		}
		name, ok := entry.RawGetString("name").(lua.LString)
		if !ok {
			err = fmt.Errorf("luacfg: syscalls entry missing string name")
			return
		}
		argc := lua.LVAsNumber(entry.RawGetString("argc"))
		m.Syscalls = append(m.Syscalls, container.SyscallDesc{Name: string(name), Argc: uint32(argc)})
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}
