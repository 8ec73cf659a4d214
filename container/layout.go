// Package container decodes and re-encodes HCB scenario files: a
// little-endian byte container holding a bytecode region followed by a
// system descriptor naming the entry point, global-variable counts,
// screen size, title, and syscall table.
//
// On-disk layout:
//
//	offset 0x00  u32 LE  sys_desc_offset
//	offset 0x04  ...     bytecode bytes (sys_desc_offset - 4 bytes)
//	offset sys_desc_offset  system descriptor:
//	    u32 entry_point_pc
//	    u16 non_volatile_count
//	    u16 volatile_count
//	    u16 screen_width
//	    u16 screen_height
//	    u32 title_offset          (from file start)
//	    u32 title_len             (bytes; encoding per NLS)
//	    u32 syscalls_offset
//	    u32 syscalls_count
//	    u32 syscalls_stride       (usually 16)
//	    per descriptor at syscalls_offset + i*stride:
//	        +0  u32 name_offset (from file start)
//	        +4  u32 argc
//	        +8,+12 — reserved fields; ignored on read, zero on write
//
// The title is title_len bytes in the selected NLS (shift-jis or utf-8);
// syscall names are NUL-terminated and read as raw bytes. All multibyte
// integers are little-endian. Writers place the system
// descriptor at 4+len(bytecode).
package container

const (
	headerSize = 4 // sys_desc_offset field

	sysdescEntryPointOff   = 0
	sysdescNonVolatileOff  = 4
	sysdescVolatileOff     = 6
	sysdescScreenWOff      = 8
	sysdescScreenHOff      = 10
	sysdescTitleOffOff     = 12
	sysdescTitleLenOff     = 16
	sysdescSyscallsOffOff  = 20
	sysdescSyscallsCntOff  = 24
	sysdescSyscallsStrOff  = 28
	sysdescFixedSize       = 32

	syscallDescStride       = 16 // default/expected stride
	syscallDescNameOffOff   = 0
	syscallDescArgcOff      = 4
	syscallDescReservedSize = 8
)

// Charset selects how the container's title/string bytes are interpreted.
// Per the design note, Str values keep whatever bytes the container held
// and are only re-encoded to UTF-8 at host boundaries — Charset governs
// just the title field, which this package itself must render to pick a
// sidecar filename.
type Charset uint8

const (
	CharsetShiftJIS Charset = iota
	CharsetUTF8
)

func (c Charset) String() string {
	if c == CharsetUTF8 {
		return "utf-8"
	}
	return "shift-jis"
}

// ParseCharset maps a CLI/YAML string onto a Charset.
func ParseCharset(s string) (Charset, bool) {
	switch s {
	case "utf-8", "utf8":
		return CharsetUTF8, true
	case "shift-jis", "shift_jis", "sjis":
		return CharsetShiftJIS, true
	default:
		return 0, false
	}
}
