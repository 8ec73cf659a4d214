package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"

	"github.com/hcbscript/hcbvm/isa"
)

// SyscallDesc names one host syscall a Program may reference by 16-bit id:
// its index in Syscalls is that id. Argc is fixed per descriptor; the
// interpreter pops exactly that many operands before dispatching.
type SyscallDesc struct {
	Name string
	Argc uint32
}

// Program is the decoded, immutable form of an HCB container: the
// bytecode region plus the system descriptor's metadata. Once loaded it
// is shared read-only across every thread the scheduler runs.
type Program struct {
	Bytecode   []byte
	EntryPoint uint32

	NonVolatileCount uint16
	VolatileCount    uint16

	ScreenWidth  uint16
	ScreenHeight uint16

	Title   string
	Charset Charset

	Syscalls []SyscallDesc
}

// SyscallArgc resolves the argc of the syscall at id, reporting ok=false
// if id isn't a valid index — the "every syscall id appearing in bytecode
// indexes an existing descriptor" invariant is the caller's to enforce at
// dispatch time, not this accessor's.
func (p *Program) SyscallArgc(id uint16) (int, bool) {
	if int(id) >= len(p.Syscalls) {
		return 0, false
	}
	return int(p.Syscalls[id].Argc), true
}

func truncated(at uint32) error { return &DecodeError{Kind: TruncatedAt, Offset: at} }

func readU32(data []byte, off uint32) (uint32, error) {
	if uint64(off)+4 > uint64(len(data)) {
		return 0, truncated(off)
	}
	return binary.LittleEndian.Uint32(data[off:]), nil
}

func readU16(data []byte, off uint32) (uint16, error) {
	if uint64(off)+2 > uint64(len(data)) {
		return 0, truncated(off)
	}
	return binary.LittleEndian.Uint16(data[off:]), nil
}

// readCString reads a NUL-terminated byte string starting at off. A
// syscall descriptor carries only its name's offset, with no length, so
// the name runs up to the next NUL byte.
func readCString(data []byte, off uint32) (string, error) {
	if uint64(off) > uint64(len(data)) {
		return "", truncated(off)
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return "", truncated(off)
	}
	return string(data[off : off+uint32(end)]), nil
}

// decodeText renders raw bytes held in the given Charset as a Go string.
// Shift-JIS is decoded via golang.org/x/text so the Title we hand back
// (used only to name sidecar files, per the design note) is never garbled
// even though every other Str value keeps its container-native bytes
// until a host boundary is crossed.
func decodeText(raw []byte, cs Charset, at uint32) (string, error) {
	if cs == CharsetUTF8 {
		if !utf8.Valid(raw) {
			return "", &DecodeError{Kind: InvalidUtf, Offset: at}
		}
		return string(raw), nil
	}
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
	if err != nil {
		return "", &DecodeError{Kind: InvalidUtf, Offset: at, Reason: err.Error()}
	}
	return string(out), nil
}

// Decode parses an HCB container read from r, interpreting the title bytes
// in the given charset; syscall names are kept as their raw bytes. The
// bytecode region is decoded once from offset 0, instruction by
// instruction, and an unknown opcode or truncated instruction fails the
// load with the isa package's error. It never mutates the input and never
// re-reads beyond what the header declares.
func Decode(r io.Reader, charset Charset) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("hcb: read: %w", err)
	}
	if len(data) < headerSize {
		return nil, truncated(0)
	}
	sysDescOff := binary.LittleEndian.Uint32(data[0:4])
	if uint64(sysDescOff) < headerSize || uint64(sysDescOff) > uint64(len(data)) {
		return nil, &DecodeError{Kind: InconsistentTable, Table: "header", Reason: "sys_desc_offset out of range"}
	}
	bytecode := make([]byte, sysDescOff-headerSize)
	copy(bytecode, data[headerSize:sysDescOff])
	for at := uint32(0); int(at) < len(bytecode); {
		inst, err := isa.Decode(bytecode, at)
		if err != nil {
			return nil, err
		}
		at += inst.Len
	}

	if uint64(sysDescOff)+sysdescFixedSize > uint64(len(data)) {
		return nil, truncated(sysDescOff)
	}

	entryPoint, err := readU32(data, sysDescOff+sysdescEntryPointOff)
	if err != nil {
		return nil, err
	}
	nonVolatile, err := readU16(data, sysDescOff+sysdescNonVolatileOff)
	if err != nil {
		return nil, err
	}
	volatile, err := readU16(data, sysDescOff+sysdescVolatileOff)
	if err != nil {
		return nil, err
	}
	screenW, err := readU16(data, sysDescOff+sysdescScreenWOff)
	if err != nil {
		return nil, err
	}
	screenH, err := readU16(data, sysDescOff+sysdescScreenHOff)
	if err != nil {
		return nil, err
	}
	titleOff, err := readU32(data, sysDescOff+sysdescTitleOffOff)
	if err != nil {
		return nil, err
	}
	titleLen, err := readU32(data, sysDescOff+sysdescTitleLenOff)
	if err != nil {
		return nil, err
	}
	syscallsOff, err := readU32(data, sysDescOff+sysdescSyscallsOffOff)
	if err != nil {
		return nil, err
	}
	syscallsCnt, err := readU32(data, sysDescOff+sysdescSyscallsCntOff)
	if err != nil {
		return nil, err
	}
	syscallsStride, err := readU32(data, sysDescOff+sysdescSyscallsStrOff)
	if err != nil {
		return nil, err
	}
	if syscallsStride < syscallDescArgcOff+4 {
		return nil, &DecodeError{Kind: InconsistentTable, Table: "syscalls", Reason: "stride too small"}
	}

	if uint64(titleOff)+uint64(titleLen) > uint64(len(data)) {
		return nil, truncated(titleOff)
	}
	title, err := decodeText(data[titleOff:titleOff+titleLen], charset, titleOff)
	if err != nil {
		return nil, err
	}

	syscalls := make([]SyscallDesc, syscallsCnt)
	for i := uint32(0); i < syscallsCnt; i++ {
		base := syscallsOff + i*syscallsStride
		if uint64(base)+uint64(syscallDescArgcOff)+4 > uint64(len(data)) {
			return nil, &DecodeError{Kind: InconsistentTable, Table: "syscalls", Reason: fmt.Sprintf("descriptor %d truncated", i)}
		}
		nameOff, err := readU32(data, base+syscallDescNameOffOff)
		if err != nil {
			return nil, err
		}
		argc, err := readU32(data, base+syscallDescArgcOff)
		if err != nil {
			return nil, err
		}
		name, err := readCString(data, nameOff)
		if err != nil {
			return nil, &DecodeError{Kind: InconsistentTable, Table: "syscalls", Reason: fmt.Sprintf("descriptor %d: %v", i, err)}
		}
		syscalls[i] = SyscallDesc{Name: name, Argc: argc}
	}

	return &Program{
		Bytecode:         bytecode,
		EntryPoint:       entryPoint,
		NonVolatileCount: nonVolatile,
		VolatileCount:    volatile,
		ScreenWidth:      screenW,
		ScreenHeight:     screenH,
		Title:            title,
		Charset:          charset,
		Syscalls:         syscalls,
	}, nil
}

// Encode re-serialises p, placing the system descriptor at
// 4+len(Bytecode) as the format requires. It is a left-inverse of Decode
// for any Program this package produced: Decode(Encode(p)) yields a
// Program structurally equal to p.
func (p *Program) Encode(w io.Writer) error {
	var titleBytes []byte
	switch p.Charset {
	case CharsetUTF8:
		titleBytes = []byte(p.Title)
	default:
		enc, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(p.Title))
		if err != nil {
			return fmt.Errorf("hcb: encode title: %w", err)
		}
		titleBytes = enc
	}

	sysDescOff := uint32(headerSize + len(p.Bytecode))
	syscallsOff := sysDescOff + sysdescFixedSize
	stride := uint32(syscallDescStride)
	syscallsTableSize := uint32(len(p.Syscalls)) * stride
	stringsOff := syscallsOff + syscallsTableSize

	titleOff := stringsOff
	nameOffsets := make([]uint32, len(p.Syscalls))
	cursor := titleOff + uint32(len(titleBytes))
	var names bytes.Buffer
	for i, sc := range p.Syscalls {
		nameOffsets[i] = cursor
		names.WriteString(sc.Name)
		names.WriteByte(0)
		cursor += uint32(len(sc.Name)) + 1
	}

	buf := make([]byte, 0, cursor)
	buf = binary.LittleEndian.AppendUint32(buf, sysDescOff)
	buf = append(buf, p.Bytecode...)

	buf = binary.LittleEndian.AppendUint32(buf, p.EntryPoint)
	buf = binary.LittleEndian.AppendUint16(buf, p.NonVolatileCount)
	buf = binary.LittleEndian.AppendUint16(buf, p.VolatileCount)
	buf = binary.LittleEndian.AppendUint16(buf, p.ScreenWidth)
	buf = binary.LittleEndian.AppendUint16(buf, p.ScreenHeight)
	buf = binary.LittleEndian.AppendUint32(buf, titleOff)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(titleBytes)))
	buf = binary.LittleEndian.AppendUint32(buf, syscallsOff)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Syscalls)))
	buf = binary.LittleEndian.AppendUint32(buf, stride)

	for i, sc := range p.Syscalls {
		buf = binary.LittleEndian.AppendUint32(buf, nameOffsets[i])
		buf = binary.LittleEndian.AppendUint32(buf, sc.Argc)
		buf = append(buf, make([]byte, syscallDescReservedSize)...)
	}

	buf = append(buf, titleBytes...)
	buf = append(buf, names.Bytes()...)

	_, err := w.Write(buf)
	return err
}
