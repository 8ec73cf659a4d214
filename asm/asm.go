// Package asm implements the scenario bytecode's disassembler and
// assembler. The two are required to be exact inverses over the
// supported opcode set: Assemble(Disassemble(code)) must reproduce code
// byte-for-byte, and every instruction isa.Decode accepts must round-trip
// through Disassemble unchanged.
//
// Absolute jump/call targets are always rendered as symbolic labels
// (L%08X) on disassembly, the same way the teacher's two-pass assembler
// resolves global/local labels before emitting bytes (see
// IE64Assembler.Assemble in the reference assembler). The text format
// also accepts a bare numeric target in place of a label, per the design
// note resolving the JmpAbs/JmpLabel open question: only absolute forms
// exist on the wire, but hand-written source may use either.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hcbscript/hcbvm/isa"
)

// ErrUnresolvedLabel is returned by Assemble when a jump/call operand
// names a label that was never defined.
var ErrUnresolvedLabel = errors.New("asm: unresolved label")

// ParseError reports a failure to assemble one line of source text.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("asm: line %d: %v (%q)", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

func labelName(addr uint32) string { return fmt.Sprintf("L%08X", addr) }

// Disassemble renders code as one mnemonic line per instruction, with a
// label definition line emitted immediately before any instruction that a
// Call/Jmp/Jz elsewhere in code targets.
func Disassemble(code []byte) (string, error) {
	type decoded struct {
		inst isa.Instruction
	}
	var insts []decoded
	targets := make(map[uint32]bool)

	for at := uint32(0); int(at) < len(code); {
		inst, err := isa.Decode(code, at)
		if err != nil {
			return "", err
		}
		insts = append(insts, decoded{inst})
		if inst.Op == isa.Call || inst.Op == isa.Jmp || inst.Op == isa.Jz {
			targets[inst.Target] = true
		}
		at += inst.Len
	}

	var b strings.Builder
	for _, d := range insts {
		if targets[d.inst.At] {
			fmt.Fprintf(&b, "%s:\n", labelName(d.inst.At))
		}
		fmt.Fprintln(&b, formatInstruction(d.inst))
	}
	return b.String(), nil
}

func formatInstruction(inst isa.Instruction) string {
	mnemonic := inst.Op.String()
	switch inst.Op {
	case isa.InitStack:
		return fmt.Sprintf("\t%s %d, %d", mnemonic, inst.Argc, inst.Localc)
	case isa.Call, isa.Jmp, isa.Jz:
		return fmt.Sprintf("\t%s %s", mnemonic, labelName(inst.Target))
	case isa.Syscall:
		return fmt.Sprintf("\t%s %d", mnemonic, inst.U16)
	case isa.PushI8:
		return fmt.Sprintf("\t%s %d", mnemonic, inst.I8)
	case isa.PushI16:
		return fmt.Sprintf("\t%s %d", mnemonic, inst.I16)
	case isa.PushI32:
		return fmt.Sprintf("\t%s %d", mnemonic, inst.I32)
	case isa.PushF32:
		return fmt.Sprintf("\t%s %s", mnemonic, strconv.FormatFloat(float64(inst.F32), 'g', -1, 32))
	case isa.PushString:
		return fmt.Sprintf("\t%s %s", mnemonic, strconv.Quote(inst.Str))
	case isa.PushGlobal, isa.PopGlobal, isa.PushGlobalTable, isa.PopGlobalTable:
		return fmt.Sprintf("\t%s %d", mnemonic, inst.U16)
	case isa.PushStack, isa.PopStack, isa.PushLocalTable, isa.PopLocalTable:
		return fmt.Sprintf("\t%s %d", mnemonic, inst.Idx)
	default:
		return "\t" + mnemonic
	}
}

type sourceLine struct {
	lineNo   int
	text     string
	label    string // non-empty if this line is a label definition
	mnemonic string
	operands []string
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && (i == 0 || s[i-1] != '\\'):
			inStr = !inStr
		case inStr:
			continue
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

func parseLines(source string) ([]sourceLine, error) {
	var lines []sourceLine
	for i, raw := range strings.Split(source, "\n") {
		// ';' starts a comment only outside a quoted push.str operand.
		text := raw
		inStr := false
	scan:
		for j := 0; j < len(text); j++ {
			switch c := text[j]; {
			case inStr && c == '\\':
				j++
			case c == '"':
				inStr = !inStr
			case c == ';' && !inStr:
				text = text[:j]
				break scan
			}
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.HasSuffix(text, ":") && !strings.ContainsAny(text, " \t") {
			lines = append(lines, sourceLine{lineNo: i + 1, text: raw, label: strings.TrimSuffix(text, ":")})
			continue
		}
		mnemonic := text
		var operandText string
		if idx := strings.IndexAny(text, " \t"); idx >= 0 {
			mnemonic = text[:idx]
			operandText = text[idx+1:]
		}
		mnemonic = strings.ToLower(mnemonic)
		lines = append(lines, sourceLine{
			lineNo:   i + 1,
			text:     raw,
			mnemonic: mnemonic,
			operands: splitOperands(operandText),
		})
	}
	return lines, nil
}

// instructionLen returns the encoded byte length an instruction for
// mnemonic/operands will occupy, without needing label addresses
// resolved yet — every opcode's length is fixed by its family except
// push.str, whose length depends on the (already-known) string content.
func instructionLen(mnemonic string, operands []string) (uint32, error) {
	op, ok := isa.Lookup(mnemonic)
	if !ok {
		return 0, fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	switch op {
	case isa.PushString:
		if len(operands) != 1 {
			return 0, fmt.Errorf("push.str expects one operand")
		}
		s, err := strconv.Unquote(operands[0])
		if err != nil {
			return 0, fmt.Errorf("push.str operand: %w", err)
		}
		return uint32(1 + 2 + len(s)), nil
	case isa.InitStack:
		return 3, nil
	case isa.Call, isa.Jmp, isa.Jz:
		return 5, nil
	case isa.Syscall, isa.PushI16,
		isa.PushGlobal, isa.PopGlobal, isa.PushGlobalTable, isa.PopGlobalTable:
		return 3, nil
	case isa.PushI32, isa.PushF32:
		return 5, nil
	case isa.PushI8, isa.PushStack, isa.PopStack, isa.PushLocalTable, isa.PopLocalTable:
		return 2, nil
	default:
		return 1, nil
	}
}

func resolveTarget(operand string, labels map[string]uint32) (uint32, error) {
	if addr, ok := labels[operand]; ok {
		return addr, nil
	}
	v, err := strconv.ParseInt(operand, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnresolvedLabel, operand)
	}
	return uint32(v), nil
}

// Assemble is the exact inverse of Disassemble: it parses the mnemonic
// text format (including label definitions and label or numeric jump
// targets) and emits the corresponding bytecode.
func Assemble(source string) ([]byte, error) {
	code, _, err := AssembleWithLabels(source)
	return code, err
}

// AssembleWithLabels is Assemble plus the resolved label->address table,
// for callers (the compiler CLI) that need to name an entry point by
// label rather than by raw offset.
func AssembleWithLabels(source string) ([]byte, map[string]uint32, error) {
	lines, err := parseLines(source)
	if err != nil {
		return nil, nil, err
	}

	labels := make(map[string]uint32)
	addr := uint32(0)
	for _, ln := range lines {
		if ln.label != "" {
			labels[ln.label] = addr
			continue
		}
		n, err := instructionLen(ln.mnemonic, ln.operands)
		if err != nil {
			return nil, nil, &ParseError{Line: ln.lineNo, Text: ln.text, Err: err}
		}
		addr += n
	}

	var out []byte
	for _, ln := range lines {
		if ln.label != "" {
			continue
		}
		b, err := assembleLine(ln, labels)
		if err != nil {
			return nil, nil, &ParseError{Line: ln.lineNo, Text: ln.text, Err: err}
		}
		out = append(out, b...)
	}
	return out, labels, nil
}

func assembleLine(ln sourceLine, labels map[string]uint32) ([]byte, error) {
	op, ok := isa.Lookup(ln.mnemonic)
	if !ok {
		return nil, fmt.Errorf("unknown mnemonic %q", ln.mnemonic)
	}
	inst := isa.Instruction{Op: op}

	need := func(n int) error {
		if len(ln.operands) != n {
			return fmt.Errorf("%s expects %d operand(s), got %d", ln.mnemonic, n, len(ln.operands))
		}
		return nil
	}

	switch op {
	case isa.InitStack:
		if err := need(2); err != nil {
			return nil, err
		}
		a, err := strconv.ParseInt(ln.operands[0], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("argc: %w", err)
		}
		l, err := strconv.ParseInt(ln.operands[1], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("localc: %w", err)
		}
		inst.Argc, inst.Localc = int8(a), int8(l)

	case isa.Call, isa.Jmp, isa.Jz:
		if err := need(1); err != nil {
			return nil, err
		}
		target, err := resolveTarget(ln.operands[0], labels)
		if err != nil {
			return nil, err
		}
		inst.Target = target

	case isa.Syscall:
		if err := need(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(ln.operands[0], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("syscall id: %w", err)
		}
		inst.U16 = uint16(v)

	case isa.PushI8:
		if err := need(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(ln.operands[0], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("push.i8 operand: %w", err)
		}
		inst.I8 = int8(v)

	case isa.PushI16:
		if err := need(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(ln.operands[0], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("push.i16 operand: %w", err)
		}
		inst.I16 = int16(v)

	case isa.PushI32:
		if err := need(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(ln.operands[0], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("push.i32 operand: %w", err)
		}
		inst.I32 = int32(v)

	case isa.PushF32:
		if err := need(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(ln.operands[0], 32)
		if err != nil {
			return nil, fmt.Errorf("push.f32 operand: %w", err)
		}
		inst.F32 = float32(v)

	case isa.PushString:
		if err := need(1); err != nil {
			return nil, err
		}
		s, err := strconv.Unquote(ln.operands[0])
		if err != nil {
			return nil, fmt.Errorf("push.str operand: %w", err)
		}
		inst.Str = s

	case isa.PushGlobal, isa.PopGlobal, isa.PushGlobalTable, isa.PopGlobalTable:
		if err := need(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(ln.operands[0], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("global index: %w", err)
		}
		inst.U16 = uint16(v)

	case isa.PushStack, isa.PopStack, isa.PushLocalTable, isa.PopLocalTable:
		if err := need(1); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(ln.operands[0], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("local index: %w", err)
		}
		inst.Idx = int8(v)

	default:
		if err := need(0); err != nil {
			return nil, err
		}
	}

	return inst.Encode(), nil
}
