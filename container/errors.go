package container

import "fmt"

// DecodeErrorKind enumerates the ways an HCB container can fail to parse.
// All of these are fatal at load time — spec.md groups them as a single
// "Decode errors" family, distinct from the per-thread runtime errors the
// vm package raises once execution starts.
type DecodeErrorKind uint8

const (
	BadMagic DecodeErrorKind = iota
	TruncatedAt
	InvalidUtf
	InconsistentTable
)

func (k DecodeErrorKind) String() string {
	switch k {
	case BadMagic:
		return "BadMagic"
	case TruncatedAt:
		return "TruncatedAt"
	case InvalidUtf:
		return "InvalidUtf"
	case InconsistentTable:
		return "InconsistentTable"
	default:
		return "Unknown"
	}
}

// DecodeError is returned by Decode for any structurally malformed
// container. Offset and Table/Reason are populated according to Kind.
type DecodeError struct {
	Kind   DecodeErrorKind
	Offset uint32
	Table  string
	Reason string
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case TruncatedAt:
		return fmt.Sprintf("hcb: truncated at offset %d", e.Offset)
	case InvalidUtf:
		return fmt.Sprintf("hcb: invalid text at offset %d", e.Offset)
	case InconsistentTable:
		return fmt.Sprintf("hcb: inconsistent %s table: %s", e.Table, e.Reason)
	default:
		return fmt.Sprintf("hcb: bad container header: %s", e.Reason)
	}
}
