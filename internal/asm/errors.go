package asm

import "fmt"

// Error is a fatal assembly diagnostic: byte offset into the source
// plus a short context window, per spec's "an unknown mnemonic, an
// operand token of the wrong category, or a truncated operand stops
// assembly with a diagnostic pointing at the byte offset and the next
// ten source bytes."
type Error struct {
	Offset  int
	Context string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("assembly error at byte %d: %s (near %q)", e.Offset, e.Message, e.Context)
}

func newError(src string, offset int, format string, args ...any) *Error {
	end := offset + 10
	if end > len(src) {
		end = len(src)
	}
	start := offset
	if start > len(src) {
		start = len(src)
	}
	return &Error{
		Offset:  offset,
		Context: src[start:end],
		Message: fmt.Sprintf(format, args...),
	}
}
