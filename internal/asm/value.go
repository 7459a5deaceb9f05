package asm

import "strconv"

// parseIntLiteral parses a decimal or 0x-prefixed integer token as a
// raw 64-bit bit pattern, matching the teacher's inputArgToUint32 but
// widened to 64 bits since operands here range up to CONSTI64/F64.
func parseIntLiteral(tok string) (uint64, bool) {
	v, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		uv, uerr := strconv.ParseUint(tok, 0, 64)
		if uerr != nil {
			return 0, false
		}
		return uv, true
	}
	return uint64(v), true
}

func parseFloatLiteral(tok string) (float64, bool) {
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
