package ifc

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// DecodeString expands STEP string escapes: \X2\...\X0\ (UTF-16 hex),
// \X4\...\X0\ (UTF-32 hex), \X\hh (ISO 8859-1), \S\c (high half) and \\.
func DecodeString(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], `\X2\`):
			end := strings.Index(s[i+4:], `\X0\`)
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(decodeHexUnits(s[i+4:i+4+end], 4))
			i += 4 + end + 4
		case strings.HasPrefix(s[i:], `\X4\`):
			end := strings.Index(s[i+4:], `\X0\`)
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			b.WriteString(decodeHexUnits(s[i+4:i+4+end], 8))
			i += 4 + end + 4
		case strings.HasPrefix(s[i:], `\X\`) && i+5 <= len(s):
			if v, err := strconv.ParseUint(s[i+3:i+5], 16, 8); err == nil {
				b.WriteRune(rune(v))
				i += 5
				continue
			}
			b.WriteByte(s[i])
			i++
		case strings.HasPrefix(s[i:], `\S\`) && i+4 <= len(s):
			b.WriteRune(rune(s[i+3]) + 128)
			i += 4
		case strings.HasPrefix(s[i:], `\\`):
			b.WriteByte('\\')
			i += 2
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

func decodeHexUnits(hex string, width int) string {
	if width == 8 {
		var b strings.Builder
		for j := 0; j+8 <= len(hex); j += 8 {
			if v, err := strconv.ParseUint(hex[j:j+8], 16, 32); err == nil {
				b.WriteRune(rune(v))
			}
		}
		return b.String()
	}
	units := make([]uint16, 0, len(hex)/4)
	for j := 0; j+4 <= len(hex); j += 4 {
		if v, err := strconv.ParseUint(hex[j:j+4], 16, 16); err == nil {
			units = append(units, uint16(v))
		}
	}
	return string(utf16.Decode(units))
}
