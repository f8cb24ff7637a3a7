package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// byteToRune maps every raw byte to the printable codepoint that stands for
// it inside vocabulary and merge files. Printable Latin-1 bytes map to
// themselves; the other 68 bytes are assigned U+0100 onwards in byte order.
var byteToRune = func() (t [256]rune) {
	next := rune(0x100)
	for b := range t {
		switch {
		case '!' <= b && b <= '~', '¡' <= b && b <= '¬', '®' <= b && b <= 'ÿ':
			t[b] = rune(b)
		default:
			t[b] = next
			next++
		}
	}
	return t
}()

const maxSymbolRune = 0x143

// runeToByte is the inverse of byteToRune; -1 marks codepoints that are not
// symbols.
var runeToByte = func() (t [maxSymbolRune + 1]int16) {
	for i := range t {
		t[i] = -1
	}
	for b, r := range byteToRune {
		t[r] = int16(b)
	}
	return t
}()

func ByteToRune(b byte) rune {
	return byteToRune[b]
}

func RuneToByte(r rune) (byte, bool) {
	if r < 0 || r > maxSymbolRune || runeToByte[r] < 0 {
		return 0, false
	}
	return byte(runeToByte[r]), true
}

func IsSymbol(r rune) bool {
	_, ok := RuneToByte(r)
	return ok
}

// EncodeBytes renders raw bytes in their symbol form, e.g. " hi" -> "Ġhi".
func EncodeBytes(s string) string {
	var sb strings.Builder
	sb.Grow(2 * len(s))
	for i := 0; i < len(s); i++ {
		sb.WriteRune(byteToRune[s[i]])
	}
	return sb.String()
}

// DecodeSymbols is the inverse of EncodeBytes. It reports false if s contains
// anything other than symbols.
func DecodeSymbols(s string) (string, bool) {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := RuneToByte(r)
		if !ok {
			return "", false
		}
		buf = append(buf, b)
	}
	return string(buf), true
}

// validSymbols reports the first rune of s that is not a symbol.
func validSymbols(s string) (rune, bool) {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return r, false
			}
		}
		if !IsSymbol(r) {
			return r, false
		}
	}
	return 0, true
}
