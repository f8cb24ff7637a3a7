package scan

import "encoding/binary"

// Byte classes written by Classify. Bytes with the high bit set belong to a
// multi-byte UTF-8 sequence (or are invalid) and are reported as ClassHigh so
// the caller can decode the rune and classify it itself.
const (
	ClassOther byte = 1 << iota
	ClassLetter
	ClassDigit
	ClassSpace
	ClassHigh
)

var classTable = func() (t [256]byte) {
	for i := range t {
		c := byte(i)
		switch {
		case c >= 0x80:
			t[i] = ClassHigh
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			t[i] = ClassLetter
		case '0' <= c && c <= '9':
			t[i] = ClassDigit
		case c == ' ', '\t' <= c && c <= '\r':
			t[i] = ClassSpace
		default:
			t[i] = ClassOther
		}
	}
	return t
}()

// ClassOf returns the class of a single byte.
func ClassOf(c byte) byte {
	return classTable[c]
}

// Classify writes the class of src[i] to dst[i]. dst must be at least as long
// as src.
func Classify(dst []byte, src string) {
	ClassifyLevel(active, dst, src)
}

func ClassifyLevel(level Level, dst []byte, src string) {
	dst = dst[:len(src)]
	switch level {
	case LevelWide:
		classifyWide(dst, src)
	case LevelSWAR:
		classifySWAR(dst, src)
	default:
		classifyScalar(dst, src)
	}
}

func classifyScalar(dst []byte, src string) {
	for i := 0; i < len(src); i++ {
		dst[i] = classTable[src[i]]
	}
}

func classifySWAR(dst []byte, src string) {
	i := 0
	for ; i+8 <= len(src); i += 8 {
		binary.LittleEndian.PutUint64(dst[i:], classifyWord(load64(src, i)))
	}

	classifyScalar(dst[i:], src[i:])
}

func classifyWide(dst []byte, src string) {
	i := 0
	for ; i+32 <= len(src); i += 32 {
		w0 := classifyWord(load64(src, i))
		w1 := classifyWord(load64(src, i+8))
		w2 := classifyWord(load64(src, i+16))
		w3 := classifyWord(load64(src, i+24))
		binary.LittleEndian.PutUint64(dst[i:], w0)
		binary.LittleEndian.PutUint64(dst[i+8:], w1)
		binary.LittleEndian.PutUint64(dst[i+16:], w2)
		binary.LittleEndian.PutUint64(dst[i+24:], w3)
	}

	classifySWAR(dst[i:], src[i:])
}

const (
	lanes01 = 0x0101010101010101
	lanes7f = 0x7f7f7f7f7f7f7f7f
	lanes80 = 0x8080808080808080
)

func load64(s string, i int) uint64 {
	_ = s[i+7]
	return uint64(s[i]) | uint64(s[i+1])<<8 | uint64(s[i+2])<<16 | uint64(s[i+3])<<24 |
		uint64(s[i+4])<<32 | uint64(s[i+5])<<40 | uint64(s[i+6])<<48 | uint64(s[i+7])<<56
}

// atLeast sets 0x80 in every lane of x that is >= n. Lanes of x must be below
// 0x80 and 0 < n <= 0x80 so no lane carries into its neighbour.
func atLeast(x uint64, n byte) uint64 {
	return (x + lanes01*uint64(0x80-n)) & lanes80
}

func between(x uint64, lo, hi byte) uint64 {
	return atLeast(x, lo) &^ atLeast(x, hi+1)
}

// classifyWord classifies eight bytes at once. Lane k of the result is the
// class of byte k of w.
func classifyWord(w uint64) uint64 {
	high := w & lanes80
	x := w & lanes7f

	letter := (between(x, 'A', 'Z') | between(x, 'a', 'z')) &^ high
	digit := between(x, '0', '9') &^ high
	space := (between(x, '\t', '\r') | between(x, ' ', ' ')) &^ high
	other := lanes80 &^ (letter | digit | space | high)

	return (letter>>7)*uint64(ClassLetter) |
		(digit>>7)*uint64(ClassDigit) |
		(space>>7)*uint64(ClassSpace) |
		(high>>7)*uint64(ClassHigh) |
		(other>>7)*uint64(ClassOther)
}
