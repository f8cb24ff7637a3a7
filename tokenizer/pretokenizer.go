package tokenizer

import (
	"iter"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/gpt2tok/gpt2tok/scan"
)

// GPT2Pattern is the pretokenization pattern of the GPT-2 byte-level BPE.
const GPT2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// Pretokenizer splits text into chunks that are merged independently. The
// chunks of a string concatenate back to the string.
type Pretokenizer interface {
	Split(s string) iter.Seq[string]
}

// GPT2 splits text the way GPT2Pattern does without a regular expression
// engine. Bytes that are not valid UTF-8 are treated as punctuation.
var GPT2 Pretokenizer = gpt2Pretokenizer{}

type gpt2Pretokenizer struct{}

func (gpt2Pretokenizer) Split(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if s == "" {
			return
		}

		classes := make([]byte, len(s))
		scan.Classify(classes, s)
		for i := 0; i < len(s); {
			n := chunkEnd(s, classes, i)
			if !yield(s[i:n]) {
				return
			}
			i = n
		}
	}
}

func classAt(s string, classes []byte, i int) (byte, int) {
	if c := classes[i]; c != scan.ClassHigh {
		return c, 1
	}

	r, size := utf8.DecodeRuneInString(s[i:])
	switch {
	case r == utf8.RuneError && size <= 1:
		return scan.ClassOther, 1
	case unicode.IsLetter(r):
		return scan.ClassLetter, size
	case unicode.IsNumber(r):
		return scan.ClassDigit, size
	case unicode.IsSpace(r):
		return scan.ClassSpace, size
	default:
		return scan.ClassOther, size
	}
}

var contractions = []string{"s", "t", "re", "ve", "m", "ll", "d"}

func contraction(s string) int {
	for _, c := range contractions {
		if len(s) >= len(c) && s[:len(c)] == c {
			return len(c)
		}
	}
	return 0
}

func runEnd(s string, classes []byte, i int, class byte) int {
	for i < len(s) {
		c, size := classAt(s, classes, i)
		if c != class {
			break
		}
		i += size
	}
	return i
}

// chunkEnd returns the end of the chunk starting at i.
func chunkEnd(s string, classes []byte, i int) int {
	if s[i] == '\'' {
		if n := contraction(s[i+1:]); n > 0 {
			return i + 1 + n
		}
	}

	class, size := classAt(s, classes, i)
	if s[i] == ' ' && i+1 < len(s) {
		if next, _ := classAt(s, classes, i+1); next != scan.ClassSpace {
			return runEnd(s, classes, i+1, next)
		}
	}

	if class != scan.ClassSpace {
		return runEnd(s, classes, i+size, class)
	}

	end := runEnd(s, classes, i+size, scan.ClassSpace)
	if end == len(s) {
		return end
	}

	// the last whitespace rune belongs to the chunk that follows
	_, last := utf8.DecodeLastRuneInString(s[i:end])
	if end-last > i {
		return end - last
	}
	return end
}

// NewRegexPretokenizer compiles a pretokenization pattern with the same
// Unicode classes as the GPT-2 scanner, so `\s` also matches `\v`, U+0085 and
// the Unicode separators. Text between matches is emitted as its own chunk.
// Bytes that are not valid UTF-8 match as U+FFFD but are returned unchanged.
func NewRegexPretokenizer(pattern string) (Pretokenizer, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	return regexPretokenizer{re}, nil
}

type regexPretokenizer struct {
	re *regexp2.Regexp
}

func (p regexPretokenizer) Split(s string) iter.Seq[string] {
	return func(yield func(string) bool) {
		// offsets[k] is the byte offset of rune k; each invalid byte is one rune
		runes := make([]rune, 0, len(s))
		offsets := make([]int, 0, len(s)+1)
		for i, r := range s {
			runes = append(runes, r)
			offsets = append(offsets, i)
		}
		offsets = append(offsets, len(s))

		var offset int
		for m, _ := p.re.FindRunesMatch(runes); m != nil; m, _ = p.re.FindNextMatch(m) {
			if m.Index > offset {
				if !yield(s[offsets[offset]:offsets[m.Index]]) {
					return
				}
			}

			end := m.Index + m.Length
			if m.Length > 0 {
				if !yield(s[offsets[m.Index]:offsets[end]]) {
					return
				}
			}

			offset = end
		}

		if offset < len(runes) {
			yield(s[offsets[offset]:])
		}
	}
}
