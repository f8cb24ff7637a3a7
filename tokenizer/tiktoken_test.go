package tokenizer

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

var builtinOnce = sync.OnceValues(func() (*Tokenizer, error) {
	tok := New(WithCacheSize(1024))
	return tok, tok.LoadBuiltin()
})

func builtinTokenizer(t testing.TB) *Tokenizer {
	t.Helper()
	tok, err := builtinOnce()
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestBuiltin(t *testing.T) {
	tok := builtinTokenizer(t)

	if n := tok.VocabSize(); n != 50257 {
		t.Errorf("VocabSize = %d, want 50257", n)
	}

	cases := map[string][]int32{
		"Hello world": {15496, 995},
		"hello world": {31373, 995},
		"":            {},
	}

	for input, want := range cases {
		got, err := tok.Encode(input, 64)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Encode(%q) mismatch (-want +got):\n%s", input, diff)
		}
	}

	if s, err := tok.Token(50256); err != nil || s != EndOfText {
		t.Errorf("Token(50256) = %q, %v", s, err)
	}

	if _, err := tok.Decode([]int32{50257}); err == nil {
		t.Error("Decode(50257) succeeded")
	}
}

var referenceTexts = []string{
	"The quick brown fox jumps over the lazy dog.",
	"I'm sure they'll say it's fine, but we've seen what's happened.",
	"func main() {\n\tfmt.Println(\"hello, world\")\n}\n",
	"    indented   with   runs of    spaces   ",
	"Prices rose 3.5% to $1,234.56 in Q4 2023.",
	"Ünïcödé text: naïve café, Straße, 東京, Москва.",
	"Emoji 👋🏽 and symbols ©®™ — “quotes” …",
	"line one\n\nline three\r\nline four\n\n\n",
	strings.Repeat("antidisestablishmentarianism", 4),
	"https://example.com/a/very/long/path/without/any/spaces/at/all?query=string&with=parameters#fragment",
	strings.Repeat("=", 100),
}

func TestBuiltinMatchesReference(t *testing.T) {
	tok := builtinTokenizer(t)
	ref, err := Reference()
	if err != nil {
		t.Fatal(err)
	}

	for _, text := range referenceTexts {
		var want []int32
		for _, id := range ref.Encode(text, nil, nil) {
			want = append(want, int32(id))
		}

		got, err := tok.Encode(text, 4096)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(want, got, cmpEmpty); diff != "" {
			t.Errorf("Encode(%q) mismatch (-tiktoken +got):\n%s", text, diff)
		}

		decoded, err := tok.Decode(got)
		if err != nil {
			t.Fatal(err)
		}

		if decoded != text {
			t.Errorf("Decode(Encode(%q)) = %q", text, decoded)
		}
	}
}

func TestPatternMatchesReference(t *testing.T) {
	// the wrapped pattern is not GPT2Pattern, so the regular expression is used
	tok := New(WithPattern("(?:" + GPT2Pattern + ")"))
	if err := tok.LoadBuiltin(); err != nil {
		t.Fatal(err)
	}
	defer tok.Close()

	ref, err := Reference()
	if err != nil {
		t.Fatal(err)
	}

	texts := append([]string{
		"tab\tvertical\vform\ffeed",
		"wide\u3000space and\u00a0nbsp",
		"next\u0085line\n\n\u2028separated",
	}, referenceTexts...)

	r := rand.New(rand.NewPCG(9, 10))
	for range 300 {
		if s := randomText(r, 1+r.IntN(24)); utf8.ValidString(s) {
			texts = append(texts, s)
		}
	}

	for _, text := range texts {
		var want []int32
		for _, id := range ref.Encode(text, nil, nil) {
			want = append(want, int32(id))
		}

		got, err := tok.Encode(text, 4096)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(want, got, cmpEmpty); diff != "" {
			t.Errorf("Encode(%q) mismatch (-tiktoken +got):\n%s", text, diff)
		}
	}

	ids, err := tok.Encode("a\xffb", 16)
	if err != nil {
		t.Fatal(err)
	}

	if b, err := tok.DecodeBytes(ids); err != nil || string(b) != "a\xffb" {
		t.Errorf("DecodeBytes = %q, %v", b, err)
	}
}

var cmpEmpty = cmp.Comparer(func(a, b []int32) bool {
	return slices.Equal(a, b)
})

func TestLoadRanks(t *testing.T) {
	ranks := map[string]int{"a": 0, "b": 1, " ": 2, "ab": 3, " ab": 4}
	tok := New()
	if err := tok.LoadRanks(ranks, map[string]int{EndOfText: 5}); err != nil {
		t.Fatal(err)
	}
	defer tok.Close()

	ids, err := tok.Encode("ab ab", 8)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int32{3, 4}, ids); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}

	if s, err := tok.Token(4); err != nil || s != "Ġab" {
		t.Errorf("Token(4) = %q, %v", s, err)
	}
}

func TestLoadRanksErrors(t *testing.T) {
	cases := map[string]struct {
		ranks    map[string]int
		specials map[string]int
	}{
		"gap":             {map[string]int{"a": 0, "b": 2}, nil},
		"unreachable":     {map[string]int{"a": 0, "b": 1, "abc": 2}, nil},
		"special overlap": {map[string]int{"a": 0}, map[string]int{EndOfText: 0}},
		"special gap":     {map[string]int{"a": 0}, map[string]int{EndOfText: 2}},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			err := New().LoadRanks(tt.ranks, tt.specials)
			var lerr *LoadError
			if !errors.As(err, &lerr) || lerr.Source != "ranks" {
				t.Errorf("expected ranks *LoadError, got %v", err)
			}
		})
	}
}

func TestSplitRank(t *testing.T) {
	ranks := map[string]int{"a": 0, "b": 1, "c": 2, "bc": 3, "ab": 4, "abc": 5}
	if diff := cmp.Diff([]string{"a", "bc"}, splitRank(ranks, "abc", 5)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"a", "b"}, splitRank(ranks, "ab", 4)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestBuiltinMergeStrategiesAgree(t *testing.T) {
	tok := builtinTokenizer(t)
	m, err := tok.loaded()
	if err != nil {
		t.Fatal(err)
	}

	for _, text := range referenceTexts {
		syms := make([]int32, len(text))
		for i := 0; i < len(text); i++ {
			syms[i] = int32(text[i])
		}

		linear, _ := m.mergeLinear(slices.Clone(syms), nil)
		heap := m.mergeHeap(slices.Clone(syms))
		if diff := cmp.Diff(linear, heap); diff != "" {
			t.Errorf("merge of %q differs (-linear +heap):\n%s", text, diff)
		}
	}
}

func BenchmarkEncode(b *testing.B) {
	tok := builtinTokenizer(b)
	text := strings.Join(referenceTexts, " ")
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for range b.N {
		if _, err := tok.Encode(text, 1<<20); err != nil {
			b.Fatal(err)
		}
	}
}

func TestParseRanks(t *testing.T) {
	ranks, err := ParseRanks(strings.NewReader("YQ== 0\nYg== 1\n\nIA== 2\nYWI= 3\n"))
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(map[string]int{"a": 0, "b": 1, " ": 2, "ab": 3}, ranks); diff != "" {
		t.Errorf("ranks mismatch (-want +got):\n%s", diff)
	}

	for _, input := range []string{"YQ==\n", "!!! 0\n", "YQ== x\n"} {
		var lerr *LoadError
		if _, err := ParseRanks(strings.NewReader(input)); !errors.As(err, &lerr) || lerr.Line != 1 {
			t.Errorf("ParseRanks(%q): got %v", input, err)
		}
	}

	var lerr *LoadError
	_, err = ParseRanks(strings.NewReader("YQ== 0\nYg== 1\nYQ== 2\n"))
	if !errors.As(err, &lerr) || lerr.Line != 3 || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("duplicate token: got %v", err)
	}
}
