package tokenizer

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gpt2tok/gpt2tok/scan"
)

const noRank = math.MaxInt32

type rule struct {
	rank   int32
	merged int32
}

// model is an immutable, loaded tokenizer. Symbols are interned: ids 0-255
// are the single bytes and merge results follow in first-seen order.
type model struct {
	vocab        *Vocabulary
	pretokenizer Pretokenizer
	cache        *lru.Cache[string, []int32]

	symbols []string
	toID    []int32
	rules   map[uint64]rule
	merges  int
}

func newModel(vocab *Vocabulary, merges [][2]string, opts options) (*model, error) {
	m := &model{
		vocab:        vocab,
		pretokenizer: GPT2,
		rules:        make(map[uint64]rule, len(merges)),
	}

	if opts.pattern != "" && opts.pattern != GPT2Pattern {
		p, err := NewRegexPretokenizer(opts.pattern)
		if err != nil {
			return nil, &LoadError{Source: "pattern", Err: err}
		}
		m.pretokenizer = p
	}

	if opts.cacheSize > 0 {
		cache, err := lru.New[string, []int32](opts.cacheSize)
		if err != nil {
			return nil, err
		}
		m.cache = cache
	}

	index := make(map[string]int32, 256+len(merges))
	intern := func(s string) int32 {
		if id, ok := index[s]; ok {
			return id
		}
		id := int32(len(m.symbols))
		index[s] = id
		m.symbols = append(m.symbols, s)
		return id
	}

	for b := range 256 {
		intern(string(byteToRune[b]))
	}

	for rank, merge := range merges {
		if rank >= noRank {
			return nil, &LoadError{Source: "merges", Err: fmt.Errorf("more than %d rules", noRank)}
		}

		key := scan.PairKey(intern(merge[0]), intern(merge[1]))
		if _, ok := m.rules[key]; ok {
			// the first occurrence of a pair keeps its rank
			continue
		}
		m.rules[key] = rule{rank: int32(rank), merged: intern(merge[0] + merge[1])}
	}
	m.merges = len(m.rules)

	m.toID = make([]int32, len(m.symbols))
	for i, s := range m.symbols {
		m.toID[i] = vocab.Encode(s)
	}
	return m, nil
}

func (m *model) lookup(a, b int32) (rule, bool) {
	r, ok := m.rules[scan.PairKey(a, b)]
	return r, ok
}
