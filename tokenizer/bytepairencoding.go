package tokenizer

import (
	"cmp"
	"slices"
	"strings"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/gpt2tok/gpt2tok/scan"
)

// Chunks longer than this many bytes are merged with a priority queue instead
// of repeated linear scans.
const heapThreshold = 64

type encodeState struct {
	syms      []int32
	positions []int
}

func (st *encodeState) reset(chunk string) []int32 {
	st.syms = slices.Grow(st.syms[:0], len(chunk))[:len(chunk)]
	for i := 0; i < len(chunk); i++ {
		st.syms[i] = int32(chunk[i])
	}
	return st.syms
}

// encode appends the ids of text to a fresh slice, failing as soon as more
// than capacity ids are produced.
func (m *model) encode(text string, capacity int) ([]int32, error) {
	ids := make([]int32, 0, min(capacity, len(text)))

	var st encodeState
	for chunk := range m.pretokenizer.Split(text) {
		var err error
		if ids, err = m.encodeChunk(ids, chunk, &st); err != nil {
			return nil, err
		}

		if len(ids) > capacity {
			return nil, &CapacityExceededError{Capacity: capacity}
		}
	}
	return ids, nil
}

func (m *model) encodeChunk(ids []int32, chunk string, st *encodeState) ([]int32, error) {
	if m.cache != nil {
		if cached, ok := m.cache.Get(chunk); ok {
			return append(ids, cached...), nil
		}
	}

	syms := st.reset(chunk)
	if len(syms) > heapThreshold {
		syms = m.mergeHeap(syms)
	} else {
		syms, st.positions = m.mergeLinear(syms, st.positions)
	}

	start := len(ids)
	for _, s := range syms {
		id := m.toID[s]
		if id < 0 {
			return ids, &UnknownSymbolError{Symbol: m.symbols[s]}
		}
		ids = append(ids, id)
	}

	if m.cache != nil {
		m.cache.Add(strings.Clone(chunk), slices.Clone(ids[start:]))
	}
	return ids, nil
}

// mergeLinear applies the lowest ranked rule to every non-overlapping
// occurrence, left to right, until no adjacent pair has a rule.
func (m *model) mergeLinear(syms []int32, positions []int) ([]int32, []int) {
	for len(syms) > 1 {
		best := rule{rank: noRank}
		var a, b int32
		for i := 0; i+1 < len(syms); i++ {
			if r, ok := m.lookup(syms[i], syms[i+1]); ok && r.rank < best.rank {
				best, a, b = r, syms[i], syms[i+1]
			}
		}

		if best.rank == noRank {
			break
		}

		positions = scan.FindPairs(positions[:0], syms, a, b)
		w, next := 0, 0
		for i := 0; i < len(syms); {
			if next < len(positions) && positions[next] == i {
				syms[w] = best.merged
				w, i = w+1, i+2
				for next < len(positions) && positions[next] < i {
					next++
				}
				continue
			}

			syms[w] = syms[i]
			w, i = w+1, i+1
		}
		syms = syms[:w]
	}
	return syms, positions
}

type node struct {
	prev, next int
	sym        int32
}

type candidate struct {
	left, right int
	a, b        int32
	rule
}

// mergeHeap produces the same result as mergeLinear. Pairs created by a merge
// are held back until every pair of the current rank has been merged, so a
// rank is always applied left to right across the whole chunk.
func (m *model) mergeHeap(syms []int32) []int32 {
	nodes := make([]node, len(syms))
	for i, s := range syms {
		nodes[i] = node{prev: i - 1, next: i + 1, sym: s}
	}

	pairwise := func(left, right int) *candidate {
		if left < 0 || right >= len(nodes) {
			return nil
		}

		a, b := nodes[left].sym, nodes[right].sym
		r, ok := m.lookup(a, b)
		if !ok {
			return nil
		}
		return &candidate{left: left, right: right, a: a, b: b, rule: r}
	}

	pairs := heap.NewWith(func(x, y *candidate) int {
		if c := cmp.Compare(x.rank, y.rank); c != 0 {
			return c
		}
		return cmp.Compare(x.left, y.left)
	})

	for i := range len(nodes) - 1 {
		if c := pairwise(i, i+1); c != nil {
			pairs.Push(c)
		}
	}

	var pending []*candidate
	rank := int32(-1)
	for {
		if len(pending) > 0 {
			if top, ok := pairs.Peek(); !ok || top.rank != rank {
				pairs.Push(pending...)
				pending = pending[:0]
			}
		}

		c, ok := pairs.Pop()
		if !ok {
			break
		}

		left, right := &nodes[c.left], &nodes[c.right]
		if left.sym != c.a || right.sym != c.b || left.next != c.right {
			continue
		}

		rank = c.rank
		left.sym = c.merged
		left.next = right.next
		right.sym = -1
		if right.next < len(nodes) {
			nodes[right.next].prev = c.left
		}

		if p := pairwise(left.prev, c.left); p != nil {
			pending = append(pending, p)
		}

		if p := pairwise(c.left, left.next); p != nil {
			pending = append(pending, p)
		}
	}

	out := syms[:0]
	for i := 0; i < len(nodes); i = nodes[i].next {
		out = append(out, nodes[i].sym)
	}
	return out
}

func (m *model) decode(ids []int32) ([]byte, error) {
	out := make([]byte, 0, 4*len(ids))
	for _, id := range ids {
		raw, ok := m.vocab.Bytes(id)
		if !ok {
			return nil, &UnknownTokenIDError{ID: id}
		}
		out = append(out, raw...)
	}
	return out, nil
}
