package scan

// PairKey packs an adjacent symbol pair into a single comparable word.
func PairKey(a, b int32) uint64 {
	return uint64(uint32(a)) | uint64(uint32(b))<<32
}

// FindPairs appends to dst every index i where syms[i] == a and
// syms[i+1] == b, in ascending order. Overlapping matches (a == b) are all
// reported.
func FindPairs(dst []int, syms []int32, a, b int32) []int {
	return FindPairsLevel(active, dst, syms, a, b)
}

func FindPairsLevel(level Level, dst []int, syms []int32, a, b int32) []int {
	switch level {
	case LevelWide:
		return findPairsWide(dst, syms, a, b)
	case LevelSWAR:
		return findPairsSWAR(dst, syms, a, b, 0)
	default:
		return findPairsScalar(dst, syms, a, b, 0)
	}
}

func findPairsScalar(dst []int, syms []int32, a, b int32, from int) []int {
	for i := from; i+1 < len(syms); i++ {
		if syms[i] == a && syms[i+1] == b {
			dst = append(dst, i)
		}
	}

	return dst
}

// findPairsSWAR compares both halves of a window with one 64-bit compare.
func findPairsSWAR(dst []int, syms []int32, a, b int32, from int) []int {
	want := PairKey(a, b)
	for i := from; i+1 < len(syms); i++ {
		if PairKey(syms[i], syms[i+1]) == want {
			dst = append(dst, i)
		}
	}

	return dst
}

// findPairsWide tests four windows per step and only branches into the
// per-window checks when at least one of them matched.
func findPairsWide(dst []int, syms []int32, a, b int32) []int {
	want := PairKey(a, b)
	i := 0
	for ; i+4 < len(syms); i += 4 {
		w0 := PairKey(syms[i], syms[i+1]) ^ want
		w1 := PairKey(syms[i+1], syms[i+2]) ^ want
		w2 := PairKey(syms[i+2], syms[i+3]) ^ want
		w3 := PairKey(syms[i+3], syms[i+4]) ^ want
		if w0 != 0 && w1 != 0 && w2 != 0 && w3 != 0 {
			continue
		}

		if w0 == 0 {
			dst = append(dst, i)
		}
		if w1 == 0 {
			dst = append(dst, i+1)
		}
		if w2 == 0 {
			dst = append(dst, i+2)
		}
		if w3 == 0 {
			dst = append(dst, i+3)
		}
	}

	return findPairsSWAR(dst, syms, a, b, i)
}
