package tokenizer

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	builtinEncoding = "r50k_base"
	EndOfText       = "<|endoftext|>"
)

var builtin struct {
	once  sync.Once
	ranks map[string]int
	enc   *tiktoken.Tiktoken
	err   error
}

// rankRecorder keeps a copy of the rank table tiktoken loads.
type rankRecorder struct {
	loader tiktoken.BpeLoader
	ranks  map[string]int
}

func (r *rankRecorder) LoadTiktokenBpe(file string) (map[string]int, error) {
	ranks, err := r.loader.LoadTiktokenBpe(file)
	if err == nil {
		r.ranks = ranks
	}
	return ranks, err
}

func loadBuiltin() (map[string]int, *tiktoken.Tiktoken, error) {
	builtin.once.Do(func() {
		// the offline loader embeds the tables so nothing is downloaded
		rec := &rankRecorder{loader: tiktoken_loader.NewOfflineLoader()}
		tiktoken.SetBpeLoader(rec)
		builtin.enc, builtin.err = tiktoken.GetEncoding(builtinEncoding)
		if builtin.err == nil && rec.ranks == nil {
			builtin.err = errors.New("embedded ranks were not loaded")
		}
		builtin.ranks = rec.ranks
	})
	return builtin.ranks, builtin.enc, builtin.err
}

// Reference returns the tiktoken encoder for the tables LoadBuiltin uses.
func Reference() (*tiktoken.Tiktoken, error) {
	_, enc, err := loadBuiltin()
	return enc, err
}

// LoadBuiltin loads the GPT-2 tables embedded in the binary.
func (t *Tokenizer) LoadBuiltin() error {
	if err := t.loadable(); err != nil {
		return err
	}

	ranks, _, err := loadBuiltin()
	if err != nil {
		return &LoadError{Source: builtinEncoding, Err: err}
	}

	return t.LoadRanks(ranks, map[string]int{EndOfText: len(ranks)})
}

// LoadRanks loads a tiktoken style table mapping raw token bytes to rank,
// where the rank doubles as token id. specials are added to the vocabulary
// verbatim and never produced by Encode.
func (t *Tokenizer) LoadRanks(ranks, specials map[string]int) error {
	if err := t.loadable(); err != nil {
		return err
	}

	vocab, merges, err := convertRanks(ranks, specials)
	if err != nil {
		return &LoadError{Source: "ranks", Err: err}
	}
	return t.install(vocab, merges)
}

// convertRanks derives vocab.json and merges.txt from a rank table. Each
// multi-byte token is the merge of the two parts that byte pair encoding its
// bytes with only lower ranks yields.
func convertRanks(ranks, specials map[string]int) (*Vocabulary, [][2]string, error) {
	n := len(ranks) + len(specials)
	values := make([]string, n)
	tokens := make([]string, len(ranks))

	for token, rank := range ranks {
		if token == "" {
			return nil, nil, errors.New("empty token")
		}
		if rank < 0 || rank >= len(ranks) {
			return nil, nil, fmt.Errorf("token %q: rank %d outside [0, %d)", token, rank, len(ranks))
		}
		if values[rank] != "" {
			return nil, nil, fmt.Errorf("token %q: rank %d already used", token, rank)
		}
		values[rank] = EncodeBytes(token)
		tokens[rank] = token
	}

	for special, id := range specials {
		if id < len(ranks) || id >= n {
			return nil, nil, fmt.Errorf("special %q: id %d outside [%d, %d)", special, id, len(ranks), n)
		}
		if values[id] != "" {
			return nil, nil, fmt.Errorf("special %q: id %d already used", special, id)
		}
		values[id] = special
	}

	vocab, err := NewVocabulary(values)
	if err != nil {
		return nil, nil, err
	}

	var merges [][2]string
	for rank, token := range tokens {
		if len(token) < 2 {
			continue
		}

		parts := splitRank(ranks, token, rank)
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("token %q: cannot be formed from lower ranks", token)
		}
		merges = append(merges, [2]string{EncodeBytes(parts[0]), EncodeBytes(parts[1])})
	}
	return vocab, merges, nil
}

// splitRank merges the bytes of token using ranks below limit.
func splitRank(ranks map[string]int, token string, limit int) []string {
	parts := make([]string, len(token))
	for i := 0; i < len(token); i++ {
		parts[i] = token[i : i+1]
	}

	for {
		best, bestRank := -1, limit
		for i := 0; i+1 < len(parts); i++ {
			if r, ok := ranks[parts[i]+parts[i+1]]; ok && r < bestRank {
				best, bestRank = i, r
			}
		}

		if best < 0 {
			return parts
		}

		parts[best] += parts[best+1]
		parts = append(parts[:best+1], parts[best+2:]...)
	}
}

// ParseRanks reads a .tiktoken file: one base64 encoded token and its rank
// per line.
func ParseRanks(r io.Reader) (map[string]int, error) {
	ranks := make(map[string]int)
	lines := make(map[string]int)
	s := bufio.NewScanner(newTextReader(r))
	for n := 1; s.Scan(); n++ {
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}

		if len(fields) != 2 {
			return nil, &LoadError{Source: "ranks", Line: n, Err: fmt.Errorf("expected 2 fields, got %d", len(fields))}
		}

		token, err := base64.StdEncoding.DecodeString(fields[0])
		if err != nil {
			return nil, &LoadError{Source: "ranks", Line: n, Err: err}
		}

		rank, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &LoadError{Source: "ranks", Line: n, Err: err}
		}

		if first, ok := lines[string(token)]; ok {
			return nil, &LoadError{Source: "ranks", Line: n, Err: fmt.Errorf("token %q already defined on line %d", token, first)}
		}

		ranks[string(token)] = rank
		lines[string(token)] = n
	}

	if err := s.Err(); err != nil {
		return nil, &LoadError{Source: "ranks", Err: err}
	}
	return ranks, nil
}
