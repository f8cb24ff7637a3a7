package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Vocabulary maps symbol strings to dense token ids.
type Vocabulary struct {
	values []string
	raw    []string
	ids    map[string]int32
}

// NewVocabulary builds a vocabulary where values[i] is the symbol string of
// token id i.
func NewVocabulary(values []string) (*Vocabulary, error) {
	if len(values) > math.MaxInt32 {
		return nil, fmt.Errorf("vocabulary has %d entries", len(values))
	}

	v := &Vocabulary{
		values: values,
		raw:    make([]string, len(values)),
		ids:    make(map[string]int32, len(values)),
	}
	for i, value := range values {
		if value == "" {
			return nil, fmt.Errorf("token id %d: empty token", i)
		}
		if r, ok := validSymbols(value); !ok {
			return nil, fmt.Errorf("token %q: %U is not a byte symbol", value, r)
		}
		if prev, ok := v.ids[value]; ok {
			return nil, fmt.Errorf("token %q: ids %d and %d", value, prev, i)
		}
		v.ids[value] = int32(i)
		v.raw[i], _ = DecodeSymbols(value)
	}
	return v, nil
}

// ParseVocabulary reads a JSON object of symbol string to token id, as found
// in vocab.json.
func ParseVocabulary(r io.Reader) (*Vocabulary, error) {
	values, err := parseVocabulary(r)
	if err != nil {
		return nil, &LoadError{Source: "vocab", Err: err}
	}

	v, err := NewVocabulary(values)
	if err != nil {
		return nil, &LoadError{Source: "vocab", Err: err}
	}
	return v, nil
}

func parseVocabulary(r io.Reader) ([]string, error) {
	d := json.NewDecoder(newTextReader(r))
	if t, err := d.Token(); err != nil {
		return nil, err
	} else if t != json.Delim('{') {
		return nil, fmt.Errorf("expected object, got %v", t)
	}

	type entry struct {
		token string
		id    int64
	}

	var entries []entry
	seen := make(map[string]struct{})
	for d.More() {
		t, err := d.Token()
		if err != nil {
			return nil, err
		}

		key := t.(string)
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("duplicate token %q", key)
		}
		seen[key] = struct{}{}

		var id int64
		if err := d.Decode(&id); err != nil {
			return nil, fmt.Errorf("token %q: %w", key, err)
		}
		entries = append(entries, entry{key, id})
	}

	if _, err := d.Token(); err != nil {
		return nil, err
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}

	values := make([]string, len(entries))
	for _, e := range entries {
		if e.id < 0 || e.id >= int64(len(entries)) {
			return nil, fmt.Errorf("token %q: id %d outside [0, %d)", e.token, e.id, len(entries))
		}
		if values[e.id] != "" {
			return nil, fmt.Errorf("token %q: id %d already used by %q", e.token, e.id, values[e.id])
		}
		values[e.id] = e.token
	}
	return values, nil
}

func (v *Vocabulary) Size() int {
	return len(v.values)
}

// Encode returns the id of a symbol string, or -1.
func (v *Vocabulary) Encode(s string) int32 {
	if id, ok := v.ids[s]; ok {
		return id
	}
	return -1
}

// Decode returns the symbol string of id.
func (v *Vocabulary) Decode(id int32) (string, bool) {
	if id < 0 || int(id) >= len(v.values) {
		return "", false
	}
	return v.values[id], true
}

// Bytes returns the raw bytes id stands for.
func (v *Vocabulary) Bytes(id int32) (string, bool) {
	if id < 0 || int(id) >= len(v.raw) {
		return "", false
	}
	return v.raw[id], true
}

// newTextReader strips a leading byte order mark, decoding UTF-16 input if
// the mark says so.
func newTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}
