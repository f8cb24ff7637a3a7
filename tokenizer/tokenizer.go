// Package tokenizer implements GPT-2 byte-level byte pair encoding.
//
// A Tokenizer starts out empty, is loaded exactly once from a vocabulary and
// a list of merge rules, and may then be used from any number of goroutines
// until it is closed.
package tokenizer

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gpt2tok/gpt2tok/logutil"
	"github.com/gpt2tok/gpt2tok/scan"
)

type options struct {
	pattern   string
	cacheSize int
}

type Option func(*options)

// WithPattern replaces the GPT-2 pretokenizer with a regular expression.
func WithPattern(pattern string) Option {
	return func(o *options) {
		o.pattern = pattern
	}
}

// WithCacheSize keeps the ids of up to n recently seen chunks. Zero disables
// caching.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = max(n, 0)
	}
}

type Tokenizer struct {
	opts   options
	model  atomic.Pointer[model]
	closed atomic.Bool
}

func New(opts ...Option) *Tokenizer {
	var t Tokenizer
	for _, opt := range opts {
		opt(&t.opts)
	}
	return &t
}

func (t *Tokenizer) loaded() (*model, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	m := t.model.Load()
	if m == nil {
		return nil, ErrNotLoaded
	}
	return m, nil
}

func (t *Tokenizer) loadable() error {
	switch {
	case t.closed.Load():
		return ErrClosed
	case t.model.Load() != nil:
		return ErrAlreadyLoaded
	}
	return nil
}

// Load reads vocab.json and merges.txt. A failed load leaves the tokenizer
// unloaded.
func (t *Tokenizer) Load(vocab, merges io.Reader) error {
	if err := t.loadable(); err != nil {
		return err
	}

	v, err := ParseVocabulary(vocab)
	if err != nil {
		return err
	}

	rules, err := ParseMerges(merges)
	if err != nil {
		return err
	}

	return t.install(v, rules)
}

func (t *Tokenizer) LoadFiles(vocabPath, mergesPath string) error {
	if err := t.loadable(); err != nil {
		return err
	}

	vf, err := os.Open(vocabPath)
	if err != nil {
		return &LoadError{Source: vocabPath, Err: err}
	}
	defer vf.Close()

	mf, err := os.Open(mergesPath)
	if err != nil {
		return &LoadError{Source: mergesPath, Err: err}
	}
	defer mf.Close()

	v, err := ParseVocabulary(vf)
	if err != nil {
		return withSource(err, vocabPath)
	}

	rules, err := ParseMerges(mf)
	if err != nil {
		return withSource(err, mergesPath)
	}

	return t.install(v, rules)
}

func withSource(err error, source string) error {
	var lerr *LoadError
	if errors.As(err, &lerr) {
		lerr.Source = source
	}
	return err
}

func (t *Tokenizer) install(vocab *Vocabulary, merges [][2]string) error {
	m, err := newModel(vocab, merges, t.opts)
	if err != nil {
		return err
	}

	if t.closed.Load() {
		return ErrClosed
	}

	if !t.model.CompareAndSwap(nil, m) {
		return ErrAlreadyLoaded
	}

	slog.Info("tokenizer loaded", "vocab_size", vocab.Size(), "merges", m.merges, "scan", scan.Active(), "cache", t.opts.cacheSize)
	return nil
}

// Encode tokenizes text. capacity bounds the number of ids; exceeding it
// fails with a *CapacityExceededError rather than truncating.
func (t *Tokenizer) Encode(text string, capacity int) ([]int32, error) {
	m, err := t.loaded()
	if err != nil {
		return nil, err
	}

	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	ids, err := m.encode(text, capacity)
	if err != nil {
		return nil, err
	}

	logutil.Trace("encoded", "string", text, "ids", logutil.IDs(ids))
	return ids, nil
}

// Count returns the number of ids text encodes to.
func (t *Tokenizer) Count(text string) (int, error) {
	ids, err := t.Encode(text, math.MaxInt)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DecodeBytes returns the exact bytes the ids stand for.
func (t *Tokenizer) DecodeBytes(ids []int32) ([]byte, error) {
	m, err := t.loaded()
	if err != nil {
		return nil, err
	}

	b, err := m.decode(ids)
	if err != nil {
		return nil, err
	}

	logutil.Trace("decoded", "ids", logutil.IDs(ids), "bytes", len(b))
	return b, nil
}

// Decode is DecodeBytes as a string. Bytes that are not valid UTF-8, as
// produced by ids that split a multi-byte character, are kept as is.
func (t *Tokenizer) Decode(ids []int32) (string, error) {
	b, err := t.DecodeBytes(ids)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(b) {
		slog.Debug("decoded text is not valid utf-8", "ids", logutil.IDs(ids))
	}
	return string(b), nil
}

// VocabSize returns the number of token ids, or 0 if not loaded.
func (t *Tokenizer) VocabSize() int {
	m, err := t.loaded()
	if err != nil {
		return 0
	}
	return m.vocab.Size()
}

// Merges returns the number of distinct merge rules, or 0 if not loaded.
func (t *Tokenizer) Merges() int {
	m, err := t.loaded()
	if err != nil {
		return 0
	}
	return m.merges
}

func (t *Tokenizer) IsLoaded() bool {
	_, err := t.loaded()
	return err == nil
}

// Token returns the vocabulary entry of id in its symbol form.
func (t *Tokenizer) Token(id int32) (string, error) {
	m, err := t.loaded()
	if err != nil {
		return "", err
	}

	s, ok := m.vocab.Decode(id)
	if !ok {
		return "", &UnknownTokenIDError{ID: id}
	}
	return s, nil
}

// Close releases the loaded tables. Every later call fails with ErrClosed.
func (t *Tokenizer) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	if m := t.model.Swap(nil); m != nil && m.cache != nil {
		m.cache.Purge()
	}
	return nil
}
