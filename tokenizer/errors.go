package tokenizer

import (
	"errors"
	"fmt"
)

var (
	ErrNotLoaded       = errors.New("tokenizer not loaded")
	ErrAlreadyLoaded   = errors.New("tokenizer already loaded")
	ErrClosed          = errors.New("tokenizer closed")
	ErrInvalidCapacity = errors.New("capacity must not be negative")
)

// LoadError reports why a vocabulary, merge or rank source was rejected. The
// tokenizer stays unloaded and Load may be retried.
type LoadError struct {
	Source string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type CapacityExceededError struct {
	Capacity int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("encode: output exceeds capacity of %d tokens", e.Capacity)
}

// UnknownSymbolError means a symbol survived merging without a vocabulary
// entry, i.e. the vocabulary and merge files do not belong together.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("encode: symbol %q has no vocabulary id", e.Symbol)
}

type UnknownTokenIDError struct {
	ID int32
}

func (e *UnknownTokenIDError) Error() string {
	return fmt.Sprintf("decode: unknown token id %d", e.ID)
}
