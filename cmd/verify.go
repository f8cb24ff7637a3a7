package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gpt2tok/gpt2tok/tokenizer"
)

var errMismatch = errors.New("encodings differ")

func NewVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [text]",
		Short: "Compare the builtin encoding of text with tiktoken",
		RunE:  verifyHandler,
	}
}

func verifyHandler(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	tok := tokenizer.New()
	if err := tok.LoadBuiltin(); err != nil {
		return err
	}
	defer tok.Close()

	ref, err := tokenizer.Reference()
	if err != nil {
		return err
	}

	got, err := tok.Encode(text, maxTokens(cmd))
	if err != nil {
		return err
	}

	want := ref.Encode(text, nil, nil)
	for i := range max(len(got), len(want)) {
		if i >= len(got) || i >= len(want) || int(got[i]) != want[i] {
			fmt.Fprintf(cmd.OutOrStdout(), "mismatch at token %d\n  gpt2tok:  %v\n  tiktoken: %v\n", i, tail(got, i), tail(want, i))
			return errMismatch
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d tokens\n", len(got))
	return nil
}

// tail returns a few ids starting at i.
func tail[T any](s []T, i int) []T {
	if i >= len(s) {
		return nil
	}
	return s[i:min(i+8, len(s))]
}
