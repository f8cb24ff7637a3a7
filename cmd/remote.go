package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gpt2tok/gpt2tok/api"
	"github.com/gpt2tok/gpt2tok/tokenizer"
)

// textCodec is what encode, decode and count need from a tokenizer, whether
// it runs in process or behind a gpt2tok server.
type textCodec interface {
	Encode(ctx context.Context, text string, capacity int) ([]int32, error)
	DecodeBytes(ctx context.Context, ids []int32) ([]byte, error)
	Close() error
}

type localCodec struct {
	tok *tokenizer.Tokenizer
}

func (c localCodec) Encode(_ context.Context, text string, capacity int) ([]int32, error) {
	return c.tok.Encode(text, capacity)
}

func (c localCodec) DecodeBytes(_ context.Context, ids []int32) ([]byte, error) {
	return c.tok.DecodeBytes(ids)
}

func (c localCodec) Close() error {
	return c.tok.Close()
}

type remoteCodec struct {
	client *api.Client
}

func (c remoteCodec) Encode(ctx context.Context, text string, capacity int) ([]int32, error) {
	resp, err := c.client.Tokenize(ctx, &api.TokenizeRequest{Text: text, MaxTokens: capacity})
	if err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// DecodeBytes returns the server's text. Bytes that are not valid UTF-8 come
// back as U+FFFD because the reply is JSON.
func (c remoteCodec) DecodeBytes(ctx context.Context, ids []int32) ([]byte, error) {
	resp, err := c.client.Detokenize(ctx, &api.DetokenizeRequest{Tokens: ids})
	if err != nil {
		return nil, err
	}
	return []byte(resp.Text), nil
}

func (remoteCodec) Close() error {
	return nil
}

// openCodec returns the server at GPT2TOK_HOST when --remote is set and a
// locally loaded tokenizer otherwise.
func openCodec(cmd *cobra.Command) (textCodec, error) {
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}

		if err := client.Heartbeat(cmd.Context()); err != nil {
			return nil, fmt.Errorf("could not connect to gpt2tok server: %w", err)
		}
		return remoteCodec{client}, nil
	}

	tok, err := loadTokenizer(cmd)
	if err != nil {
		return nil, err
	}
	return localCodec{tok}, nil
}
