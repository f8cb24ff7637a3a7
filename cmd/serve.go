package cmd

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/gpt2tok/gpt2tok/envconfig"
	"github.com/gpt2tok/gpt2tok/server"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the tokenizer server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}

	appendEnvDocs(cmd,
		"GPT2TOK_DEBUG",
		"GPT2TOK_HOST",
		"GPT2TOK_ORIGINS",
		"GPT2TOK_VOCAB",
		"GPT2TOK_MERGES",
		"GPT2TOK_MAX_TOKENS",
		"GPT2TOK_CACHE_SIZE",
		"GPT2TOK_PATTERN",
		"GPT2TOK_SCAN",
		"GPT2TOK_CONFIG",
	)
	return cmd
}

func RunServer(cmd *cobra.Command, _ []string) error {
	hostport, err := envconfig.HostPort()
	if err != nil {
		return err
	}

	tok, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		tok.Close()
		return err
	}

	return server.Serve(cmd.Context(), ln, tok)
}
