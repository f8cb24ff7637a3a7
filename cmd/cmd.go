package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gpt2tok/gpt2tok/envconfig"
	"github.com/gpt2tok/gpt2tok/logutil"
	"github.com/gpt2tok/gpt2tok/tokenizer"
	"github.com/gpt2tok/gpt2tok/version"
)

var errMissingInput = errors.New("no input: pass text as arguments or pipe it on stdin")

// loadTokenizer builds a tokenizer from the --vocab/--merges, --ranks and
// --builtin flags, falling back to GPT2TOK_VOCAB and GPT2TOK_MERGES and then
// to the embedded GPT-2 tables.
func loadTokenizer(cmd *cobra.Command) (*tokenizer.Tokenizer, error) {
	flags := cmd.Flags()
	vocab, _ := flags.GetString("vocab")
	merges, _ := flags.GetString("merges")
	ranks, _ := flags.GetString("ranks")
	builtin, _ := flags.GetBool("builtin")
	pattern, _ := flags.GetString("pattern")
	cacheSize, _ := flags.GetInt("cache-size")

	if vocab == "" {
		vocab = envconfig.Vocab
	}
	if merges == "" {
		merges = envconfig.Merges
	}
	if pattern == "" {
		pattern = envconfig.Pattern
	}
	if !flags.Changed("cache-size") {
		cacheSize = envconfig.CacheSize
	}

	tok := tokenizer.New(tokenizer.WithPattern(pattern), tokenizer.WithCacheSize(cacheSize))

	var err error
	switch {
	case builtin:
		err = tok.LoadBuiltin()
	case ranks != "":
		err = loadRanksFile(tok, ranks)
	case vocab != "" && merges != "":
		err = tok.LoadFiles(vocab, merges)
	case vocab != "" || merges != "":
		err = errors.New("both --vocab and --merges are required")
	default:
		slog.Debug("no tokenizer files given, using builtin gpt-2 tables")
		err = tok.LoadBuiltin()
	}

	if err != nil {
		return nil, err
	}
	return tok, nil
}

func loadRanksFile(tok *tokenizer.Tokenizer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ranks, err := tokenizer.ParseRanks(f)
	if err != nil {
		return err
	}

	return tok.LoadRanks(ranks, map[string]int{tokenizer.EndOfText: len(ranks)})
}

func maxTokens(cmd *cobra.Command) int {
	if n, err := cmd.Flags().GetInt("max-tokens"); err == nil && n > 0 {
		return n
	}
	return envconfig.MaxTokens
}

// readInput joins args, or reads stdin when no args are given and stdin is
// not a terminal. Input bytes are tokenized as they are, byte order mark
// included.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errMissingInput
	}

	bts, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return string(bts), nil
}

func appendEnvDocs(cmd *cobra.Command, names ...string) {
	envs := envconfig.AsMap()
	if len(names) == 0 {
		for name := range envs {
			names = append(names, name)
		}
		slices.Sort(names)
	}

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "      %-20s %s\n", name, envs[name].Description)
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + sb.String())
}

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:   "gpt2tok",
		Short: "GPT-2 byte-level BPE tokenizer",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "gpt2tok version is %s\n", version.Version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	flags := rootCmd.PersistentFlags()
	flags.String("vocab", "", "Path to vocab.json")
	flags.String("merges", "", "Path to merges.txt")
	flags.String("ranks", "", "Path to a .tiktoken rank file")
	flags.Bool("builtin", false, "Use the embedded GPT-2 tables")
	flags.String("pattern", "", "Custom pretokenizer regular expression")
	flags.Int("cache-size", 0, "Number of chunks to cache, 0 disables")
	flags.Int("max-tokens", 0, "Maximum number of tokens per input (default GPT2TOK_MAX_TOKENS)")
	flags.Bool("remote", false, "Send encode, decode and count to the server at GPT2TOK_HOST")
	rootCmd.MarkFlagsMutuallyExclusive("builtin", "ranks", "vocab", "remote")

	rootCmd.AddCommand(
		NewEncodeCmd(),
		NewDecodeCmd(),
		NewCountCmd(),
		NewInspectCmd(),
		NewVerifyCmd(),
		NewServeCmd(),
		NewEnvCmd(),
	)

	return rootCmd
}
