package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count [files...]",
		Short: "Count the tokens of files or stdin",
		RunE:  countHandler,
	}
}

func countFile(ctx context.Context, codec textCodec, path string, limit int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bts, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}

	ids, err := codec.Encode(ctx, string(bts), limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return len(ids), nil
}

func countHandler(cmd *cobra.Command, args []string) error {
	codec, err := openCodec(cmd)
	if err != nil {
		return err
	}
	defer codec.Close()

	limit := maxTokens(cmd)
	if len(args) == 0 {
		text, err := readInput(cmd, nil)
		if err != nil {
			return err
		}

		ids, err := codec.Encode(cmd.Context(), text, limit)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), len(ids))
		return nil
	}

	counts := make([]int, len(args))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range args {
		g.Go(func() error {
			n, err := countFile(cmd.Context(), codec, path, limit)
			counts[i] = n
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var total int
	for i, path := range args {
		fmt.Fprintf(cmd.OutOrStdout(), "%8d %s\n", counts[i], path)
		total += counts[i]
	}

	if len(args) > 1 {
		fmt.Fprintf(cmd.OutOrStdout(), "%8d total\n", total)
	}
	return nil
}
