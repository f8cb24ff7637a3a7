package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [text]",
		Short: "Show how text is split into tokens",
		RunE:  inspectHandler,
	}
}

func inspectHandler(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	tok, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}
	defer tok.Close()

	ids, err := tok.Encode(text, maxTokens(cmd))
	if err != nil {
		return err
	}

	var data [][]string
	for _, id := range ids {
		symbols, err := tok.Token(id)
		if err != nil {
			return err
		}

		raw, err := tok.DecodeBytes([]int32{id})
		if err != nil {
			return err
		}

		data = append(data, []string{strconv.Itoa(int(id)), symbols, strconv.Quote(string(raw)), fmt.Sprintf("% x", raw)})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"ID", "TOKEN", "TEXT", "BYTES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d tokens, %d bytes, vocabulary of %d\n", len(ids), len(text), tok.VocabSize())
	return nil
}
