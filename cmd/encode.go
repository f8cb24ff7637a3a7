package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func NewEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode [text]",
		Short: "Print the token ids of text",
		RunE:  encodeHandler,
	}

	cmd.Flags().Bool("json", false, "Print ids as a JSON array")
	return cmd
}

func encodeHandler(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	codec, err := openCodec(cmd)
	if err != nil {
		return err
	}
	defer codec.Close()

	ids, err := codec.Encode(cmd.Context(), text, maxTokens(cmd))
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
	}

	fmt.Fprintln(cmd.OutOrStdout(), formatIDs(ids))
	return nil
}

func formatIDs(ids []int32) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(int(id))
	}
	return strings.Join(s, " ")
}

func NewDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [ids...]",
		Short: "Print the text token ids stand for",
		Long:  "Print the text token ids stand for. Ids are separated by spaces, commas or brackets, so the output of encode --json is accepted.",
		RunE:  decodeHandler,
	}
}

func parseIDs(s string) ([]int32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '[' || r == ']' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	ids := make([]int32, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q", f)
		}
		ids = append(ids, int32(n))
	}
	return ids, nil
}

func decodeHandler(cmd *cobra.Command, args []string) error {
	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	ids, err := parseIDs(input)
	if err != nil {
		return err
	}

	codec, err := openCodec(cmd)
	if err != nil {
		return err
	}
	defer codec.Close()

	b, err := codec.DecodeBytes(cmd.Context(), ids)
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(b)
	return err
}

