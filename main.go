package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gpt2tok/gpt2tok/cmd"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
