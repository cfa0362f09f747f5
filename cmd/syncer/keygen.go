package main

import (
	"fmt"

	"github.com/jrsteele09/go-ledger-sync/token"
	"github.com/spf13/cobra"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new TOKEN_ENCRYPTION_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := token.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
