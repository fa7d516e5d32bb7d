package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWipeCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete the persisted store so the next sync reloads everything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.wipeStore(cmd.Context(), all); err != nil {
				return err
			}
			if all {
				fmt.Fprintln(cmd.OutOrStdout(), "wiped all persisted stores")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "wiped persisted store")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "delete every persisted store, not only the configured one")
	return cmd
}
