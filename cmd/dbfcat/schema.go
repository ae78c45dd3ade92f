package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table.dbf>",
		Short: "Print the header and field list of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rd, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer rd.Close()
			fmt.Fprint(cmd.OutOrStdout(), rd.Header())
			return nil
		},
	}
}
