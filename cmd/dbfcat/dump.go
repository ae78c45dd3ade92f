package main

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	godbf "github.com/Ulysses-Xu/go-xbase"
)

func newDumpCmd(a *app) *cobra.Command {
	var limit int
	var noHeader bool

	cmd := &cobra.Command{
		Use:   "dump <table.dbf>",
		Short: "Print the active records of a table, one per line",
		Long: `Print the active records of a table, one per line. Deleted records are
skipped. Null values print as empty columns.

Example:
  dbfcat dump --limit 10 --separator , orders.dbf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			rd, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, rd.Close()) }()

			out := bufio.NewWriter(cmd.OutOrStdout())
			defer func() { err = multierr.Append(err, out.Flush()) }()

			sep := a.config.Separator
			if !noHeader {
				names := make([]string, len(rd.Fields()))
				for i, f := range rd.Fields() {
					names[i] = f.Name()
				}
				out.WriteString(strings.Join(names, sep) + "\n")
			}

			n := 0
			for limit <= 0 || n < limit {
				rec, err := rd.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				out.WriteString(formatRecord(rec, sep, a.config.TrimSpaces) + "\n")
				n++
			}
			a.logger.Debug("dump finished", zap.Int("records", n))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many records (0 for all)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "omit the line of field names")
	return cmd
}

func formatRecord(rec godbf.Record, sep string, trim bool) string {
	cols := make([]string, len(rec))
	for i, v := range rec {
		s := v.String()
		if trim && v.Kind() == godbf.KindText {
			s = strings.TrimRight(s, " ")
		}
		cols[i] = s
	}
	return strings.Join(cols, sep)
}
