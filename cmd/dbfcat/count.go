package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type tableCount struct {
	active uint32
	stored uint32
}

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count <table.dbf>...",
		Short: "Count active records, reading several tables in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := a.countAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			for i, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\n", name, counts[i].active, counts[i].stored)
			}
			return nil
		},
	}
}

// countAll reads every table in its own goroutine; each goroutine owns its Reader.
func (a *app) countAll(ctx context.Context, fileNames []string) ([]tableCount, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	counts := make([]tableCount, len(fileNames))
	group, ctx := errgroup.WithContext(ctx)
	for i, name := range fileNames {
		i, name := i, name
		group.Go(func() error {
			c, err := a.count(ctx, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			counts[i] = c
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (a *app) count(ctx context.Context, fileName string) (tableCount, error) {
	rd, err := a.open(fileName)
	if err != nil {
		return tableCount{}, err
	}
	defer rd.Close()

	c := tableCount{stored: rd.NumRecords()}
	for {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		_, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		if err != nil {
			return c, err
		}
		c.active++
	}
}
