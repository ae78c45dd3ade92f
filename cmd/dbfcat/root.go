package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	godbf "github.com/Ulysses-Xu/go-xbase"
	"github.com/Ulysses-Xu/go-xbase/internal/config"
)

// app is what every subcommand needs once flags and the config file are resolved.
type app struct {
	config  *config.Config
	logger  *zap.Logger
	charset godbf.Charset
}

func (a *app) open(fileName string) (*godbf.Reader, error) {
	opts := []godbf.Option{godbf.WithLogger(a.logger.With(zap.String("table", fileName)))}
	if a.charset != nil {
		opts = append(opts, godbf.WithCharset(a.charset))
	}
	return godbf.Open(fileName, opts...)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dbfcat",
		Short: "Inspect dBase and Visual FoxPro tables",
		Long: `dbfcat prints the schema and records of DBF tables. Memo fields of
Visual FoxPro tables are read from the .fpt file next to the table.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configPath != "" {
				loaded, err := config.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			flags := cmd.Flags()
			if flags.Changed("charset") {
				cfg.Charset, _ = flags.GetString("charset")
			}
			if flags.Changed("log-level") {
				cfg.LogLevel, _ = flags.GetString("log-level")
			}
			if flags.Changed("separator") {
				cfg.Separator, _ = flags.GetString("separator")
			}
			if flags.Changed("trim") {
				cfg.TrimSpaces, _ = flags.GetBool("trim")
			}

			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			a.config, a.logger = cfg, logger
			if cfg.Charset != "" {
				if a.charset, err = godbf.CharsetByName(cfg.Charset); err != nil {
					return fmt.Errorf("charset: %w", err)
				}
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.String("charset", "", "charset for text fields, overriding the table's language driver")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("separator", "\t", "column separator for dump")
	pf.Bool("trim", true, "trim trailing spaces of text fields")

	rootCmd.AddCommand(newSchemaCmd(a), newDumpCmd(a), newCountCmd(a))
	return rootCmd
}
