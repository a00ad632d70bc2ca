// Package cli implements the mdms command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mdms/internal/config"
	internaldb "mdms/internal/db"
	"mdms/internal/service/metadata"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = PrintJSON(os.Stdout, map[string]interface{}{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// app holds the state resolved from flags and configuration.
type app struct {
	cfg      *config.Config
	dbPath   string
	output   string
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "mdms",
		Short:         "Metadata store CLI",
		Long:          "Command-line interface for a metadata store of schemas, tables, columns, and profiling constraints.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			a.cfg = cfg

			// Apply precedence: flag > env/file > default
			if !cmd.Flags().Changed("db") {
				a.dbPath = cfg.MetaDBPath
			}
			if !cmd.Flags().Changed("log-level") {
				a.logLevel = cfg.LogLevel
			}
			if err := validateOutputFormat(a.output); err != nil {
				return err
			}

			lc := &config.Config{LogLevel: a.logLevel}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lc.SlogLevel()}))
			for _, w := range cfg.Warnings {
				a.logger.Warn(w)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to the SQLite store (default from META_DB_PATH)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newInitCmd(a))
	rootCmd.AddCommand(newSchemaCmd(a))
	rootCmd.AddCommand(newTableCmd(a))
	rootCmd.AddCommand(newColumnCmd(a))
	rootCmd.AddCommand(newTreeCmd(a))
	rootCmd.AddCommand(newResolveCmd(a))
	rootCmd.AddCommand(newIDCmd(a))
	rootCmd.AddCommand(newCollectionCmd(a))
	rootCmd.AddCommand(newConstraintsCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newCommandsCmd(a))

	return rootCmd
}

func (a *app) storeOptions() metadata.Options {
	return metadata.Options{
		CacheSize:  a.cfg.CacheSize,
		BatchSize:  a.cfg.BatchSize,
		TableBits:  a.cfg.TableBits,
		ColumnBits: a.cfg.ColumnBits,
		Logger:     a.logger,
	}
}

// openStore opens an initialised store. The returned func flushes pending
// writes and closes the database.
func (a *app) openStore(ctx context.Context) (*metadata.MetadataStore, func() error, error) {
	db, err := internaldb.OpenSQLite(a.dbPath, "write", 0)
	if err != nil {
		return nil, nil, err
	}
	store, err := metadata.Open(ctx, db, a.storeOptions())
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("%s: %w (run 'mdms init' first)", a.dbPath, err)
	}
	closeFn := func() error {
		err := store.Close(ctx)
		if cerr := db.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return store, closeFn, nil
}

// withStore runs fn against an opened store and closes it afterwards.
func (a *app) withStore(cmd *cobra.Command, fn func(store *metadata.MetadataStore, out io.Writer) error) (err error) {
	store, closeFn, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); err == nil {
			err = cerr
		}
	}()
	return fn(store, cmd.OutOrStdout())
}
