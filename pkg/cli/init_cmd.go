package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	internaldb "mdms/internal/db"
	"mdms/internal/service/metadata"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		force      bool
		tableBits  int
		columnBits int
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty metadata store",
		Long: "Create the relations of a metadata store. An existing store is only " +
			"wiped when --force is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := internaldb.OpenSQLite(a.dbPath, "write", 0)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			missing, err := internaldb.MissingRelations(ctx, db)
			if err != nil {
				return err
			}
			if len(missing) < len(internaldb.Relations) && !force {
				return fmt.Errorf("%s already holds a metadata store; use --force to wipe it", a.dbPath)
			}

			opts := a.storeOptions()
			if cmd.Flags().Changed("table-bits") || cmd.Flags().Changed("column-bits") {
				opts.TableBits, opts.ColumnBits = tableBits, columnBits
			}
			store, err := metadata.Initialize(ctx, db, opts)
			if err != nil {
				return err
			}
			settings, err := store.Settings(ctx)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), settings, []string{"key", "value"}, settingsRows(settings))
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Wipe an existing store")
	cmd.Flags().IntVar(&tableBits, "table-bits", 12, "Width of the table field of identifiers")
	cmd.Flags().IntVar(&columnBits, "column-bits", 12, "Width of the column field of identifiers")
	return cmd
}
