package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"mdms/internal/api"
	"mdms/internal/domain"
	"mdms/internal/service/metadata"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "schema", Short: "Manage schemas"}

	var description, path string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a schema under the lowest free schema number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				s, err := store.AddSchema(cmd.Context(), args[0], description, optionalLocation(path))
				if err != nil {
					return err
				}
				return a.renderTargets(out, store.Codec(), []domain.Target{s})
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "Schema description")
	add.Flags().StringVar(&path, "path", "", "Location path of the schema")

	list := &cobra.Command{
		Use:   "list",
		Short: "List schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				schemas, err := store.ListSchemas(cmd.Context())
				if err != nil {
					return err
				}
				return a.renderTargets(out, store.Codec(), toTargets(schemas))
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newTableCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "table", Short: "Manage tables"}

	var description, path string
	add := &cobra.Command{
		Use:   "add <schema> <name>",
		Short: "Add a table to a schema under the lowest free table number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				schema, err := lookupSchema(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				t, err := store.AddTable(cmd.Context(), schema.ID, args[1], description, optionalLocation(path))
				if err != nil {
					return err
				}
				return a.renderTargets(out, store.Codec(), []domain.Target{t})
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "Table description")
	add.Flags().StringVar(&path, "path", "", "Location path of the table, for example a CSV file")

	list := &cobra.Command{
		Use:   "list <schema>",
		Short: "List the tables of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				schema, err := lookupSchema(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				tables, err := store.ListTables(cmd.Context(), schema.ID)
				if err != nil {
					return err
				}
				return a.renderTargets(out, store.Codec(), toTargets(tables))
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newColumnCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "column", Short: "Manage columns"}

	var (
		description string
		index       int
	)
	add := &cobra.Command{
		Use:   "add <schema> <table> <name>",
		Short: "Add a column to a table",
		Long:  "Add a column to a table. The column's index within the table becomes its local number.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				ctx := cmd.Context()
				table, err := lookupTable(ctx, store, args[0], args[1])
				if err != nil {
					return err
				}
				idx := index
				if !cmd.Flags().Changed("index") {
					cols, err := store.ListColumns(ctx, table.ID)
					if err != nil {
						return err
					}
					idx = len(cols)
				}
				c, err := store.AddColumn(ctx, table.ID, args[2], description, idx, nil)
				if err != nil {
					return err
				}
				return a.renderTargets(out, store.Codec(), []domain.Target{c})
			})
		},
	}
	add.Flags().StringVar(&description, "description", "", "Column description")
	add.Flags().IntVar(&index, "index", 0, "Position of the column within its table (default: next position)")

	list := &cobra.Command{
		Use:   "list <schema> <table>",
		Short: "List the columns of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				table, err := lookupTable(cmd.Context(), store, args[0], args[1])
				if err != nil {
					return err
				}
				cols, err := store.ListColumns(cmd.Context(), table.ID)
				if err != nil {
					return err
				}
				return a.renderTargets(out, store.Codec(), toTargets(cols))
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the schema, table, and column hierarchy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				tree, err := store.Tree(cmd.Context())
				if err != nil {
					return err
				}
				if a.output == "json" || a.output == "yaml" {
					return a.render(out, treeToAPI(store.Codec(), tree), nil, nil)
				}
				for _, s := range tree {
					_, _ = fmt.Fprintf(out, "%s [%s]\n", s.Schema.Name, s.Schema.ID)
					for _, t := range s.Tables {
						_, _ = fmt.Fprintf(out, "  %s [%s]\n", t.Table.Name, t.Table.ID)
						for _, c := range t.Columns {
							_, _ = fmt.Fprintf(out, "    %s [%s]\n", c.Name, c.ID)
						}
					}
				}
				return nil
			})
		},
	}
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Show the target with the given identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				t, err := store.ResolveTarget(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.renderTargets(out, store.Codec(), []domain.Target{t})
			})
		},
	}
}

// === helpers ===

func optionalLocation(path string) *domain.Location {
	if path == "" {
		return nil
	}
	return domain.NewDefaultLocation(path)
}

func toTargets[T domain.Target](ts []T) []domain.Target {
	out := make([]domain.Target, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

// lookupSchema accepts a schema name or a schema identifier.
func lookupSchema(ctx context.Context, store *metadata.MetadataStore, ref string) (*domain.Schema, error) {
	if id, err := domain.ParseID(ref); err == nil && store.Codec().KindOf(id) == domain.KindSchema {
		if t, err := store.ResolveTarget(ctx, id); err == nil {
			return t.(*domain.Schema), nil
		}
	}
	return store.GetSchemaByName(ctx, ref)
}

func lookupTable(ctx context.Context, store *metadata.MetadataStore, schemaRef, tableName string) (*domain.Table, error) {
	schema, err := lookupSchema(ctx, store, schemaRef)
	if err != nil {
		return nil, err
	}
	return store.GetTableByName(ctx, schema.ID, tableName)
}

func (a *app) renderTargets(out io.Writer, codec domain.IDCodec, targets []domain.Target) error {
	views := api.TargetsToAPI(codec, targets)
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		loc := ""
		if v.Location != nil {
			loc = v.Location.Type + " " + v.Location.Properties[domain.LocationPropPath]
			if idx, ok := v.Location.Properties[domain.LocationPropIndex]; ok {
				loc += "#" + idx
			}
		}
		rows = append(rows, []string{v.ID.String(), v.Kind, v.Name, v.Address, loc})
	}
	return a.render(out, views, []string{"id", "kind", "name", "address", "location"}, rows)
}

type tableTree struct {
	api.TargetView `yaml:",inline"`
	Columns        []api.TargetView `json:"columns" yaml:"columns"`
}

type schemaTree struct {
	api.TargetView `yaml:",inline"`
	Tables         []tableTree `json:"tables" yaml:"tables"`
}

func treeToAPI(codec domain.IDCodec, tree []metadata.SchemaNode) []schemaTree {
	out := make([]schemaTree, 0, len(tree))
	for _, s := range tree {
		node := schemaTree{TargetView: api.TargetToAPI(codec, s.Schema), Tables: []tableTree{}}
		for _, t := range s.Tables {
			node.Tables = append(node.Tables, tableTree{
				TargetView: api.TargetToAPI(codec, t.Table),
				Columns:    api.TargetsToAPI(codec, t.Columns),
			})
		}
		out = append(out, node)
	}
	return out
}

func settingsRows(settings map[string]string) [][]string {
	rows := make([][]string, 0, len(settings))
	for _, k := range slices.Sorted(maps.Keys(settings)) {
		rows = append(rows, []string{k, settings[k]})
	}
	return rows
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }
