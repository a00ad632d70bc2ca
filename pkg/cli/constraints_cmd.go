package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mdms/internal/service/metadata"
)

func newConstraintsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "constraints", Short: "Write profiling results"}

	var collectionID int64
	importCmd := &cobra.Command{
		Use:   "import <file.yaml|->",
		Short: "Import constraints from a YAML file",
		Long: `Import constraints from a YAML file, or from stdin with "-".

The file either names an existing collection or describes one to create:

  collection:
    name: profiling-run-1
    scope: [16777215]
  constraints:
    - kind: functional_dependency
      columns: [1, 2]
      column: 3
    - kind: type
      column: 3
      type: INTEGER`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readImportFile(cmd, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("collection") {
				req.CollectionID = collectionID
				req.Collection = nil
			}
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				res, err := store.Import(cmd.Context(), *req)
				if err != nil {
					return err
				}
				if a.output == "json" || a.output == "yaml" {
					return a.render(out, res, nil, nil)
				}
				_, _ = fmt.Fprintf(out, "imported %d constraints into collection %d\n", len(res.ConstraintIDs), res.CollectionID)
				return nil
			})
		},
	}
	importCmd.Flags().Int64Var(&collectionID, "collection", 0, "Existing collection to import into (overrides the file)")

	cmd.AddCommand(importCmd)
	return cmd
}

func readImportFile(cmd *cobra.Command, path string) (*metadata.ImportRequest, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	var req metadata.ImportRequest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &req, nil
}
