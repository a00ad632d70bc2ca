package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mdms/internal/api"
	"mdms/internal/domain"
	"mdms/internal/service/metadata"
)

func newCollectionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "collection", Short: "Manage constraint collections"}

	var (
		description string
		scope       []string
	)
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a constraint collection over a scope of targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]domain.ID, 0, len(scope))
			for _, s := range scope {
				id, err := domain.ParseID(strings.TrimSpace(s))
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				c, err := store.CreateCollection(cmd.Context(), domain.CreateCollectionRequest{
					Name:        args[0],
					Description: description,
					Scope:       ids,
				})
				if err != nil {
					return err
				}
				return a.renderCollections(out, []api.CollectionView{api.CollectionToAPI(*c)})
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "Collection description")
	create.Flags().StringSliceVar(&scope, "scope", nil, "Target identifiers in the scope (repeatable or comma separated)")
	_ = create.MarkFlagRequired("scope")

	var maxResults int
	var pageToken string
	list := &cobra.Command{
		Use:   "list",
		Short: "List constraint collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				page := domain.PageRequest{MaxResults: maxResults, PageToken: pageToken}
				cs, total, err := store.ListCollections(cmd.Context(), page)
				if err != nil {
					return err
				}
				views := make([]api.CollectionView, 0, len(cs))
				for _, c := range cs {
					views = append(views, api.CollectionToAPI(c))
				}
				if a.output == "json" || a.output == "yaml" {
					return a.render(out, api.ListResponse[api.CollectionView]{
						Items:         views,
						Total:         total,
						NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
					}, nil, nil)
				}
				return a.renderCollections(out, views)
			})
		},
	}
	list.Flags().IntVar(&maxResults, "max-results", 0, "Page size")
	list.Flags().StringVar(&pageToken, "page-token", "", "Token of the page to show")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a collection with its scope and constraints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return domain.ErrValidation("invalid collection id %q", args[0])
			}
			return a.withStore(cmd, func(store *metadata.MetadataStore, out io.Writer) error {
				detail, err := store.GetCollection(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := api.CollectionDetailToAPI(store.Codec(), detail)
				if a.output == "json" || a.output == "yaml" {
					return a.render(out, view, nil, nil)
				}
				_, _ = fmt.Fprintf(out, "Collection %d: %s\n", view.ID, view.Name)
				if view.Description != "" {
					_, _ = fmt.Fprintf(out, "%s\n", view.Description)
				}
				_, _ = fmt.Fprintln(out, "\nScope:")
				if err := a.renderTargets(out, store.Codec(), detail.Targets); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, "\nConstraints:")
				PrintTable(out, []string{"id", "kind", "targets", "value"}, constraintRows(view.Constraints))
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, show)
	return cmd
}

func (a *app) renderCollections(out io.Writer, views []api.CollectionView) error {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			formatInt(v.ID), v.Name, joinIDs(v.Scope), v.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return a.render(out, views, []string{"id", "name", "scope", "created"}, rows)
}

func constraintRows(docs []domain.ConstraintDoc) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		var targets, value string
		switch d.Kind {
		case domain.KindFunctionalDependency:
			targets = joinIDs(d.Columns) + " -> " + d.Column.String()
		case domain.KindInclusionDependency:
			targets = joinIDs(d.Columns) + " <= " + joinIDs(d.Referenced)
		case domain.KindUniqueColumnCombination:
			targets = joinIDs(d.Columns)
		case domain.KindDistinctValueCount:
			targets, value = d.Column.String(), formatInt(d.Count)
		case domain.KindDistinctValueOverlap:
			targets, value = joinIDs(d.Columns), formatInt(d.Count)
		case domain.KindType:
			targets, value = d.Column.String(), d.Type
		case domain.KindTupleCount:
			targets, value = d.Table.String(), formatInt(d.Count)
		}
		rows = append(rows, []string{formatInt(d.ID), string(d.Kind), targets, value})
	}
	return rows
}

func joinIDs(ids []domain.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
