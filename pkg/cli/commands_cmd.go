package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandEntry describes one leaf command of the CLI.
type CommandEntry struct {
	Path  string      `json:"path" yaml:"path"`
	Short string      `json:"short" yaml:"short"`
	Args  string      `json:"args,omitempty" yaml:"args,omitempty"`
	Flags []FlagEntry `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// FlagEntry describes one flag of a command.
type FlagEntry struct {
	Name     string `json:"name" yaml:"name"`
	Short    string `json:"shorthand,omitempty" yaml:"shorthand,omitempty"`
	Type     string `json:"type" yaml:"type"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
	Usage    string `json:"usage,omitempty" yaml:"usage,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

func newCommandsCmd(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List every command with its arguments and flags",
		Example: `  mdms commands
  mdms commands --filter constraint -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := walkCommands(cmd.Root(), "")
			if filter != "" {
				needle := strings.ToLower(filter)
				var filtered []CommandEntry
				for _, e := range entries {
					if strings.Contains(strings.ToLower(e.Path+" "+e.Short), needle) {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{strings.TrimSpace(e.Path + " " + e.Args), e.Short})
			}
			return a.render(cmd.OutOrStdout(), entries, []string{"command", "description"}, rows)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Substring search across command paths and descriptions")
	return cmd
}

// walkCommands collects the leaf commands below cmd.
func walkCommands(cmd *cobra.Command, parentPath string) []CommandEntry {
	var entries []CommandEntry
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		path := strings.TrimSpace(parentPath + " " + child.Name())
		if child.HasSubCommands() {
			entries = append(entries, walkCommands(child, path)...)
			continue
		}
		var args string
		if fields := strings.Fields(child.Use); len(fields) > 1 {
			args = strings.Join(fields[1:], " ")
		}
		entries = append(entries, CommandEntry{
			Path:  path,
			Short: child.Short,
			Args:  args,
			Flags: collectFlags(child),
		})
	}
	return entries
}

// collectFlags lists the flags of cmd, help excluded.
func collectFlags(cmd *cobra.Command) []FlagEntry {
	var flags []FlagEntry
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		entry := FlagEntry{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		}
		if ann, ok := f.Annotations[cobra.BashCompOneRequiredFlag]; ok && len(ann) > 0 && ann[0] == "true" {
			entry.Required = true
		}
		flags = append(flags, entry)
	})
	return flags
}
