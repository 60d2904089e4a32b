package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/emrgen/knowledge/internal/assistant"
	"github.com/emrgen/knowledge/internal/editor"
	"github.com/emrgen/knowledge/internal/importer"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(mcpCmd())
}

func graphCmd() *cobra.Command {
	var orgID string
	var asJSON bool

	var required = []string{"org-id"}

	command := &cobra.Command{
		Use:     "graph",
		Short:   "show the link graph of an organization",
		Example: "kb graph -o <org-id> --json",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			graph, err := newClient().ProjectGraph(cmd.Context(), orgID)
			if err != nil {
				logrus.Error(err)
				return
			}

			if asJSON {
				data, err := json.MarshalIndent(graph, "", "  ")
				if err != nil {
					logrus.Error(err)
					return
				}
				fmt.Println(string(data))
				return
			}

			names := make(map[string]string, len(graph.Nodes))
			for _, node := range graph.Nodes {
				names[node.ID] = node.Name
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Source", "Target"})
			for _, edge := range graph.Edges {
				table.Append([]string{names[edge.Source], names[edge.Target]})
			}
			table.SetFooter([]string{strconv.Itoa(len(graph.Nodes)) + " entries", strconv.Itoa(len(graph.Edges)) + " links"})
			table.Render()
		},
	}

	command.Flags().StringVarP(&orgID, "org-id", "o", "", "organization id (required)")
	command.Flags().BoolVar(&asJSON, "json", false, "print nodes and edges as json")
	command.Flags().SortFlags = false

	return command
}

func editCmd() *cobra.Command {
	var entryID string

	var required = []string{"entry-id"}

	command := &cobra.Command{
		Use:   "edit",
		Short: "edit an entry in the terminal",
		Long: `edit the content of an entry in the terminal.
Type {{ to pick an entry to link to, ctrl+s saves and ctrl+q quits.`,
		Example: "kb edit -e <entry-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			client := newClient()
			entry, err := client.GetEntry(cmd.Context(), entryID)
			if err != nil {
				logrus.Error(err)
				return
			}

			candidates, err := client.ListCandidates(cmd.Context(), entry.OrganizationID, entry.ID)
			if err != nil {
				logrus.Error(err)
				return
			}

			saved, err := editor.Run(client, entry, candidates)
			if err != nil {
				logrus.Error(err)
				return
			}

			if saved.Version != entry.Version {
				color.Green("%s saved as version %d", saved.Name, saved.Version)
			}
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")

	return command
}

func importCmd() *cobra.Command {
	var orgID string
	var dir string
	var pattern string
	var group string
	var overwrite bool

	var required = []string{"org-id", "dir"}

	command := &cobra.Command{
		Use:   "import",
		Short: "import a directory of markdown files",
		Long: `import a directory of markdown files, one entry per file.
Files are grouped by their top-level directory unless their front matter names a group.
[[Name]] links between imported files are resolved once every file is imported.`,
		Example: "kb import -o <org-id> -d ./notes -p '**/*.md' -g Inbox",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			report, err := importer.New(newClient()).Import(cmd.Context(), os.DirFS(dir), importer.Options{
				OrganizationID: orgID,
				Pattern:        pattern,
				DefaultGroup:   group,
				Overwrite:      overwrite,
			})
			if report != nil {
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"Entry", "Status"})
				for _, name := range report.Created {
					table.Append([]string{name, "created"})
				}
				for _, name := range report.Updated {
					table.Append([]string{name, "updated"})
				}
				for _, name := range report.Skipped {
					table.Append([]string{name, "skipped"})
				}
				table.Render()
				printField("Relinked", strconv.Itoa(report.Relinked))
			}
			if err != nil {
				logrus.Error(err)
			}
		},
	}

	command.Flags().StringVarP(&orgID, "org-id", "o", "", "organization id (required)")
	command.Flags().StringVarP(&dir, "dir", "d", "", "directory to import (required)")
	command.Flags().StringVarP(&pattern, "pattern", "p", importer.DefaultPattern, "files to import")
	command.Flags().StringVarP(&group, "group", "g", "", "group of the files at the top of the directory")
	command.Flags().BoolVar(&overwrite, "overwrite", false, "replace the content of existing entries")
	command.Flags().SortFlags = false

	return command
}

func mcpCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "mcp",
		Short: "serve the knowledge base to assistants over MCP on stdio",
		Run: func(cmd *cobra.Command, args []string) {
			logrus.SetOutput(os.Stderr)
			if err := assistant.Serve(newClient(), version); err != nil {
				logrus.Fatalf("mcp: %v", err)
			}
		},
	}

	return command
}
