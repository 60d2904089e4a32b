package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	knowledge "github.com/emrgen/knowledge"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "entry commands",
}

func init() {
	rootCmd.AddCommand(entryCmd)
	entryCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	entryCmd.AddCommand(createEntryCmd())
	entryCmd.AddCommand(getEntryCmd())
	entryCmd.AddCommand(listEntryCmd())
	entryCmd.AddCommand(updateEntryCmd())
	entryCmd.AddCommand(deleteEntryCmd())
	entryCmd.AddCommand(backlinksCmd())
	entryCmd.AddCommand(listBackupsCmd())
	entryCmd.AddCommand(restoreBackupCmd())
	entryCmd.AddCommand(attachFileCmd())
	entryCmd.AddCommand(downloadFileCmd())
}

func createEntryCmd() *cobra.Command {
	var groupID string
	var name string
	var content string
	var contentFile string

	var required = []string{"group-id", "name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create an entry",
		Long:    `create an entry; [[Name]] tokens in the content link to the entries of the organization with that name`,
		Example: "kb entry create -g <group-id> -n <name> -c <content>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					logrus.Error(err)
					return
				}
				content = string(data)
			}

			entry, err := newClient().CreateEntry(cmd.Context(), groupID, name, content)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("entry created with id: %s", entry.ID)
			printEntries([]*service.Entry{entry})
		},
	}

	command.Flags().StringVarP(&groupID, "group-id", "g", "", "group id (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "entry name (required)")
	command.Flags().StringVarP(&content, "content", "c", "", "content of the entry")
	command.Flags().StringVarP(&contentFile, "file", "f", "", "read the content from a file")
	command.Flags().SortFlags = false

	return command
}

func getEntryCmd() *cobra.Command {
	var entryID string
	var version int64
	var render bool

	var required = []string{"entry-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get an entry",
		Example: "kb entry get -e <entry-id> -v <version> --render",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			client := newClient()

			// return from backup if version is provided
			if version != -1 {
				backup, err := client.GetEntryBackup(cmd.Context(), entryID, version)
				if err != nil {
					logrus.Error(err)
					return
				}

				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"ID", "Version", "Updated By", "Created At"})
				table.Append([]string{backup.EntryID, strconv.FormatInt(backup.Version, 10), backup.UpdatedBy, backup.CreatedAt.Format(timeFormat)})
				table.Render()
				printField("Name", backup.Name)
				printContent(backup.Content, render)

				return
			}

			entry, err := client.GetEntry(cmd.Context(), entryID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printEntries([]*service.Entry{entry})
			printField("Name", entry.Name)
			printField("Links", strings.Join(entry.Links, ", "))
			if entry.FileName != "" {
				printField("File", entry.FileName)
			}
			printContent(entry.Content, render)
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")
	command.Flags().Int64VarP(&version, "version", "v", -1, "version of the entry")
	command.Flags().BoolVar(&render, "render", false, "render the content as markdown")
	command.Flags().SortFlags = false

	return command
}

func listEntryCmd() *cobra.Command {
	var groupID string

	var required = []string{"group-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the entries of a group",
		Example: "kb entry list -g <group-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			entries, err := newClient().ListEntries(cmd.Context(), groupID)
			if err != nil {
				logrus.Error(err)
				return
			}

			printEntries(entries)
		},
	}

	command.Flags().StringVarP(&groupID, "group-id", "g", "", "group id (required)")

	return command
}

func updateEntryCmd() *cobra.Command {
	var entryID string
	var name string
	var content string
	var contentFile string
	var version int64

	var required = []string{"entry-id"}

	command := &cobra.Command{
		Use:   "update",
		Short: "rename an entry or replace its content",
		Long: `rename an entry or replace its content.
Renaming rewrites the [[Name]] links of every entry that references it.
The version must be the current version plus one; -1 overwrites without a check.`,
		Example: "kb entry update -e <entry-id> -n <name> -c <content> -v <next-version>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			req := service.UpdateEntryRequest{Version: &version}
			if cmd.Flag("name").Changed {
				req.Name = &name
			}
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					logrus.Error(err)
					return
				}
				content = string(data)
				req.Content = &content
			} else if cmd.Flag("content").Changed {
				req.Content = &content
			}
			if req.Name == nil && req.Content == nil {
				color.Red("missing: --name or --content")
				return
			}

			entry, err := newClient().UpdateEntry(cmd.Context(), entryID, req)
			if knowledge.IsConflict(err) {
				color.Red("version mismatch, fetch the entry and retry with its version plus one")
				return
			}
			if err != nil {
				logrus.Error(err)
				return
			}

			printEntries([]*service.Entry{entry})
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "new name")
	command.Flags().StringVarP(&content, "content", "c", "", "new content")
	command.Flags().StringVarP(&contentFile, "file", "f", "", "read the new content from a file")
	command.Flags().Int64VarP(&version, "version", "v", service.OverwriteVersion, "next version")
	command.Flags().SortFlags = false

	return command
}

func deleteEntryCmd() *cobra.Command {
	var entryID string

	var required = []string{"entry-id"}

	command := &cobra.Command{
		Use:     "delete",
		Short:   "delete an entry and the links to it",
		Example: "kb entry delete -e <entry-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if err := newClient().DeleteEntry(cmd.Context(), entryID); err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("entry deleted: %s", entryID)
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")

	return command
}

func backlinksCmd() *cobra.Command {
	var entryID string

	var required = []string{"entry-id"}

	command := &cobra.Command{
		Use:     "backlinks",
		Short:   "list the entries linking to an entry",
		Example: "kb entry backlinks -e <entry-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			backlinks, err := newClient().ListBacklinks(cmd.Context(), entryID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Name"})
			for _, link := range backlinks {
				table.Append([]string{link.ID, link.Name})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")

	return command
}

func listBackupsCmd() *cobra.Command {
	var entryID string

	var required = []string{"entry-id"}

	command := &cobra.Command{
		Use:     "versions",
		Short:   "list the earlier versions of an entry",
		Example: "kb entry versions -e <entry-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			backups, err := newClient().ListEntryBackups(cmd.Context(), entryID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Version", "Name", "Updated By", "Created At"})
			for _, b := range backups {
				table.Append([]string{strconv.FormatInt(b.Version, 10), b.Name, b.UpdatedBy, b.CreatedAt.Format(timeFormat)})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")

	return command
}

func restoreBackupCmd() *cobra.Command {
	var entryID string
	var version int64

	var required = []string{"entry-id", "version"}

	command := &cobra.Command{
		Use:     "restore",
		Short:   "restore an earlier version of an entry",
		Example: "kb entry restore -e <entry-id> -v <version>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			entry, err := newClient().RestoreEntryBackup(cmd.Context(), entryID, version)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("restored version %d as version %d", version, entry.Version)
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")
	command.Flags().Int64VarP(&version, "version", "v", 0, "version to restore (required)")
	command.Flags().SortFlags = false

	return command
}

func attachFileCmd() *cobra.Command {
	var entryID string
	var path string

	var required = []string{"entry-id", "path"}

	command := &cobra.Command{
		Use:     "attach",
		Short:   "attach a file to an entry, replacing the previous one",
		Example: "kb entry attach -e <entry-id> -p <path>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			file, err := os.Open(path)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer file.Close()

			entry, err := newClient().AttachFile(cmd.Context(), entryID, filepath.Base(path), file)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("attached %s to %s", entry.FileName, entry.ID)
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")
	command.Flags().StringVarP(&path, "path", "p", "", "file to attach (required)")
	command.Flags().SortFlags = false

	return command
}

func downloadFileCmd() *cobra.Command {
	var entryID string
	var out string

	var required = []string{"entry-id"}

	command := &cobra.Command{
		Use:     "download",
		Short:   "download the file attached to an entry",
		Example: "kb entry download -e <entry-id> -o <dir>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			r, name, err := newClient().DownloadFile(cmd.Context(), entryID)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer r.Close()

			target := filepath.Join(out, filepath.Base(name))
			file, err := os.Create(target)
			if err != nil {
				logrus.Error(err)
				return
			}
			defer file.Close()

			if _, err := io.Copy(file, r); err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("saved %s", target)
		},
	}

	command.Flags().StringVarP(&entryID, "entry-id", "e", "", "entry id (required)")
	command.Flags().StringVarP(&out, "out", "o", ".", "directory to save the file in")
	command.Flags().SortFlags = false

	return command
}

func printEntries(entries []*service.Entry) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Version", "Links", "Owner", "Updated At"})
	for _, e := range entries {
		table.Append([]string{e.ID, e.Name, strconv.FormatInt(e.Version, 10), strconv.Itoa(len(e.Links)), e.OwnerID, e.UpdatedAt.Format(timeFormat)})
	}
	table.Render()
}

func printContent(content string, render bool) {
	if !render {
		printField("Content", content)
		return
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		logrus.Error(err)
		return
	}

	out, err := renderer.Render(content)
	if err != nil {
		logrus.Error(err)
		return
	}
	fmt.Print(out)
}

func printField(label, value string) {
	color.Set(color.FgCyan)
	fmt.Print(label)
	color.Unset()
	fmt.Printf(": %s\n", value)
}

// checkMissingFlags checks if the required flags are set and returns true if any is missing
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			color.Green("provided: %s\n", strings.Join(providedFlags, " "))
		}

		cmd.Println("")
		_ = cmd.Usage()

		return true
	}

	return false
}
