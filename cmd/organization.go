package cmd

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const timeFormat = "2006-01-02 15:04:05"

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "organization commands",
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "group commands",
}

func init() {
	rootCmd.AddCommand(orgCmd)
	orgCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	orgCmd.AddCommand(createOrgCmd())
	orgCmd.AddCommand(listOrgCmd())

	rootCmd.AddCommand(groupCmd)
	groupCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	groupCmd.AddCommand(createGroupCmd())
	groupCmd.AddCommand(listGroupCmd())
}

func createOrgCmd() *cobra.Command {
	var name string

	var required = []string{"name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create an organization",
		Example: "kb org create -n <name>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			org, err := newClient().CreateOrganization(cmd.Context(), name)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("organization created with id: %s", org.ID)
		},
	}

	command.Flags().StringVarP(&name, "name", "n", "", "organization name (required)")

	return command
}

func listOrgCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "list",
		Short: "list organizations",
		Run: func(cmd *cobra.Command, args []string) {
			orgs, err := newClient().ListOrganizations(cmd.Context())
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Name", "Owner", "Created At"})
			for _, org := range orgs {
				table.Append([]string{org.ID, org.Name, org.OwnerID, org.CreatedAt.Format(timeFormat)})
			}
			table.Render()
		},
	}

	return command
}

func createGroupCmd() *cobra.Command {
	var orgID string
	var name string

	var required = []string{"org-id", "name"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a group",
		Example: "kb group create -o <org-id> -n <name>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			group, err := newClient().CreateGroup(cmd.Context(), orgID, name)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("group created with id: %s", group.ID)
		},
	}

	command.Flags().StringVarP(&orgID, "org-id", "o", "", "organization id (required)")
	command.Flags().StringVarP(&name, "name", "n", "", "group name (required)")
	command.Flags().SortFlags = false

	return command
}

func listGroupCmd() *cobra.Command {
	var orgID string

	var required = []string{"org-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the groups of an organization",
		Example: "kb group list -o <org-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			groups, err := newClient().ListGroups(cmd.Context(), orgID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Name", "Created At"})
			for _, group := range groups {
				table.Append([]string{group.ID, group.Name, group.CreatedAt.Format(timeFormat)})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&orgID, "org-id", "o", "", "organization id (required)")

	return command
}
