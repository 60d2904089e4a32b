package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "linked knowledge base",
	Example: `kb serve
kb context set -s http://localhost:4020 -u <user-id> -r member
kb org create -n <name>
kb group create -o <org-id> -n <name>
kb entry create -g <group-id> -n <name> -c "see [[Other]]"
kb entry update -e <entry-id> -n <new-name> -v <next-version>
kb entry backlinks -e <entry-id>
kb graph -o <org-id>
kb edit -e <entry-id>
kb import -o <org-id> -d <dir>`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(contextCommand)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
