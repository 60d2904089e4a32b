package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	knowledge "github.com/emrgen/knowledge"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "knowledge"
	configDir      = "./.tmp"
	defaultServer  = "http://localhost:4020"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context is who the CLI talks to and as whom.
type Context struct {
	Server string   `mapstructure:"server"`
	User   string   `mapstructure:"user"`
	Roles  []string `mapstructure:"roles"`
}

// saves the context info to the config file in ./.tmp
func setContextCommand() *cobra.Command {
	var server string
	var user string
	var roles []string

	var required = []string{"user"}

	command := &cobra.Command{
		Use:     "set",
		Short:   "set context",
		Example: "kb context set -s http://localhost:4020 -u <user-id> -r member",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			if err := writeContext(Context{Server: server, User: user, Roles: roles}); err != nil {
				color.Red("error writing config file: %v", err)
				return
			}
			color.Green("context saved")
		},
	}

	command.Flags().StringVarP(&server, "server", "s", defaultServer, "server url")
	command.Flags().StringVarP(&user, "user", "u", "", "user id (required)")
	command.Flags().StringSliceVarP(&roles, "roles", "r", []string{"member"}, "roles of the user")
	command.Flags().SortFlags = false

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			printField("Server", ctx.Server)
			printField("User", ctx.User)
			printField("Roles", strings.Join(ctx.Roles, ","))
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			err := os.Remove(filepath.Join(configDir, configFileName+".yml"))
			if err != nil && !os.IsNotExist(err) {
				color.Red("error removing config file: %v", err)
				return
			}
			color.Green("context reset")
		},
	}

	return command
}

func writeContext(ctx Context) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	viper.SetConfigType("yml")
	viper.Set("context.server", ctx.Server)
	viper.Set("context.user", ctx.User)
	viper.Set("context.roles", ctx.Roles)

	return viper.WriteConfigAs(filepath.Join(configDir, configFileName+".yml"))
}

func readContext() Context {
	ctx := Context{Server: defaultServer}

	viper.SetConfigName(configFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Println("error reading config file: ", err)
		}
		return ctx
	}

	if err := viper.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}
	if ctx.Server == "" {
		ctx.Server = defaultServer
	}

	return ctx
}

// newClient creates a client for the current context.
func newClient() *knowledge.Client {
	ctx := readContext()
	if ctx.User == "" {
		logrus.Warn("no user in context, run: kb context set -u <user-id>")
	}

	return knowledge.NewClient(ctx.Server, ctx.User, ctx.Roles)
}
