package cmd

import (
	"github.com/emrgen/knowledge/internal/config"
	"github.com/emrgen/knowledge/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "start the knowledge server",
		Long:  "start the HTTP API, the websocket notifications and the background jobs, configured from the environment and .env",
		Run: func(cmd *cobra.Command, args []string) {
			server.NewServer(config.LoadConfig()).Start()
		},
	}

	return command
}
