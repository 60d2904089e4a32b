package cmd

import (
	"github.com/emrgen/knowledge/internal/config"
	"github.com/emrgen/knowledge/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			db := config.GetDb(cfg)
			err := model.Migrate(db)
			if err != nil {
				logrus.Fatalf("migration failed: %v", err)
			}
			logrus.Infof("migrated %s database", cfg.DBDriver)
		},
	}

	return command
}
