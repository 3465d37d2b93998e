package cmd

import (
	"ugc-forge/app/config"
	"ugc-forge/app/database"
	"ugc-forge/app/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Close()

		if err := database.Init(cfg.Database, log); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		defer database.Close()

		log.Infof("schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
