package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ugc-forge/app/config"
	"ugc-forge/app/database"
	"ugc-forge/app/logger"
	"ugc-forge/app/server"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the webhook server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Close()

		if err := database.Init(cfg.Database, log); err != nil {
			log.Fatalf("database init failed: %v", err)
		}

		srv, err := server.New(cfg, log, database.DB)
		if err != nil {
			log.Fatalf("server init failed: %v", err)
		}

		// api keys can be rotated by editing the config file
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloaded, err := config.Reload()
			if err != nil {
				log.Errorf("config reload failed (%s): %v", e.Name, err)
				return
			}
			srv.ApplyConfig(reloaded)
			log.Infof("config reloaded from %s", e.Name)
		})
		if viper.ConfigFileUsed() != "" {
			viper.WatchConfig()
		}

		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("server start failed: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("server shutdown failed: %v", err)
		}
		log.Info("server exited")
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
