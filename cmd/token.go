package cmd

import (
	"fmt"

	"ugc-forge/app/auth"
	"ugc-forge/app/config"

	"github.com/spf13/cobra"
)

var tokenUserID string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a read API token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		token, err := auth.NewJWTService(cfg.JWT).GenerateToken(tokenUserID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id the token is issued for")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
