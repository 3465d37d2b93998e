package cmd

import (
	"fmt"

	"ugc-forge/app/utils"

	"github.com/spf13/cobra"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <api-key>",
	Short: "Print the bcrypt hash of an api key for webhook.api_keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := utils.HashAPIKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
