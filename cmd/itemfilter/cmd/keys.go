package cmd

import (
	"fmt"

	"github.com/solatis/itemfilter/internal/core/auth"
	"github.com/solatis/itemfilter/internal/core/config"
	"github.com/solatis/itemfilter/internal/core/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys for administrative calls",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key and print it once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		label, _ := cmd.Flags().GetString("label")

		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		database, queries, err := e.openDB(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		key, err := auth.IssueKey(ctx, secrets, db.NewAPIKeyStore(queries), label)
		if err != nil {
			return err
		}
		e.logger.Info("api key issued", zap.String("label", label))
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke KEY_ID",
	Short: "Revoke an API key by its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		database, queries, err := e.openDB(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.NewAPIKeyStore(queries).Revoke(ctx, args[0]); err != nil {
			return err
		}
		e.logger.Info("api key revoked", zap.String("api_key_id", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysRevokeCmd)
	keysCreateCmd.Flags().String("label", "", "label recorded as the key's principal")
	keysCreateCmd.MarkFlagRequired("label")
}
