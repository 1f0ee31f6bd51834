package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <jti>",
	Short: "Revoke an issued token by its ID",
	Long: `Puts a token on the server's revocation list for the remainder of its
lifetime. Requires an admin session (tokend login).`,
	Example: `  tokend revoke 7f9c2ba4-e88f-11ee-a1f3-0242ac120002`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jti := args[0]
		if jti == "" {
			return fmt.Errorf("token ID cannot be empty")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		meta, correlation, err := cli.RevokeToken(cmd.Context(), jti)
		if err != nil {
			return logError(err, correlation, "failed to revoke token")
		}

		logSuccess("token %s revoked (subject: %s)", bold(meta.ID), meta.Subject)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(revokeCmd)
}
