package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var verifyPolicy string

var verifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Introspect a token against the server",
	Long: `Sends a token to the server's introspection endpoint and reports
whether it is active, optionally evaluating a named policy.`,
	Example: `  tokend verify eyJhbGci... --policy events-admin

  # read the token from stdin
  cat token.txt | tokend verify -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenStr := args[0]
		if tokenStr == "-" {
			log.Debug().Msg("Reading token from stdin")
			data, err := os.ReadFile("/dev/stdin")
			if err != nil {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			tokenStr = strings.TrimSpace(string(data))
		}
		if tokenStr == "" {
			return fmt.Errorf("token cannot be empty")
		}

		server, err := f.GetRemoteAddr()
		if err != nil {
			return err
		}
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		log.Debug().Msgf("Verifying against %s...", server)

		result, correlation, err := cli.VerifyToken(cmd.Context(), tokenStr, verifyPolicy)
		if err != nil {
			return logError(err, correlation, "verification request failed")
		}

		if !result.Active {
			log.Error().Msgf("%s token is not active: %s", redCross, result.Error)
			if result.Check != "" {
				log.Error().Msgf("failed policy check: %s", result.Check)
			}
			return BeQuietError{}
		}

		logSuccess("token is active")
		fmt.Printf("  %s: %s\n", faint("sub"), result.Claims.Subject)
		fmt.Printf("  %s: %s\n", faint("sub_id"), result.Claims.OrgID)
		fmt.Printf("  %s: %s\n", faint("scope"), result.Claims.Scope)
		if len(result.Claims.Roles) > 0 {
			fmt.Printf("  %s: %s\n", faint("roles"), strings.Join(result.Claims.Roles, ", "))
		}
		if len(result.Claims.Entitlements) > 0 {
			fmt.Printf("  %s: %s\n", faint("entitlements"), strings.Join(result.Claims.Entitlements, ", "))
		}
		fmt.Printf("  %s: %s\n", faint("expires"), result.Claims.ExpiresAt)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyPolicy, "policy", "p", "", "Named policy to evaluate (optional)")
}
