package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harborlight-org/tokend/internal/cliconfig"
	"github.com/harborlight-org/tokend/pkg/client"
)

var loginProvider string

var loginCmd = &cobra.Command{
	Use:   "login <upstream-id-token>",
	Short: "Authenticate with a tokend server",
	Long: `Exchanges an upstream OIDC ID token for a tokend session token.
The session token is saved locally to allow future authenticated requests
(like audit logs).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idToken := args[0]
		if idToken == "" {
			return fmt.Errorf("token cannot be empty")
		}

		server, err := f.GetRemoteAddr()
		if err != nil {
			return err
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		// perform exchange via client
		cli := client.New(server)

		log.Info().Msgf("Issuing session from server %q...", u.Host)

		session, correlationID, err := cli.IssueSession(cmd.Context(), idToken, client.IssueSessionOptions{
			Provider: loginProvider,
		})
		if err != nil {
			return logError(err, correlationID, "failed to issue session")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = &cliconfig.CLIConfig{}
		}
		if cfg.Credentials == nil {
			cfg.Credentials = make(map[string]*cliconfig.Credential)
		}
		cfg.Credentials[u.Host] = &cliconfig.Credential{
			Token: session.SessionToken,
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials for %s", bold(u.Host))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginProvider, "provider", "", "Upstream identity provider name (optional)")
}
