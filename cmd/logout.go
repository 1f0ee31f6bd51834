package cmd

import (
	"errors"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harborlight-org/tokend/internal/cliconfig"
	"github.com/harborlight-org/tokend/pkg/client"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the saved session and forget its credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := f.GetRemoteAddr()
		if err != nil {
			return err
		}
		u, err := url.Parse(server)
		if err != nil {
			return err
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			return logError(err, "", "no saved credentials")
		}
		cred, err := cfg.GetCredential(server)
		if err != nil {
			if errors.Is(err, cliconfig.ErrCredentialNotFound) {
				log.Info().Msgf("no credential saved for %s", u.Host)
				return nil
			}
			return err
		}

		cli := client.New(server, client.WithAuthToken(cred.Token))
		if correlation, err := cli.SignOut(cmd.Context()); err != nil {
			// still forget the local credential
			log.Warn().Msgf("server-side sign-out failed (correlation ID: %s): %v", correlation, err)
		}

		delete(cfg.Credentials, u.Host)
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "could not update credentials file")
		}

		logSuccess("signed out from %s", bold(u.Host))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
