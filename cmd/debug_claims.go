package cmd

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var debugClaimsCmd = &cobra.Command{
	Use:   "claims <token>",
	Short: "Prints the claims of a token without verifying it",
	Long: `Extracts and displays the claims from a compact token. It does not
perform any validation, it simply decodes the token and shows its contents.`,
	Example: `  tokend debug claims <token>`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenInput := args[0]
		if tokenInput == "" {
			return fmt.Errorf("token cannot be empty")
		}

		parser := jwt.NewParser()
		token, _, err := parser.ParseUnverified(tokenInput, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("invalid token claims")
		}

		log.Info().Msg("Token Claims:")
		log.Info().Msg(spew.Sdump(claims))

		if expRaw, ok := claims["exp"].(float64); ok {
			exp := time.Unix(int64(expRaw), 0)
			if time.Now().After(exp) {
				log.Warn().Msgf("%s token expired at %s", redCross, exp)
			} else {
				log.Info().Msgf("%s token valid until %s (%s left)",
					greenCheck, exp, time.Until(exp).Round(time.Second))
			}
		}
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugClaimsCmd)
}
