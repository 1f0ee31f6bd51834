package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/keys"
	"github.com/harborlight-org/tokend/internal/token"
)

var (
	debugMintSubject     string
	debugMintOrg         string
	debugMintAppointment string
	debugMintPoints      int
	debugMintHousehold   int
)

var debugMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Force-mint a check-in token locally for testing",
	Long: `Test command that bypasses identity verification and the directory to
mint a pantry check-in token straight from the configured signing key.`,
	Example: `  tokend debug mint -f tokend.yaml --subject household-9 --appointment 2026-09-15`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return err
		}
		if cfg.Issuer.KeyFile == "" {
			return fmt.Errorf("config has no issuer.key_file, cannot mint locally")
		}

		keySource, err := keys.NewFileSource(cfg.Issuer.KeyFile, cfg.Issuer.KeyID)
		if err != nil {
			return fmt.Errorf("loading signing key: %w", err)
		}

		loc, err := cfg.Pantry.Location()
		if err != nil {
			return err
		}
		day, err := time.ParseInLocation("2006-01-02", debugMintAppointment, loc)
		if err != nil {
			return fmt.Errorf("appointment must be a YYYY-MM-DD date: %w", err)
		}

		claims := &core.Claims{}
		claims.SetAuthorizationDetails(core.PantryAuthorization{
			Points:        debugMintPoints,
			HouseholdSize: debugMintHousehold,
			Appointment:   day.Format("2006-01-02"),
		})

		nbf, exp := token.DayWindow(day, loc)
		issuer := token.NewIssuer(keySource, cfg.Issuer.URL, cfg.Issuer.Audience)
		minted, err := issuer.Issue(cmd.Context(), token.Request{
			Subject:   debugMintSubject,
			OrgID:     debugMintOrg,
			Scope:     core.ScopePantry,
			NotBefore: nbf,
			ExpiresAt: exp,
			Extra:     claims.Extra,
		})
		if err != nil {
			return fmt.Errorf("minting failed: %w", err)
		}

		log.Debug().Msg("Token minted successfully")
		logSuccess("minted check-in token %s (valid until %s)", bold(minted.ID), minted.ExpiresAt)
		fmt.Println(minted.Value)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugMintCmd)

	f.bindConfigFlag(debugMintCmd.Flags())
	debugMintCmd.Flags().StringVar(&debugMintSubject, "subject", "debug-subject", "Subject for the minted token")
	debugMintCmd.Flags().StringVar(&debugMintOrg, "org", "", "Organization ID for the minted token")
	debugMintCmd.Flags().StringVar(&debugMintAppointment, "appointment", "", "Appointment date (YYYY-MM-DD)")
	debugMintCmd.Flags().IntVar(&debugMintPoints, "points", 100, "Point budget for the appointment")
	debugMintCmd.Flags().IntVar(&debugMintHousehold, "household-size", 1, "Household size")

	_ = debugMintCmd.MarkFlagRequired("config")
	_ = debugMintCmd.MarkFlagRequired("appointment")
}
