package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborlight-org/tokend/internal/keys"
)

var (
	keygenOut  string
	keygenBits int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA signing key",
	Long: `Generates a PEM-encoded RSA private key suitable for the issuer.key_file
setting. The corresponding public key is published on the JWKS endpoint.`,
	Example: `  tokend keygen --out signing.pem`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := keys.Generate(keygenBits)
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}

		pem, err := keys.EncodePrivateKeyPEM(key)
		if err != nil {
			return fmt.Errorf("encoding key: %w", err)
		}

		if keygenOut == "-" {
			_, err := os.Stdout.Write(pem)
			return err
		}

		if err := os.WriteFile(keygenOut, pem, 0600); err != nil {
			return fmt.Errorf("writing key file: %w", err)
		}
		logSuccess("wrote %d-bit RSA key to %s", keygenBits, bold(keygenOut))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&keygenOut, "out", "o", "signing.pem", "Output file ('-' for stdout)")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA key size in bits")
}
