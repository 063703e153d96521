package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/routekit/pkg/sealbox"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an X25519 key pair for sealed messages",
	Long: `Generate an X25519 key pair. Share the public key with peers; keep
the private key secret. Keys are printed base64 encoded.

Examples:
  routekit keygen
  routekit keygen --json > key.json`,
	RunE: runKeygen,
}

var keygenJSON bool

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().BoolVar(&keygenJSON, "json", false, "output as JSON")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	kp, err := sealbox.New().GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}
	pub := base64.StdEncoding.EncodeToString(kp.Public)
	priv := base64.StdEncoding.EncodeToString(kp.Private)

	out := cmd.OutOrStdout()
	if keygenJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{"public": pub, "private": priv})
	}
	fmt.Fprintf(out, "public:  %s\n", pub)
	fmt.Fprintf(out, "private: %s\n", priv)
	return nil
}
