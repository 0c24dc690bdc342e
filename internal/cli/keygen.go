package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dsnplabs/graphsdk/pkg/codec"
	"github.com/dsnplabs/graphsdk/pkg/crypto"
	"github.com/dsnplabs/graphsdk/pkg/dsnp"
	"github.com/dsnplabs/graphsdk/pkg/graph"
)

// keygenOutput is the JSON shape of a generated key pair.
type keygenOutput struct {
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
	// Payload is the serialized published-key blob to upload on chain.
	Payload string `json:"payload"`
}

// keygenCommand creates the keygen command.
func (c *CLI) keygenCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new X25519 graph key pair",
		Long: `Generate a new X25519 graph key pair and print it hex-encoded,
along with the serialized published-key payload to upload on chain.

Keep the secret key private: anyone holding it can decrypt the private
graph pages sealed to the matching public key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := graph.GenerateKeyPair(crypto.X25519)
			if err != nil {
				return err
			}
			payload, err := codec.WritePublicKey(dsnp.PublicKey{Key: pair.Public})
			if err != nil {
				return err
			}

			out := keygenOutput{
				PublicKey: hex.EncodeToString(pair.Public),
				SecretKey: hex.EncodeToString(pair.Secret),
				Payload:   hex.EncodeToString(payload),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\nsecret key: %s\npayload:    %s\n",
				out.PublicKey, out.SecretKey, out.Payload)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the key pair as JSON")

	return cmd
}
