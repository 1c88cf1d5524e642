// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nostrwrap/relayproxy/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new proxy identity keypair",
	Long: `Generate a fresh secp256k1 keypair for the proxy's long-lived identity
and print its secret and public hex encodings. Paste the secret into the
"secret_key" field of the environment's config file.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	fmt.Printf("secretKey: %s\n", kp.SecretHex())
	fmt.Printf("publicKey: %s\n", kp.PublicHex())
	return nil
}
