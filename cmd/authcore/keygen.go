package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openidx/authcore/pkg/keys"
)

var (
	keygenDir  string
	keygenBits int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA signing key pair and write it to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		keyManager := keys.NewManager()
		if err := keyManager.GenerateKeyPair(keygenBits); err != nil {
			return fmt.Errorf("failed to generate key pair: %w", err)
		}

		privateKeyPath := filepath.Join(keygenDir, "private.pem")
		publicKeyPath := filepath.Join(keygenDir, "public.pem")

		if err := keyManager.SavePrivateKey(privateKeyPath); err != nil {
			return fmt.Errorf("failed to save private key: %w", err)
		}
		if err := keyManager.SavePublicKey(publicKeyPath); err != nil {
			return fmt.Errorf("failed to save public key: %w", err)
		}

		fmt.Printf("Generated new key pair:\n")
		fmt.Printf("  Private key: %s\n", privateKeyPath)
		fmt.Printf("  Public key:  %s\n", publicKeyPath)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenDir, "dir", ".", "Directory to write key files")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 2048, "RSA key size in bits")

	rootCmd.AddCommand(keygenCmd)
}
