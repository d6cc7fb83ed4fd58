package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openidx/authcore/pkg/service"
)

var (
	configPath string
	listenAddr string
	issuer     string
	keyFile    string
	keyDir     string
)

var rootCmd = &cobra.Command{
	Use:   "authcore",
	Short: "AuthCore - Authentication Token Service",
	Long:  `AuthCore issues, rotates, and revokes signed token pairs and exports the permission-endpoint map for the platform gateway.`,
}

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Generate a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return fmt.Errorf("--config path is required")
		}
		config := service.DefaultFileConfig()
		if err := service.SaveFileConfig(config, configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Generated configuration file at: %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateConfigCmd)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
