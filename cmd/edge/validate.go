package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"streamcdn/edge/pkg/cli"
	"streamcdn/edge/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file, apply environment overrides and run all
validation rules without starting the server.

Every violated rule is reported, not just the first one.

Examples:
  # Validate the default config
  edge validate

  # Validate a specific file
  edge validate --config /etc/streamcdn/edge.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	_, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ %s has %d problem(s):\n", cfgFile, len(verr.Errors))
			for _, fieldErr := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fieldErr.Field, fieldErr.Message)
			}
			return cli.NewCommandError("validate", err)
		}
		return cli.NewConfigError("", err.Error())
	}

	fmt.Printf("✓ %s is valid\n", cfgFile)
	return nil
}
