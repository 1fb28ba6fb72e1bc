package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"streamcdn/edge/pkg/cli"
	"streamcdn/edge/pkg/config"
	"streamcdn/edge/pkg/registry"
)

var checkFlags struct {
	format string
}

var checkCmd = &cobra.Command{
	Use:   "check <hostname>",
	Short: "Look up a domain in the registry",
	Long: `Query the domain registry for a hostname and report whether the edge
would serve it, using the same client and rules as the request path.

Examples:
  # Human-readable summary
  edge check tv.example

  # Full record as JSON
  edge check tv.example --format json`,
	Args: cobra.ExactArgs(1),
	RunE: checkDomain,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFlags.format, "format", "text", "output format: text, json")
}

func checkDomain(cmd *cobra.Command, args []string) error {
	hostname := args[0]

	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	client, err := registry.NewHTTPClient(registry.HTTPConfig{
		BaseURL:  cfg.Registry.BaseURL,
		APIToken: cfg.Registry.APIToken,
		Timeout:  cfg.Registry.Timeout,
	}, nil)
	if err != nil {
		return cli.NewConfigError("registry", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record, err := client.Lookup(ctx, hostname)
	if errors.Is(err, registry.ErrNotFound) {
		fmt.Printf("✗ %s is not configured\n", hostname)
		os.Exit(1)
	}
	if err != nil {
		return cli.NewCommandError("check", err)
	}

	if checkFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, record)
	}

	now := time.Now()
	fmt.Printf("Hostname:  %s\n", record.Hostname)
	fmt.Printf("Status:    %s (account %s)\n", record.Status, record.OwnerStatus)
	if record.PlanName != "" {
		fmt.Printf("Plan:      %s\n", record.PlanName)
	}
	if record.ExpiresAt != nil {
		fmt.Printf("Expires:   %s\n", record.ExpiresAt.UTC().Format("2006-01-02"))
	}
	fmt.Printf("Analytics: %v\n", record.AnalyticsEnabled)
	if record.RedirectOnly {
		fmt.Println("Mode:      redirect-only")
	}
	if record.Servable(now) {
		fmt.Println("✓ servable")
	} else {
		fmt.Println("✗ not servable")
	}
	return nil
}
