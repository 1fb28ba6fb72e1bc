package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "edge",
	Short: "StreamCDN Edge - domain-aware streaming reverse proxy",
	Long: `StreamCDN Edge fronts customer streaming domains and decides per request
whether to proxy, redirect, or explain.

Smart TVs, set-top boxes and IPTV applications are forwarded transparently
to the customer's origin. Browsers, bots and requests for suspended or
expired domains get a branded status page instead, so billing state is
visible without exposing the origin. Every proxied request is enriched
with geolocation and session tracking and reported to analytics.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "edge.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
