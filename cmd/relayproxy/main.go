// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir string
	env       string
)

var rootCmd = &cobra.Command{
	Use:   "relayproxy",
	Short: "relayproxy relays HTTP requests over a gift-wrapped Nostr-style relay network",
	Long: `relayproxy is a reverse proxy that receives HTTP requests encoded as
layered, encrypted relay events (gift-wrap → seal → inner request), dispatches
them to a configured origin, and publishes the origin's response back through
the same relay network in the same layered shape.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory to search for environment config files")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment name (defaults to RELAYPROXY_ENV or \"development\")")
}
