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
	Use:   "ganymede",
	Short: "Ganymede - content hosting control plane",
	Long: `Ganymede provisions and supervises a reverse proxy for media content
hosting. It exposes a management API for content hosting configurations
and server certificates, regenerates the proxy configuration on every
change, and reloads the proxy without dropping traffic.

It provides:
  - Declarative provisioning of reverse-proxy distribution points
  - Supervised proxy lifecycle with validate-then-promote reloads
  - An expiring redirect table for ephemeral data-path entry points
  - Proxy disk-cache purging per provisioning session`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
