package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/ganymede/pkg/cli"
	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/hosting"
	"mercator-hq/ganymede/pkg/nginx"
)

var renderFlags struct {
	output string
	certs  []string
}

var renderCmd = &cobra.Command{
	Use:   "render [session.json ...]",
	Short: "Render the proxy configuration for a set of session records",
	Long: `Render the proxy configuration artifact for one or more content
hosting configuration files without starting the controller.

Each argument is a JSON content hosting configuration; the provisioning
session ID is taken from the file name. Certificates referenced by a
session must be supplied with --cert.

Examples:
  # Render one session to stdout
  ganymede render S1.json

  # Render multiple sessions to a file
  ganymede render S1.json S2.json --output nginx.conf

  # Supply certificate material for TLS distributions
  ganymede render S1.json --cert cert-1=/etc/ssl/s1.pem`,
	Args: cobra.MinimumNArgs(1),
	RunE: renderArtifact,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderFlags.output, "output", "o", "", "write the artifact to a file instead of stdout")
	renderCmd.Flags().StringArrayVar(&renderFlags.certs, "cert", nil, "certificate material as id=path (repeatable)")
}

func renderArtifact(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	certFiles := make(map[string]string, len(renderFlags.certs))
	for _, spec := range renderFlags.certs {
		id, path, ok := strings.Cut(spec, "=")
		if !ok || id == "" || path == "" {
			return cli.NewConfigError("cert", fmt.Sprintf("expected id=path, got %q", spec))
		}
		certFiles[id] = path
	}

	sessions := make([]*hosting.ProvisioningSession, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return cli.NewCommandError("render", err)
		}
		var session hosting.ProvisioningSession
		if err := json.Unmarshal(data, &session); err != nil {
			return cli.NewCommandError("render", fmt.Errorf("%s: %w", path, err))
		}
		session.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		sessions = append(sessions, &session)
	}

	generator := nginx.NewGenerator(generatorConfig(cfg))
	artifact, err := generator.Generate(sessions, certFiles)
	if err != nil {
		return cli.NewCommandError("render", err)
	}

	if renderFlags.output == "" {
		_, err = os.Stdout.Write(artifact)
		return err
	}
	if err := os.WriteFile(renderFlags.output, artifact, 0o644); err != nil {
		return cli.NewCommandError("render", err)
	}
	fmt.Printf("artifact written to %s (%d sessions)\n", renderFlags.output, len(sessions))
	return nil
}
