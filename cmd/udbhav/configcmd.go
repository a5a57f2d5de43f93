// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/udbhav-health/udbhav/internal/config"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML with secrets masked",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	// Keyring references are printed as-is rather than resolved.
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return udberr.Errorf(udberr.CodeCLIRenderFailure, "encoding config: %w", err)
	}

	w := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(w, "# source: %s\n", used)
	}
	_, err = w.Write(out)
	return err
}
