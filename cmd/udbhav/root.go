// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/udbhav-health/udbhav/internal/config"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

// NewRootCmd creates the root udbhav command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "udbhav",
		Short:         "udbhav: semantic search over owner records",
		Long:          "udbhav stores owner records, embeds their summaries, and ranks them by similarity to free-text queries.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), viper.GetString("log_format"), viper.GetBool("verbose")))
			return nil
		},
	}

	// Global flags. initViper binds them to viper keys.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(
		newServeCmd(),
		newSearchCmd(),
		newSimilarCmd(),
		newReconcileCmd(),
		newVerifyCmd(),
		newRecordCmd(),
		newOwnerCmd(),
		newSecretCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and an optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return udberr.Errorf(udberr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted: with it viper also tries the bare name,
		// which collides with a ./udbhav binary.
		v.SetConfigName("udbhav")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/udbhav")
		v.AddConfigPath("/etc/udbhav")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return udberr.Errorf(udberr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return udberr.Errorf(udberr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}
	config.CheckPermissions(v.ConfigFileUsed())

	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return udberr.Errorf(udberr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	if err := v.BindPFlag("log_format", flags.Lookup("log-format")); err != nil {
		return udberr.Errorf(udberr.CodeCLISetupFailure, "binding log-format flag: %w", err)
	}

	return nil
}
