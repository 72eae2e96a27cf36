package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nerrad567/automation-creator/internal/auth"
	"github.com/nerrad567/automation-creator/internal/infrastructure/config"
)

// envFile is loaded before the configuration when present.
const envFile = ".env"

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "automationcreator",
		Short: "AI Automation Creator - describe an automation, get working YAML",
		Long: `The automation creator serves a panel where a user describes a Home Assistant
automation, either by answering a few guided questions or in one free-text
description. The description is sent to a language model, the reply is
normalised into a valid automation and appended to automations.yaml.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
		// Running without a subcommand starts the server.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(configPath))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default $AUTOCREATOR_CONFIG or "+defaultConfigPath+")")

	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newTokenCommand(&configPath))

	return rootCmd
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the panel API and the automation creator service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(*configPath))
		},
	}
}

func newTokenCommand(configPath *string) *cobra.Command {
	var (
		role    string
		subject string
		ttl     int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for the panel API",
		Long: `Print a signed access token using the configured JWT secret.

The panel requires the admin role. The user role can only read the history
of generated automations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(getConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.Security.JWT.AccessTokenTTL
			}

			token, err := auth.GenerateAccessToken(subject, auth.Role(role), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "role %s grants %s\n", role, joinPermissions(auth.PermissionsForRole(auth.Role(role))))
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "token role (admin or user)")
	cmd.Flags().StringVar(&subject, "subject", "panel-admin", "token subject")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default security.jwt.access_token_ttl)")

	return cmd
}

func joinPermissions(perms []auth.Permission) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// loadEnvFile loads KEY=value pairs from path into the environment.
// A missing file is not an error; existing variables are not overwritten.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
