package main

import (
	"github.com/spf13/cobra"
)

// ---- serve ----

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

The server loads the configuration, opens the store, connects the model
provider and serves the chat API until SIGINT or SIGTERM.`,
		Example: `  # Start with defaults and environment overrides
  toolgate serve

  # Start with a config file and debug logging
  toolgate serve --config /etc/toolgate.yaml --debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

// ---- migrate ----

func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Manage the PostgreSQL schema. SQLite databases apply their schema on open
and the memory store has none.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrateUp(cmd, resolveConfigPath(configPath))
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrateStatus(cmd, resolveConfigPath(configPath))
			},
		},
	)

	return cmd
}

// ---- config ----

func buildConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, resolveConfigPath(configPath))
		},
	})

	return cmd
}

// ---- tools ----

func buildToolsCmd() *cobra.Command {
	var withCatalog bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools and where they execute",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(cmd, withCatalog)
		},
	}

	cmd.Flags().BoolVar(&withCatalog, "catalog", true, "Include the catalog tools served by the memory and sqlite stores")

	return cmd
}
