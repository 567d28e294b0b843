// Package main provides the toolgate CLI.
//
// Start the server:
//
//	toolgate serve --config toolgate.yaml
//
// Apply PostgreSQL migrations:
//
//	toolgate migrate up
//	toolgate migrate status
//
// # Environment Variables
//
//   - TOOLGATE_CONFIG: path to the configuration file
//   - GEMINI_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY: provider keys
//   - DATABASE_URL: PostgreSQL connection string
//   - CONVERTER_URL: office to PDF conversion service
//   - SYSTEM_INSTRUCTION: base system instruction
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "toolgate",
		Short: "Tool-calling chat service with user approval",
		Long: `toolgate relays chat turns to an LLM provider (Gemini, Anthropic, OpenAI),
holds proposed tool calls until the user approves them and executes the
approved ones locally or hands them to the client.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildConfigCmd(),
		buildToolsCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}

	return os.Getenv("TOOLGATE_CONFIG")
}
