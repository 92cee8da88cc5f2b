package cmd

import (
	"github.com/spf13/cobra"
)

// version is the build version reported by the CLI, the MCP handshake and
// the telemetry resource.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "goaltiers",
		Short: "Plan goals across yearly, quarterly, monthly, weekly and daily tiers",
		Long: `goaltiers keeps a hierarchy of goals in which a goal may refine one goal
a tier up. Next to the goals it shows the signed-in user's Google Calendar
events for today, this week and the rest of the month.

Run "goaltiers serve" for the web API or "goaltiers mcp" to expose the
goals to an AI assistant over the Model Context Protocol.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate("goaltiers version {{.Version}}\n")

	root.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newVersionCmd(),
		newGenerateDocsCmd(),
	)
	return root
}

// Execute runs the CLI as build version v. Cobra has already printed the
// error when one is returned.
func Execute(v string) error {
	version = v
	return newRootCmd().Execute()
}
