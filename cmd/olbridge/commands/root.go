package commands

import (
	"github.com/spf13/cobra"

	"github.com/dgower/olbridge/internal/config"
)

var (
	// configPath is the YAML configuration file.
	configPath string

	// backendName selects the store backend (outlook or sim).
	backendName string

	// accountName pins folder resolution to one mailbox account.
	accountName string

	// simPath overrides the sim backend database file.
	simPath string

	// seedDemo populates a fresh sim store with demo data.
	seedDemo bool

	// outputFormat controls output format (json, text).
	outputFormat string

	// timeoutSec bounds how long one operation may take.
	timeoutSec int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "olbridge",
	Short: "Groupware automation bridge CLI",
	Long: `olbridge exposes email, calendar, and task data from a groupware
store through one subcommand per operation. Results are printed as JSON
by default; failures exit non-zero with a message on stderr.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "",
		"Path to config file (default: "+config.DefaultConfigPath()+")",
	)
	rootCmd.PersistentFlags().StringVar(
		&backendName, "backend", "",
		"Store backend: outlook or sim (overrides config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&accountName, "account", "",
		"Mailbox account to pin folder resolution to",
	)
	rootCmd.PersistentFlags().StringVar(
		&simPath, "sim-path", "",
		"Database file for the sim backend",
	)
	rootCmd.PersistentFlags().BoolVar(
		&seedDemo, "seed-demo", false,
		"Populate the sim backend with demo data",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "json",
		"Output format: json, text",
	)
	rootCmd.PersistentFlags().IntVar(
		&timeoutSec, "timeout", 0,
		"Operation timeout in seconds (0 for config default)",
	)

	rootCmd.AddCommand(emailsCmd)
	rootCmd.AddCommand(emailCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(forwardCmd)
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(deleteEmailCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(attachmentsCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(appointmentCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(freebusyCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(versionCmd)
}
