package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	verboseFlag bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "hitwire",
	Short: "One request, one connection, one response.",
	Long: `hitwire is a minimal HTTP/1.1 client. Every request opens its own
TCP or TLS connection, writes the request, reads exactly one response
and closes the connection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HITWIRE_CONFIG", ""), "Path to config file (env: HITWIRE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("HITWIRE_VERBOSE", false), "Verbose output and debug logging (env: HITWIRE_VERBOSE)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITWIRE_NO_COLOR", false), "Disable colored output (env: HITWIRE_NO_COLOR)")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
