package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/playwatch/internal/app"
	"github.com/MrSnakeDoc/playwatch/internal/config"
	"github.com/MrSnakeDoc/playwatch/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "playwatch",
	Short: "Watches app store links and reports which ones are still available",
	// No sub-command: serve.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the HTTP API and the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		return a.Run()
	},
}

var checkCmd = &cobra.Command{
	Use:     "check [user-key]",
	Short:   "Run one check for a user now and print the summary",
	Example: "playwatch check 123456789 --direct",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		direct, _ := cmd.Flags().GetBool("direct")

		a, err := app.New(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		sum, err := a.CheckNow(cmd.Context(), args[0], direct)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d/%d checked, %d available\n",
			sum.UserKey, sum.Status, sum.Completed, sum.Total, sum.Available)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import users, links, proxies and schedules from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), config.Load())
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d user(s): %d link(s), %d proxy(ies), %d schedule(s), %d skipped\n",
			rep.Users, rep.Targets, rep.Proxies, rep.Schedules, rep.Skipped)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "playwatch %s (commit=%s, built=%s, go=%s)\n",
			version.Version, version.Commit, version.BuildDate, version.GoVersion)
	},
}

func init() {
	checkCmd.Flags().Bool("direct", false, "check without proxies")
	rootCmd.AddCommand(serveCmd, checkCmd, importCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("❌ playwatch: %v", err)
		os.Exit(1)
	}
}
