package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"typeporter/pkg/auth"
	"typeporter/pkg/config"
	"typeporter/pkg/fetch"
	"typeporter/pkg/logger"
	"typeporter/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "typeporter",
	Short: "Migrate a Typepad-style blog into a local archive and WordPress import bundles",
	Long: `typeporter migrates a hosted Typepad-style blog in independent stages:

  discover     collect post permalinks from the blog's listing pages
  archive      fetch posts and their assets into a self-contained local tree
  consolidate  merge duplicate media and build the rename map
  export       extract post content and write WordPress WXR import bundles

Every stage works from durable files, so an interrupted run resumes
where it stopped. Credentials for password-protected blogs are stored
with 'typeporter auth login'.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal so the closure's
	// rootCmd reference does not form an initialization cycle
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		switch {
		case verbose:
			logLevel = "debug"
		case !rootCmd.PersistentFlags().Changed("log-level"):
			// Colored status output carries the run by default; raise
			// the log floor so console logs do not drown it
			logLevel = "warn"
		}

		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .typeporter.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs instead of the progress display")

	// Version template
	rootCmd.SetVersionTemplate(`typeporter {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads configuration for a stage command and initializes
// logging. Failures end the process; stage commands cannot run
// without a valid configuration.
func loadConfig(flags map[string]interface{}) *config.Config {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	return cfg
}

// requireSite ends the process when no source site is configured
func requireSite(cfg *config.Config) {
	if cfg.Site.URL == "" {
		ui.PrintError("No source site configured", "set site.url in the config file or pass --site")
		os.Exit(1)
	}
}

// siteHost returns the host part of the configured site URL
func siteHost(cfg *config.Config) string {
	parsed, err := url.Parse(cfg.Site.URL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// siteCredentials attaches stored credentials for the source host, if
// any. Public blogs work without them, so a missing entry is not an
// error.
func siteCredentials(client *fetch.Client, cfg *config.Config) {
	host := siteHost(cfg)
	if host == "" {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		logger.WithError(err).Warn("Credential stores unavailable, fetching without authentication")
		return
	}

	creds, err := manager.Retrieve(host)
	if err != nil {
		logger.Debug("No stored credentials for the source site")
		return
	}

	client.SetCredentials(host, creds.Username, creds.Password)
	logger.WithField("site", host).Info("Using stored credentials")
	ui.PrintInfo("Authenticated as", creds.Username)
}

// stageContext returns a context cancelled by SIGINT or SIGTERM, so an
// interrupted stage stops between documents and stays resumable
func stageContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
