package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"typeporter/pkg/discover"
	"typeporter/pkg/fetch"
	"typeporter/pkg/ledger"
	"typeporter/pkg/logger"
	"typeporter/pkg/report"
	"typeporter/pkg/ui"
)

var (
	// Discover command flags
	discoverSite      string
	discoverStartPage int
	discoverOutFile   string
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Collect post permalinks from the blog's listing pages",
	Long: `Walk the blog's listing pages in order and collect post permalinks
into the permalinks file the archive stage reads.

Scanned pages are recorded in the ledger, so an interrupted run picks
up at the first unscanned page. The crawl ends when the site returns
404 for the next page or the pager stops advancing.`,
	Example: `  # Crawl the configured site
  typeporter discover

  # Crawl a site given on the command line, starting at page 12
  typeporter discover --site https://blog.example.com --start-page 12`,
	Run: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverSite, "site", "", "source site URL")
	discoverCmd.Flags().IntVar(&discoverStartPage, "start-page", 0, "listing page to start at (default from config)")
	discoverCmd.Flags().StringVarP(&discoverOutFile, "output", "o", "", "permalinks file (default from config)")
}

func runDiscover(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if discoverSite != "" {
		flags["site"] = discoverSite
	}

	cfg := loadConfig(flags)
	if discoverStartPage > 0 {
		cfg.Discover.StartPage = discoverStartPage
	}
	if discoverOutFile != "" {
		cfg.Discover.PermalinksFile = discoverOutFile
	}
	requireSite(cfg)

	ui.PrintInfo("Source site", cfg.Site.URL)
	ui.PrintInfo("Permalinks file", cfg.Discover.PermalinksFile)

	led, err := ledger.Open(cfg.Archive.StateDirectory())
	if err != nil {
		ui.PrintError("Failed to open ledger", err.Error())
		os.Exit(1)
	}
	defer led.Close()

	client := fetch.NewClient(&cfg.Fetch, logger.GetLogger())
	siteCredentials(client, cfg)

	crawler, err := discover.New(cfg, client, led, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to initialize crawler", err.Error())
		os.Exit(1)
	}

	ctx, stop := stageContext()
	defer stop()

	res, runErr := crawler.Run(ctx)
	if res == nil {
		ui.PrintError("Discovery failed", runErr.Error())
		os.Exit(1)
	}

	run := report.New("discover", cfg.Site.URL)
	run.Add("pages scanned", res.PagesScanned)
	run.Add("pages resumed", res.Resumed)
	run.Add("pages skipped", res.PagesSkipped)
	run.Add("new permalinks", res.Permalinks)
	run.Finish()

	reportPath := filepath.Join(cfg.Archive.StateDirectory(), report.Filename("discover"))
	if err := run.Save(reportPath); err != nil {
		logger.WithError(err).Warn("Failed to save discovery report")
		reportPath = ""
	}
	run.Print(reportPath)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			ui.PrintWarning("Discovery interrupted, rerun to resume")
		} else {
			logger.WithError(runErr).Error("Discovery failed")
			ui.PrintError("Discovery failed", runErr.Error())
		}
		led.Close()
		os.Exit(1)
	}

	ui.PrintSuccess("Permalink discovery complete")
}
