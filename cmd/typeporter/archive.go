package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"typeporter/internal/archiver"
	"typeporter/pkg/discover"
	"typeporter/pkg/fetch"
	"typeporter/pkg/ledger"
	"typeporter/pkg/logger"
	"typeporter/pkg/report"
	"typeporter/pkg/resolve"
	"typeporter/pkg/storage"
	"typeporter/pkg/ui"
)

var (
	// Archive command flags
	archiveSite       string
	archiveWorkers    int
	archiveDelay      time.Duration
	archiveDir        string
	archivePermalinks string
)

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Fetch every post and its assets into a self-contained local tree",
	Long: `Fetch each post in the permalinks file together with everything it
references: stylesheets and their imports, scripts, icons, content
images and linked media files. References inside each page are
rewritten to the local copies, so the archive browses offline.

Finished documents are recorded in the ledger. An interrupted or
partially failed run can simply be rerun; completed work is skipped
and assets shared between posts are fetched only once.`,
	Example: `  # Archive the permalinks collected by discover
  typeporter archive

  # More workers against a different output tree
  typeporter archive --workers 8 --archive-dir ./blog-archive

  # Archive a hand-made permalink list
  typeporter archive --permalinks ./my_posts.txt`,
	Run: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringVar(&archiveSite, "site", "", "source site URL")
	archiveCmd.Flags().IntVar(&archiveWorkers, "workers", 0, "number of concurrent fetch workers (default from config)")
	archiveCmd.Flags().DurationVar(&archiveDelay, "delay", 0, "pause between requests to the source host (default from config)")
	archiveCmd.Flags().StringVar(&archiveDir, "archive-dir", "", "archive output directory (default from config)")
	archiveCmd.Flags().StringVar(&archivePermalinks, "permalinks", "", "permalinks file (default from config)")
}

func runArchive(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if archiveSite != "" {
		flags["site"] = archiveSite
	}
	if archiveWorkers > 0 {
		flags["workers"] = archiveWorkers
	}
	if archiveDelay > 0 {
		flags["delay"] = archiveDelay
	}
	if archiveDir != "" {
		flags["archive-dir"] = archiveDir
	}

	cfg := loadConfig(flags)
	if archivePermalinks != "" {
		cfg.Discover.PermalinksFile = archivePermalinks
	}
	requireSite(cfg)

	permalinks, err := discover.ReadPermalinks(cfg.Discover.PermalinksFile)
	if err != nil {
		ui.PrintError("Failed to read permalinks file", err.Error())
		os.Exit(1)
	}
	if len(permalinks) == 0 {
		ui.PrintError("No permalinks to archive", cfg.Discover.PermalinksFile)
		fmt.Println("\nCollect them first:")
		fmt.Println("  typeporter discover")
		os.Exit(1)
	}

	docs := archiver.Plan(permalinks)

	ui.PrintInfo("Source site", cfg.Site.URL)
	ui.PrintInfo("Documents", fmt.Sprintf("%d", len(docs)))
	ui.PrintInfo("Archive", cfg.Archive.OutputDir)

	led, err := ledger.Open(cfg.Archive.StateDirectory())
	if err != nil {
		ui.PrintError("Failed to open ledger", err.Error())
		os.Exit(1)
	}
	defer led.Close()

	archive, err := storage.NewArchive(cfg.Archive.OutputDir, cfg.Archive.AssetsSubdir)
	if err != nil {
		ui.PrintError("Failed to prepare archive tree", err.Error())
		os.Exit(1)
	}

	resolver, err := resolve.New(cfg.Site.URL, cfg.Site.SharedHosts)
	if err != nil {
		ui.PrintError("Failed to initialize resolver", err.Error())
		os.Exit(1)
	}

	client := fetch.NewClient(&cfg.Fetch, logger.GetLogger())
	siteCredentials(client, cfg)

	a := archiver.New(cfg, client, resolver, archive, led, logger.GetLogger())

	var display *ui.ProgressDisplay
	if !ui.QuietMode() {
		display = ui.NewProgressDisplay(siteHost(cfg), len(docs), verbose)
		a.SetProgress(display)
	}

	ctx, stop := stageContext()
	defer stop()

	summary, runErr := a.Run(ctx, permalinks)
	if display != nil {
		display.Complete()
	}

	run := report.New("archive", cfg.Site.URL)
	run.Add("documents", summary.Documents)
	run.Add("documents fetched", summary.DocumentsFetched)
	run.Add("documents kept from earlier runs", summary.DocumentsSkipped)
	run.Add("documents failed", summary.DocumentsFailed)
	run.Add("assets fetched", summary.AssetsFetched)
	run.Add("assets reused", summary.AssetsReused)
	for _, f := range summary.Failures {
		run.AddFailure(f.Document, f.URL, f.Reason)
	}
	run.Finish()

	reportPath := filepath.Join(cfg.Archive.StateDirectory(), report.Filename("archive"))
	if err := run.Save(reportPath); err != nil {
		logger.WithError(err).Warn("Failed to save archive report")
		reportPath = ""
	}
	run.Print(reportPath)

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		ui.PrintWarning("Archive interrupted, rerun to resume")
		led.Close()
		os.Exit(1)
	}

	if summary.DocumentsFailed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d documents still pending, rerun to retry them", summary.DocumentsFailed))
		led.Close()
		os.Exit(1)
	}

	ui.PrintSuccess("Archive complete")
	fmt.Println("\nNext step:")
	fmt.Println("  typeporter consolidate")
}
