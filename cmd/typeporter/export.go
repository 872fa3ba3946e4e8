package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"typeporter/pkg/dedup"
	"typeporter/pkg/logger"
	"typeporter/pkg/report"
	"typeporter/pkg/storage"
	"typeporter/pkg/ui"
	"typeporter/pkg/wxr"
)

var (
	// Export command flags
	exportDir        string
	exportBundleSize int
	exportSelector   string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Extract post content and write WordPress import bundles",
	Long: `Extract the content of every archived post, rewrite its media
references through the rename map and its links to other posts into
their future permalinks, and write WordPress WXR 1.2 import bundles.

The stage is deterministic: exporting the same archive with the same
rename map writes byte-identical bundles, so diffs between runs mean
the inputs changed.`,
	Example: `  # Export with defaults
  typeporter export

  # One big bundle instead of chunks
  typeporter export --bundle-size 0

  # Posts live in a non-standard container on this blog
  typeporter export --selector "div.post-body"`,
	Run: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportDir, "export-dir", "", "export output directory (default from config)")
	exportCmd.Flags().IntVar(&exportBundleSize, "bundle-size", -1, "maximum posts per bundle, 0 for a single file (default from config)")
	exportCmd.Flags().StringVar(&exportSelector, "selector", "", "explicit content container selector")
}

func runExport(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if exportDir != "" {
		flags["export-dir"] = exportDir
	}
	if exportBundleSize >= 0 {
		flags["bundle-size"] = exportBundleSize
	}
	if exportSelector != "" {
		flags["selector"] = exportSelector
	}

	cfg := loadConfig(flags)

	renames, err := dedup.LoadRenameMap(cfg.Dedup.MapFile)
	if err != nil {
		ui.PrintError("Failed to load rename map", err.Error())
		fmt.Println("\nBuild it first:")
		fmt.Println("  typeporter consolidate")
		os.Exit(1)
	}

	archive, err := storage.NewArchive(cfg.Archive.OutputDir, cfg.Archive.AssetsSubdir)
	if err != nil {
		ui.PrintError("Failed to open archive tree", err.Error())
		os.Exit(1)
	}

	ui.PrintInfo("Archive", cfg.Archive.OutputDir)
	ui.PrintInfo("Bundles", cfg.Export.OutputDir)

	builder, err := wxr.NewBuilder(cfg, archive, renames, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to initialize exporter", err.Error())
		os.Exit(1)
	}

	ctx, stop := stageContext()
	defer stop()

	res, err := builder.Run(ctx)
	if err != nil {
		logger.WithError(err).Error("Export failed")
		ui.PrintError("Export failed", err.Error())
		os.Exit(1)
	}

	run := report.New("export", cfg.Site.URL)
	run.Add("posts exported", res.Posts)
	run.Add("documents without content", res.Skipped)
	run.Add("bundles written", len(res.Bundles))
	for _, u := range res.Unresolved {
		run.AddFailure(u.Document, u.Ref, "no canonical media file")
	}
	run.Finish()

	reportPath := filepath.Join(filepath.Dir(cfg.Dedup.MapFile), report.Filename("export"))
	if err := run.Save(reportPath); err != nil {
		logger.WithError(err).Warn("Failed to save export report")
		reportPath = ""
	}
	run.Print(reportPath)

	for _, bundle := range res.Bundles {
		ui.PrintInfo("Bundle", bundle)
	}
	ui.PrintSuccess("Export complete")
}
