package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"typeporter/pkg/dedup"
	"typeporter/pkg/logger"
	"typeporter/pkg/report"
	"typeporter/pkg/ui"
)

var (
	// Consolidate command flags
	consolidateExportDir string
	consolidateThreshold int
)

// consolidateCmd represents the consolidate command
var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge duplicate media from the archive into one canonical folder",
	Long: `Walk the archived media and copy one canonical file per distinct
image or download into the media folder. Images that differ only in
re-encoding or scaling are recognized by perceptual fingerprint and
merged; other files are merged on identical bytes.

The stage writes a rename map recording where every archived file
ended up. The export stage reads that map to point post bodies at the
canonical copies. Re-running over the same archive produces the same
map.`,
	Example: `  # Consolidate with defaults
  typeporter consolidate

  # Stricter image matching (0 = byte-exact pictures only)
  typeporter consolidate --threshold 0`,
	Run: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)

	consolidateCmd.Flags().StringVar(&consolidateExportDir, "export-dir", "", "export output directory (default from config)")
	consolidateCmd.Flags().IntVar(&consolidateThreshold, "threshold", -1, "perceptual distance at or under which images merge (default from config)")
}

func runConsolidate(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if consolidateExportDir != "" {
		flags["export-dir"] = consolidateExportDir
	}
	if consolidateThreshold >= 0 {
		flags["threshold"] = consolidateThreshold
	}

	cfg := loadConfig(flags)

	if _, err := os.Stat(cfg.Archive.OutputDir); err != nil {
		ui.PrintError("No archive found", cfg.Archive.OutputDir)
		fmt.Println("\nBuild it first:")
		fmt.Println("  typeporter archive")
		os.Exit(1)
	}

	ui.PrintInfo("Archive", cfg.Archive.OutputDir)
	ui.PrintInfo("Media folder", filepath.Join(cfg.Dedup.OutputDir, cfg.Dedup.MediaSubdir))

	consolidator := dedup.New(cfg, cfg.Archive.OutputDir, logger.GetLogger())

	ctx, stop := stageContext()
	defer stop()

	res, err := consolidator.Run(ctx)
	if err != nil {
		logger.WithError(err).Error("Consolidation failed")
		ui.PrintError("Consolidation failed", err.Error())
		os.Exit(1)
	}

	run := report.New("consolidate", cfg.Site.URL)
	run.Add("media files scanned", res.Scanned)
	run.Add("canonical files", res.Canonical)
	run.Add("duplicates merged", res.Merged)
	run.Add("images hashed exactly", res.Fallbacks)
	run.Finish()

	reportPath := filepath.Join(filepath.Dir(cfg.Dedup.MapFile), report.Filename("consolidate"))
	if err := run.Save(reportPath); err != nil {
		logger.WithError(err).Warn("Failed to save consolidation report")
		reportPath = ""
	}
	run.Print(reportPath)

	ui.PrintInfo("Rename map", cfg.Dedup.MapFile)
	ui.PrintSuccess("Media consolidation complete")
	fmt.Println("\nNext step:")
	fmt.Println("  typeporter export")
}
