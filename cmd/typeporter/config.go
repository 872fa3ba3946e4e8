package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"typeporter/pkg/config"
	"typeporter/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage typeporter configuration.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TYPEPORTER_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as '.typeporter.yaml' in the current directory
unless a different path is given with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources:
  - Command line flags
  - Environment variables
  - Configuration file
  - Default values`,
	Run: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".typeporter.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# typeporter configuration
#
# Every option can also be set through environment variables prefixed
# with TYPEPORTER_, for example TYPEPORTER_SITE_URL, or through a .env
# file in the working directory.

# The blog being migrated
site:
  # Blog root URL (required for discover and archive)
  url: "https://example.typepad.com/my_blog/"

  # Channel metadata for the WordPress import
  title: "My Blog"
  author: "admin"

  # Extra hosts whose files count as shared assets (CDNs, the blog
  # platform's static host). The site's own host is always included.
  shared_hosts: []
  #  - "static.typepad.com"

# Fetch layer
fetch:
  # Concurrent fetch workers
  workers: 4

  # Pause between consecutive requests each worker makes to the source
  # host. Third-party asset hosts are not paced.
  request_delay: 500ms

  # Global request ceiling across all workers, 0 disables
  requests_per_minute: 0

  # Per-request timeout
  timeout: 30s

  # Retries for transient failures before a reference is degraded
  max_retries: 3
  retry_base_delay: 500ms

  # Backoff strategy: exponential, linear or constant
  backoff: "exponential"

# Archive stage output
archive:
  # One HTML file per post plus one folder per post for its assets
  output_dir: "./archive"

  # Folder under the root for assets shared between posts
  assets_subdir: "assets"

  # Ledger and reports; defaults to .state under the archive root
  state_dir: ""

# Media consolidation
dedup:
  output_dir: "./export"
  media_subdir: "typepad_media"

  # Images within this perceptual distance are the same picture.
  # 0 merges only byte-identical pictures.
  distance_threshold: 2

  map_file: "./export/rename_map.json"

# WordPress export
export:
  output_dir: "./export"

  # Bundles are named <prefix>.xml, or <prefix>-part-N.xml when chunked
  output_prefix: "import"

  # Maximum posts per bundle, 0 writes one bundle
  bundle_size: 100

  # URL prefix for consolidated media in exported post bodies
  media_base: "/wp-content/uploads/typepad_media/"

  # Permalink prefix for rewritten links between posts
  permalink_base: "/"

  # Explicit content container selector; leave empty to let the
  # exporter find the content itself
  content_selector: ""

  # Cleaning passes run by default; flip to keep the original markup
  keep_popup_links: false
  keep_empty_wrappers: false
  keep_whitespace_runs: false

# Permalink discovery
discover:
  start_page: 1
  page_delay: 1s
  permalinks_file: "./archive/permalinks.txt"

# Logging
logging:
  # debug, info, warn, error
  level: "info"

  # Log file path; empty logs to the terminal only
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file and set your blog's URL")
	fmt.Println("2. Run 'typeporter discover' to collect permalinks")
	fmt.Println("3. Run 'typeporter archive' to build the local archive")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Effective configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TYPEPORTER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: first of .typeporter.yaml, ~/.config/typeporter/config.yaml")
	}
	fmt.Println("4. Default values")
}
