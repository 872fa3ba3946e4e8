package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"typeporter/pkg/auth"
	"typeporter/pkg/config"
	"typeporter/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage source-site credentials",
	Long: `Manage the HTTP Basic credentials used to fetch password-protected
blogs. Public blogs need none of this.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (TYPEPORTER_SITE_USERNAME / TYPEPORTER_SITE_PASSWORD)

The fetch layer is the only consumer; credentials never appear in logs
or reports.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [site]",
	Short: "Store credentials for a source site",
	Long: `Store the username and password for one source site. The site is the
blog's host name; it defaults to the host of the configured site URL.

The password is read without echo.`,
	Example: `  # Store credentials for the configured site
  typeporter auth login

  # Store credentials for an explicit host
  typeporter auth login blog.example.com`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// showCmd represents the auth show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored credentials",
	Long:  `Show all stored source-site credentials with passwords masked.`,
	Run:   runShow,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [site]",
	Short: "Remove stored credentials",
	Long: `Remove the stored credentials for a source site. With no argument the
site defaults to the host of the configured site URL.`,
	Example: `  # Remove credentials for the configured site
  typeporter auth logout

  # Remove credentials for an explicit host
  typeporter auth logout blog.example.com`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(showCmd)
	authCmd.AddCommand(logoutCmd)
}

// resolveSiteArg turns the optional site argument into a host name,
// falling back to the configured site URL
func resolveSiteArg(args []string) string {
	if len(args) > 0 {
		site := strings.TrimSpace(args[0])
		if strings.Contains(site, "://") {
			if parsed, err := url.Parse(site); err == nil && parsed.Host != "" {
				return parsed.Host
			}
		}
		return strings.TrimSuffix(site, "/")
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil || cfg.Site.URL == "" {
		return ""
	}
	parsed, err := url.Parse(cfg.Site.URL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	site := resolveSiteArg(args)
	if site == "" {
		fmt.Print("Site host (e.g. blog.example.com): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read site", err.Error())
			os.Exit(1)
		}
		site = strings.TrimSpace(input)
	}
	if site == "" {
		ui.PrintError("Site is required", "")
		os.Exit(1)
	}

	// Confirm before replacing stored credentials
	if existing, _ := manager.Retrieve(site); existing != nil {
		fmt.Printf("Credentials for '%s' already exist. Update them? (y/N): ", site)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Printf("Username for %s: ", site)
	input, err := reader.ReadString('\n')
	if err != nil {
		ui.PrintError("Failed to read username", err.Error())
		os.Exit(1)
	}
	username := strings.TrimSpace(input)
	if username == "" {
		ui.PrintError("Username is required", "")
		os.Exit(1)
	}

	fmt.Print("Password (hidden as you type): ")
	password, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}
	if password == "" {
		ui.PrintError("Password is required", "")
		os.Exit(1)
	}

	creds := &auth.Credentials{
		Site:     site,
		Username: username,
		Password: password,
	}

	if err := manager.Store(creds); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Credentials saved for " + site)
	fmt.Println("\nThey will be used automatically:")
	fmt.Println("  typeporter discover")
	fmt.Println("  typeporter archive")
}

func runShow(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	all, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list credentials", err.Error())
		os.Exit(1)
	}

	if len(all) == 0 {
		ui.PrintInfo("No stored credentials", "Use 'typeporter auth login' to add some")
		return
	}

	ui.PrintHighlight("Stored credentials")
	fmt.Println()

	for i, creds := range all {
		sanitized := auth.Sanitize(creds)
		fmt.Printf("%d. Site: %s\n", i+1, sanitized.Site)
		fmt.Printf("   Username: %s\n", sanitized.Username)
		fmt.Printf("   Password: %s\n", sanitized.Password)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	site := resolveSiteArg(args)
	if site == "" {
		ui.PrintError("No site given and none configured", "typeporter auth logout <site>")
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("Remove credentials for '%s'? (y/N): ", site)
	input, _ := reader.ReadString('\n')
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
		return
	}

	if err := manager.Delete(site); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Credentials removed for " + site)
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	// Try to read without echo
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after password
		if err == nil {
			return string(password), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
