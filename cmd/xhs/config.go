package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CNHLAIA/XHS-Scraper/pkg/config"
	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ui"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage xhs configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (XHS_*)
  - .env files (./.env and ~/.xhs.env)
  - Configuration file
  - Default values (lowest priority)`,
	// config commands load the file themselves so a broken file can be
	// inspected instead of aborting before the command runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetNoColor(noColor)
		ui.SetQuietMode(quiet)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default values",
	Long: `Write the default configuration as YAML. The path defaults to --config,
then ~/.config/xhs/config.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The sign server
URL is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check it.

This command checks:
  - YAML syntax
  - Required fields and value ranges
  - Output and log directory accessibility
  - Whether a signing service and a session are configured`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to find home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "xhs", "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return xerrors.Usage("configuration file %s already exists; pass --force to overwrite", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.Println("\nNext steps:")
	ui.Println("1. Set xhs.sign_server_url to your signing service")
	ui.Println("2. Store a session with 'xhs auth login' or 'xhs auth qr'")
	ui.Println("3. Run 'xhs config validate' to check the result")
	return nil
}

func loadForDisplay() (*config.Config, error) {
	cfg, err := config.Load(configFile, map[string]interface{}{
		"account":     accountName,
		"cookies":     cookiesFile,
		"sign-server": signServer,
		"output":      outputDir,
		"format":      format,
		"log-level":   logLevel,
	})
	if err != nil {
		return nil, xerrors.InvalidConfig("%v", err)
	}
	return cfg, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadForDisplay()
	if err != nil {
		return err
	}

	display := *cfg
	display.XHS.SignServerURL = maskValue(display.XHS.SignServerURL)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println()
	ui.Printf("%s", data)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadForDisplay()
	if err != nil {
		return err
	}

	var problems, warnings []string

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.XHS.CookiesFile != "" {
		if _, err := os.Stat(cfg.XHS.CookiesFile); err != nil {
			problems = append(problems, fmt.Sprintf("cookies file: %v", err))
		}
	}

	if cfg.XHS.SignServerURL == "" {
		warnings = append(warnings, "no signing service configured (xhs.sign_server_url)")
	}
	if !cfg.RateLimit.Enabled {
		warnings = append(warnings, "rate limiting is disabled")
	}

	if len(problems) > 0 {
		for _, p := range problems {
			ui.Printf("  - %s\n", p)
		}
		return xerrors.InvalidConfig("configuration has %d problem(s)", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			ui.Printf("  - %s\n", w)
		}
		ui.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	ui.Println("\nConfiguration summary:")
	ui.Printf("  Output: %s (%s)\n", cfg.Output.Directory, cfg.Output.Format)
	ui.Printf("  Rate limit: %.2f requests/second, burst %.0f\n", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	ui.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	ui.Printf("  Download concurrency: %d\n", cfg.Download.Concurrency)
	ui.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func maskValue(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 12:
		return s[:8] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}
