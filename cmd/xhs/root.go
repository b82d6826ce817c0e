package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/CNHLAIA/XHS-Scraper/pkg/config"
	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
	"github.com/CNHLAIA/XHS-Scraper/pkg/logger"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	accountName string
	cookiesFile string
	signServer  string
	outputDir   string
	format      string
	noColor     bool
	quiet       bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "xhs",
	Short: "Scrape notes, comments, users and search results from Xiaohongshu",
	Long: `xhs is a command-line client for the Xiaohongshu web API.

It signs and paces requests, follows cursor and page pagination, and
writes results as JSON or CSV. Requests run on a logged-in browser
session: store one with 'xhs auth login', 'xhs auth import-chrome' or
'xhs auth qr'. Signing is delegated to an external service set with
--sign-server or XHS_SIGN_SERVER_URL.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetNoColor(noColor)
		ui.SetQuietMode(quiet)
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}

		flags := map[string]interface{}{
			"account":     accountName,
			"cookies":     cookiesFile,
			"sign-server": signServer,
			"output":      outputDir,
			"format":      format,
			"log-level":   logLevel,
		}
		loaded, err := config.Load(configFile, flags)
		if err != nil {
			return xerrors.InvalidConfig("%v", err)
		}
		cfg = loaded

		if err := logger.Initialize(&cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		log = logger.GetLogger()
		log.WithField("command", cmd.CommandPath()).Debug("Starting command")
		return nil
	},
}

// Execute runs the root command and maps errors to exit codes
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes caller mistakes (2) from session problems (3)
// and everything else (1).
func exitCode(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrInvalidConfig), errors.Is(err, xerrors.ErrUsage):
		return 2
	case errors.Is(err, xerrors.ErrCookieExpired), errors.Is(err, xerrors.ErrSignature), errors.Is(err, xerrors.ErrCaptcha):
		return 3
	default:
		return 1
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (YAML)")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVarP(&accountName, "account", "a", "", "stored account to use")
	pf.StringVar(&cookiesFile, "cookies", "", "JSON cookie file to use instead of a stored account")
	pf.StringVar(&signServer, "sign-server", "", "URL of the request signing service")
	pf.StringVarP(&outputDir, "output", "o", "", "output directory")
	pf.StringVarP(&format, "format", "f", "", "output format: json, csv or both")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`xhs {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
