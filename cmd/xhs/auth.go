package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/CNHLAIA/XHS-Scraper/pkg/auth"
	"github.com/CNHLAIA/XHS-Scraper/pkg/qrlogin"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ui"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

var (
	saveName     string
	saveCookies  string
	chromeDBPath string
	qrBudget     time.Duration
	qrInterval   time.Duration
	loginUA      string
	skipGuide    bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Xiaohongshu sessions",
	Long: `Manage the browser sessions requests run under.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (XHS_COOKIES, or XHS_A1 and XHS_WEB_SESSION)

Never share your cookies or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a session from pasted cookies",
	Long: `Store a session by pasting the Cookie header of a logged-in browser.

The value is read without echo. It must contain at least a1 and
web_session.`,
	Example: `  xhs auth login
  xhs auth login work --user-agent "Mozilla/5.0 ..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess("Session removed: " + args[0])
		return nil
	},
}

var importChromeCmd = &cobra.Command{
	Use:   "import-chrome",
	Short: "Import the session from Chrome's cookie database",
	Long: `Read xiaohongshu cookies from the local Chrome profile and store them.

Chrome must have been logged in to xiaohongshu.com. On macOS the keychain
may ask for permission to read "Chrome Safe Storage".`,
	Example: `  xhs auth import-chrome
  xhs auth import-chrome --db ~/.config/google-chrome/Profile\ 1/Cookies --name alt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cookies, err := auth.ExtractChromeCookies(cmd.Context(), chromeDBPath, log)
		if err != nil {
			return fmt.Errorf("failed to read Chrome cookies: %w", err)
		}
		return storeSession(cookies, "")
	},
}

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Log in by scanning a QR code with the mobile app",
	Long: `Create a login QR code, print its URL, and wait until the code is
scanned and confirmed in the Xiaohongshu app. Paste the URL into any QR
generator or open it on the phone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		signer, err := newSigner()
		if err != nil {
			return err
		}
		device := qrlogin.NewDeviceCookies()
		opts := append(clientOptions(signer, loginUA), xhs.WithRequiredCookies("a1"))
		client, err := xhs.NewClient(device, opts...)
		if err != nil {
			return err
		}
		if err := client.Open(ctx); err != nil {
			return err
		}
		defer client.Close()

		cookies, err := qrlogin.New(client, log).Run(ctx, qrBudget, qrInterval, func(s *qrlogin.Session) {
			ui.PrintHighlight("Scan this QR code with the Xiaohongshu app:")
			ui.Println(s.URL)
			ui.Println(ui.Dim(fmt.Sprintf("Waiting up to %s for confirmation...", qrBudget)))
		})
		if err != nil {
			return err
		}

		merged := make(map[string]string, len(device)+len(cookies))
		for k, v := range device {
			merged[k] = v
		}
		for k, v := range cookies {
			merged[k] = v
		}
		return storeSession(merged, loginUA)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, listCmd, logoutCmd, importChromeCmd, qrCmd)

	for _, c := range []*cobra.Command{importChromeCmd, qrCmd} {
		c.Flags().StringVar(&saveName, "name", "default", "name to store the session under")
		c.Flags().StringVar(&saveCookies, "save-cookies", "", "also write the cookies to this JSON file")
	}
	loginCmd.Flags().StringVar(&saveCookies, "save-cookies", "", "also write the cookies to this JSON file")
	loginCmd.Flags().StringVar(&loginUA, "user-agent", "", "user agent of the browser the cookies came from")
	loginCmd.Flags().BoolVar(&skipGuide, "no-guide", false, "skip the cookie extraction guide")
	qrCmd.Flags().StringVar(&loginUA, "user-agent", "", "user agent to log in with")
	qrCmd.Flags().DurationVar(&qrBudget, "timeout", qrlogin.DefaultBudget, "how long to wait for the scan")
	qrCmd.Flags().DurationVar(&qrInterval, "interval", qrlogin.DefaultInterval, "status poll interval")
	importChromeCmd.Flags().StringVar(&chromeDBPath, "db", "", "path to Chrome's Cookies database (default profile if empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	if skipGuide {
		auth.ShowQuickExtractGuide(os.Stdout)
	} else {
		auth.ShowCookieExtractionGuide(os.Stdout)
	}

	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	saveName = name

	for {
		fmt.Print("\nCookie header (hidden): ")
		header, err := readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read cookies: %w", err)
		}
		if strings.EqualFold(header, "help") {
			auth.ShowCookieExtractionGuide(os.Stdout)
			continue
		}

		cookies := auth.ParseCookieHeader(header)
		if err := auth.ValidateCookies(cookies); err != nil {
			ui.PrintError("That does not look like a usable session", err)
			fmt.Print("Try again? (Y/n): ")
			again, _ := reader.ReadString('\n')
			if strings.EqualFold(strings.TrimSpace(again), "n") {
				return err
			}
			continue
		}
		return storeSession(cookies, loginUA)
	}
}

// storeSession validates cookies, saves them under saveName and
// optionally to a cookie file.
func storeSession(cookies map[string]string, userAgent string) error {
	if err := auth.ValidateCookies(cookies); err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return err
	}
	account := &auth.Account{
		Name:         saveName,
		Cookies:      cookies,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	if saveCookies != "" {
		if err := auth.SaveCookiesFile(saveCookies, cookies); err != nil {
			return err
		}
		ui.PrintInfo("Cookies written to", saveCookies)
	}

	sanitized := auth.SanitizeAccount(account)
	ui.PrintSuccess("Session saved: " + account.Name)
	ui.PrintInfo("a1", sanitized.Cookies["a1"])
	ui.PrintInfo("web_session", sanitized.Cookies["web_session"])
	ui.Println("\nUse it with:")
	ui.Printf("  xhs user self --account %s\n", account.Name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return err
	}
	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored sessions", "use 'xhs auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored sessions")
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		ui.Printf("%d. %s\n", i+1, sanitized.Name)
		ui.Printf("   Cookies: %d (a1 %s, web_session %s)\n", len(sanitized.Cookies), sanitized.Cookies["a1"], sanitized.Cookies["web_session"])
		if sanitized.UserAgent != "" {
			ui.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		ui.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
