package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide prints step-by-step instructions for copying
// the session cookies out of a logged-in browser.
func ShowCookieExtractionGuide(w io.Writer) {
	line := strings.Repeat("=", 80)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "XIAOHONGSHU COOKIE EXTRACTION GUIDE")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This tool signs API calls with your browser session cookies.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Log in at https://www.xiaohongshu.com and open any note")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools (F12, or Cmd+Option+I on Mac)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Copy the cookies")
	fmt.Fprintln(w, "   METHOD A - Network tab:")
	fmt.Fprintln(w, "   1. Refresh the page and pick any request to edith.xiaohongshu.com")
	fmt.Fprintln(w, "   2. Under Request Headers copy the whole 'Cookie:' value")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "   METHOD B - Application/Storage tab:")
	fmt.Fprintln(w, "   1. Expand Cookies and select https://www.xiaohongshu.com")
	fmt.Fprintln(w, "   2. Copy the values of the cookies below")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "   Required cookies:")
	fmt.Fprintln(w, "     a1           device id, about 50 hex characters")
	fmt.Fprintln(w, "     web_session  login session, starts with 0400")
	fmt.Fprintln(w, "   Recommended: webId, gid, websectiga, sec_poison_id")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Alternatively run 'xhs auth import-chrome' or 'xhs auth qr'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SECURITY WARNING: these cookies give full access to your account.")
	fmt.Fprintln(w, "Never share them; this tool stores them encrypted or in your keychain.")
	fmt.Fprintln(w, line)
}

// ShowQuickExtractGuide prints a one-line reminder for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "\nQuick guide: F12 -> Network -> any edith.xiaohongshu.com request -> Headers -> Cookie")
	fmt.Fprintln(w, "   Need at least: a1=... and web_session=...")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
