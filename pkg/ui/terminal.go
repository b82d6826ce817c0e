package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ASCIILogo is printed on interactive commands
const ASCIILogo = `
    ╔════════════════════════════════════════════════╗
    ║  ██╗  ██╗██╗  ██╗███████╗                      ║
    ║  ╚██╗██╔╝██║  ██║██╔════╝   notes · comments   ║
    ║   ╚███╔╝ ███████║███████╗   users · search     ║
    ║   ██╔██╗ ██╔══██║╚════██║   media              ║
    ║  ██╔╝ ██╗██║  ██║███████║                      ║
    ║  ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝   web API scraper    ║
    ╚════════════════════════════════════════════════╝
`

var (
	mu      sync.Mutex
	out     io.Writer = os.Stdout
	quiet   bool
	noColor bool
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		plain := noColor
		mu.Unlock()
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// SetOutput redirects all printing, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetNoColor disables ANSI colors
func SetNoColor(v bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = v
}

func emit(always bool, format string, args ...interface{}) {
	mu.Lock()
	w, q := out, quiet
	mu.Unlock()
	if q && !always {
		return
	}
	fmt.Fprintf(w, format, args...)
}

// PrintLogo prints the ASCII logo
func PrintLogo() {
	emit(false, "%s", Cyan(ASCIILogo))
}

// PrintError prints an error message in red. It is shown in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg += ": " + fmt.Sprint(args[0])
	}
	emit(true, "%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	emit(false, "%s\n", Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	emit(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg += ": " + fmt.Sprint(args[0])
	}
	emit(false, "%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	emit(false, "%s\n", Magenta(msg))
}

// Println prints plain text unless quiet
func Println(args ...interface{}) {
	emit(false, "%s", fmt.Sprintln(args...))
}

// Printf prints formatted plain text unless quiet
func Printf(format string, args ...interface{}) {
	emit(false, format, args...)
}
