package banner

import (
	"fmt"
	"io"
	"strings"
)

const banner = `
  ___        _    ___ _         _
 | __|_ _ __| |_ | __(_)_ _  __| |___ _ _
 | _/ _' (_-<  _|| _|| | ' \/ _' / -_) '_|
 |_|\__,_/__/\__||_| |_|_||_\__,_\___|_|
`

type StartupInfo struct {
	Version  string
	URL      string
	Bot      string
	HomeDC   int
	LogLevel string
}

// Print writes the startup banner with a summary of the running instance.
func Print(w io.Writer, info StartupInfo) {
	fmt.Fprint(w, banner)
	fmt.Fprintf(w, "                              v%s\n\n", info.Version)

	rule := strings.Repeat("─", 50)
	fmt.Fprintf(w, "  %s\n", rule)
	fmt.Fprintf(w, "  → Address:   %s\n", info.URL)
	fmt.Fprintf(w, "  → Bot:       @%s (dc %d)\n", info.Bot, info.HomeDC)
	fmt.Fprintf(w, "  → Log Level: %s\n", info.LogLevel)
	fmt.Fprintf(w, "  %s\n\n", rule)
}
