package observability

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorBold     = "\033[1m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

// termMu serialises log writes with REPL output so lines never interleave.
var termMu sync.Mutex

// ------------------------------------------------------------
// Utility
// ------------------------------------------------------------

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func termWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

func colorize(w io.Writer, color, s string) string {
	if f, ok := w.(*os.File); !ok || !IsTerminal(f) {
		return s
	}
	return color + s + colorReset
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ------------------------------------------------------------
// TermWriter – a mutex-guarded io.Writer for log output while
// the REPL owns the terminal.
// ------------------------------------------------------------

type termWriter struct {
	out io.Writer
}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return tw.out.Write(p)
}

// NewTermWriter wraps out so that writes are serialised with Println.
func NewTermWriter(out io.Writer) io.Writer {
	return termWriter{out: out}
}

// Println writes one line under the terminal lock.
func Println(w io.Writer, s string) {
	termMu.Lock()
	defer termMu.Unlock()
	fmt.Fprintln(w, s)
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner(w io.Writer, tools []string) {
	banner := `
 _              _                         _
| |_ ___   ___ | | __ _  __ _  ___ _ __ | |_
| __/ _ \ / _ \| |/ _' |/ _' |/ _ \ '_ \| __|
| || (_) | (_) | | (_| | (_| |  __/ | | | |_
 \__\___/ \___/|_|\__,_|\__, |\___|_| |_|\__|
                        |___/
`
	width := termWidth(w)
	for _, l := range strings.Split(banner, "\n") {
		padding := clamp((width-len(l))/2, 0, width)
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", padding), colorize(w, colorNeonCyan, l))
	}

	line := "tools: " + strings.Join(tools, ", ")
	fmt.Fprintln(w, colorize(w, colorPurple, line))
	fmt.Fprintln(w, "Type a question, :tools, :stats or :quit.")
}

// ------------------------------------------------------------
// Stats
// ------------------------------------------------------------

// PrintStats renders a Snapshot with a memory bar, for the REPL :stats command.
func PrintStats(w io.Writer, snap Snapshot) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memMB := float64(m.Alloc) / 1024 / 1024
	totalMB := float64(m.Sys) / 1024 / 1024
	memPercent := 0.0
	if totalMB > 0 {
		memPercent = memMB / totalMB
	}

	barWidth := 20
	filled := clamp(int(memPercent*float64(barWidth)), 0, barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)
	barColor := colorNeonCyan
	if memPercent > 0.7 {
		barColor = colorNeonMag
	}

	outcomes := make([]string, 0, len(snap.Counts))
	for o, n := range snap.Counts {
		outcomes = append(outcomes, fmt.Sprintf("%s=%d", o, n))
	}
	sort.Strings(outcomes)

	last := "-"
	if !snap.LastSeen.IsZero() {
		last = snap.LastSeen.Format("15:04:05") + " " + snap.LastRequest
	}

	termMu.Lock()
	defer termMu.Unlock()
	fmt.Fprintf(w, "%s queries: %d [%s]\n", colorize(w, colorBold, "stats"), snap.Total, strings.Join(outcomes, " "))
	fmt.Fprintf(w, "last: %s | uptime: %v | mem %s %.1fMB\n",
		last, snap.Uptime.Round(time.Second), colorize(w, barColor, bar), memMB)
}
