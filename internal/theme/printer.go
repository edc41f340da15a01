package theme

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"smiactl/internal/api"
	"smiactl/internal/script"
	"smiactl/internal/stream"
)

// Printer renders console output with a color scheme. It is safe for use by
// the prompt and the stream client at the same time.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	colors *ColorScheme
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, colors *ColorScheme) *Printer {
	if colors == nil {
		colors = DefaultColorScheme()
	}
	return &Printer{w: w, colors: colors}
}

// Colors returns the scheme used by the printer.
func (p *Printer) Colors() *ColorScheme {
	return p.colors
}

// Header prints a section title.
func (p *Printer) Header(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.colors.Header.Sprint(text))
}

// Plain prints an uncolored line.
func (p *Printer) Plain(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors.Success.Fprintf(p.w, "✓ "+format+"\n", args...)
}

// Failure prints a line prefixed with a cross.
func (p *Printer) Failure(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors.Error.Fprintf(p.w, "✗ "+format+"\n", args...)
}

// Muted prints a dimmed line.
func (p *Printer) Muted(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors.Muted.Fprintf(p.w, format+"\n", args...)
}

// FormatEntry renders a log entry as "15:04:05.000 SEVERITY SOURCE: message"
// without colors.
func FormatEntry(e stream.LogEntry) string {
	stamp := e.Timestamp
	if t := e.Time(); !t.IsZero() {
		stamp = t.Local().Format("15:04:05.000")
	}
	return fmt.Sprintf("%s %-7s %s: %s", stamp, e.Severity, e.Source, e.Message)
}

// Entry prints a stream log entry colored by severity. Errors reported by
// the commands users most often get wrong are followed by hints.
func (p *Printer) Entry(e stream.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors.Severity(e.Severity).Fprintln(p.w, FormatEntry(e))
	if e.Severity == stream.SeverityError && api.Notifiable(e.Source) {
		p.hintsLocked(api.Suggest(e.Source, e.Message))
	}
}

// Entries prints entries in order.
func (p *Printer) Entries(entries []stream.LogEntry) {
	for _, e := range entries {
		p.Entry(e)
	}
}

// APIError prints a failed command with its title, status and hints.
func (p *Printer) APIError(err api.Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	title := err.Title
	if title == "" {
		title = api.Title(err.Command)
	}
	p.colors.Error.Fprintf(p.w, "✗ %s: %s\n", title, err.Error())
	p.hintsLocked(err.Suggestions)
}

func (p *Printer) hintsLocked(hints []string) {
	for _, hint := range hints {
		p.colors.Muted.Fprintf(p.w, "  • %s\n", hint)
	}
}

// Result prints the outcome of one script line.
func (p *Printer) Result(r script.Result) {
	if r.Success {
		p.Success("[%d] %s: %s", r.Line, r.Canonical, r.Message)
		return
	}
	var apiErr api.Error
	if errors.As(r.Err, &apiErr) {
		p.mu.Lock()
		p.colors.Error.Fprintf(p.w, "✗ [%d] %s: %s\n", r.Line, r.Command, r.Message)
		p.hintsLocked(apiErr.Suggestions)
		p.mu.Unlock()
		return
	}
	p.Failure("[%d] %s: %s", r.Line, r.Command, r.Message)
}

// Report prints a table of every line of a script run and a summary.
func (p *Printer) Report(report script.Report) error {
	data := pterm.TableData{{"Line", "Status", "Command", "Message"}}
	for _, r := range report.Results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		data = append(data, []string{strconv.Itoa(r.Line), status, r.Command, firstLine(r.Message)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, table)
	summary := p.colors.Success
	if report.Failed > 0 {
		summary = p.colors.Error
	}
	summary.Fprintf(p.w, "%d succeeded, %d failed in %s\n", report.Succeeded, report.Failed, report.Elapsed.Round(time.Millisecond))
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
