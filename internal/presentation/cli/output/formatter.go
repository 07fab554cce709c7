// Package output renders command results and sync events for the terminal.
// A Formatter is safe for concurrent use.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

// Format is the value of the global --output flag.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat maps a flag value to a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatTable:
		return f, nil
	default:
		return FormatText, fmt.Errorf("unknown output format %q: must be text, json or table", s)
	}
}

// Color is an ANSI escape sequence.
type Color string

const (
	ColorReset   Color = "\033[0m"
	ColorRed     Color = "\033[31m"
	ColorGreen   Color = "\033[32m"
	ColorYellow  Color = "\033[33m"
	ColorBlue    Color = "\033[34m"
	ColorMagenta Color = "\033[35m"
	ColorCyan    Color = "\033[36m"
	ColorBold    Color = "\033[1m"
	ColorDim     Color = "\033[2m"
)

func paint(text string, c Color, enabled bool) string {
	if !enabled || text == "" {
		return text
	}
	return string(c) + text + string(ColorReset)
}

// Formatter writes command output in the selected format.
type Formatter struct {
	mu      sync.Mutex
	writer  io.Writer
	format  Format
	colored bool
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(f *Formatter) { f.writer = w }
}

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(f *Formatter) { f.format = format }
}

// WithColor enables or disables ANSI colors.
func WithColor(enabled bool) Option {
	return func(f *Formatter) { f.colored = enabled }
}

// NewFormatter creates a text formatter writing to stdout.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		writer:  os.Stdout,
		format:  FormatText,
		colored: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format returns the output format.
func (f *Formatter) Format() Format {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

// Println writes a formatted line.
func (f *Formatter) Println(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := fmt.Fprintf(f.writer, format+"\n", args...)
	return err
}

func (f *Formatter) status(mark string, c Color, format string, args ...any) error {
	return f.Println("%s", paint(mark+" "+fmt.Sprintf(format, args...), c, f.colored))
}

// Success writes a green confirmation line.
func (f *Formatter) Success(format string, args ...any) error {
	return f.status("✓", ColorGreen, format, args...)
}

// Error writes a red failure line.
func (f *Formatter) Error(format string, args ...any) error {
	return f.status("✗", ColorRed, format, args...)
}

// Info writes a blue informational line.
func (f *Formatter) Info(format string, args ...any) error {
	return f.status("ℹ", ColorBlue, format, args...)
}

// Bold returns text in bold when colors are enabled.
func (f *Formatter) Bold(text string) string { return paint(text, ColorBold, f.colored) }

// Dim returns text dimmed when colors are enabled.
func (f *Formatter) Dim(text string) string { return paint(text, ColorDim, f.colored) }

// Header writes a bold title underlined to its width.
func (f *Formatter) Header(title string) error {
	return f.Println("%s\n%s", paint(title, ColorBold, f.colored), strings.Repeat("─", utf8.RuneCountInString(title)))
}

// SubHeader writes a cyan section title.
func (f *Formatter) SubHeader(title string) error {
	return f.Println("%s", paint(title, ColorCyan, f.colored))
}

// Item writes an indented "key: value" line.
func (f *Formatter) Item(key, value string) error {
	return f.Println("  %s: %s", paint(key, ColorDim, f.colored), value)
}

// Alignment is a table cell alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// TableColumn describes one column. Width is a minimum; cells never truncate.
type TableColumn struct {
	Header string
	Width  int
	Align  Alignment
}

// TableData is a header plus rows of cells.
type TableData struct {
	Columns []TableColumn
	Rows    [][]string
}

// Table writes data as aligned columns. Widths count runes, so message
// bodies with non-ASCII text line up.
func (f *Formatter) Table(data TableData) error {
	if len(data.Columns) == 0 {
		return nil
	}

	widths := make([]int, len(data.Columns))
	for i, col := range data.Columns {
		widths[i] = max(col.Width, utf8.RuneCountInString(col.Header))
	}
	for _, row := range data.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], utf8.RuneCountInString(row[i]))
		}
	}

	render := func(cells []string) string {
		parts := make([]string, len(data.Columns))
		for i, col := range data.Columns {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = pad(cell, widths[i], col.Align)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	headers := make([]string, len(data.Columns))
	rules := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		headers[i] = col.Header
		rules[i] = strings.Repeat("-", widths[i])
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := fmt.Fprintln(f.writer, paint(render(headers), ColorBold, f.colored)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f.writer, strings.Join(rules, "  ")); err != nil {
		return err
	}
	for _, row := range data.Rows {
		if _, err := fmt.Fprintln(f.writer, render(row)); err != nil {
			return err
		}
	}
	return nil
}

func pad(text string, width int, align Alignment) string {
	n := width - utf8.RuneCountInString(text)
	if n <= 0 {
		return text
	}
	if align == AlignRight {
		return strings.Repeat(" ", n) + text
	}
	return text + strings.Repeat(" ", n)
}

// JSON writes v as indented JSON.
func (f *Formatter) JSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
