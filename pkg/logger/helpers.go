package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	sectionColor    = color.New(color.FgCyan, color.Bold)
	subSectionColor = color.New(color.FgHiBlack)
	keyColor        = color.New(color.FgCyan)
	successColor    = color.New(color.FgGreen)
)

// Icons prefixed to console messages
const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconDot     = "•"
)

// output returns the default logger's writer and whether it may be colored.
func output() (io.Writer, bool) {
	l, ok := defaultLogger.(*logger)
	if !ok {
		return io.Discard, false
	}
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.writer, !l.s.noColor
}

func colorEnabled() bool {
	_, colored := output()
	return colored
}

// paint renders s with c unless color is off.
func paint(c *color.Color, colored bool, s string) string {
	if !colored {
		return s
	}
	return c.Sprint(s)
}

// Success logs a success message with a checkmark
func Success(args ...interface{}) {
	message := fmt.Sprint(args...)
	defaultLogger.Info(paint(successColor, colorEnabled(), IconSuccess) + " " + message)
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

func banner(c *color.Color, ruler string, width int, title string) {
	w, colored := output()
	line := strings.Repeat(ruler, width)
	_, _ = fmt.Fprintln(w, paint(c, colored, line))
	_, _ = fmt.Fprintln(w, paint(c, colored, title))
	_, _ = fmt.Fprintln(w, paint(c, colored, line))
}

// LogSection prints a title between double rulers
func LogSection(title string) {
	banner(sectionColor, "=", 50, title)
}

// LogSubSection prints a title between single rulers
func LogSubSection(title string) {
	banner(subSectionColor, "-", 40, title)
}

// LogList logs a title followed by one bullet per item
func LogList(title string, items []string) {
	Info(title)
	w, _ := output()
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  %s %s\n", IconDot, item)
	}
}

// LogKeyValue prints "key: value"
func LogKeyValue(key string, value interface{}) {
	w, colored := output()
	_, _ = fmt.Fprintf(w, "%s %v\n", paint(keyColor, colored, key+":"), value)
}

// Table is a left aligned text table
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow adds a row. Cells past the header count are dropped.
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print writes the table to the default logger's output
func (t *Table) Print() {
	w, _ := output()
	t.Render(w)
}

// Render writes the table to w
func (t *Table) Render(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}

	writeRow(t.headers)
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	writeRow(rule)
	for _, row := range t.rows {
		writeRow(row)
	}
}
