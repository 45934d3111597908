// Package diag collects diagnostics about shader programs and provides the
// structured logger used by the optimization passes.
package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Pos locates a diagnostic in a program source. Line is 1-based; zero means
// the diagnostic applies to the whole program.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	switch {
	case p.File == "" && p.Line == 0:
		return ""
	case p.Line == 0:
		return p.File
	case p.File == "":
		return fmt.Sprintf("line %d", p.Line)
	default:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
}

// Diagnostic is one reported issue.
type Diagnostic struct {
	Pos      Pos
	Severity Severity
	Message  string
}

// Reporter writes diagnostics in text or JSON form and counts errors.
// It is safe for concurrent use.
type Reporter struct {
	mu       sync.Mutex
	w        io.Writer
	format   string
	errors   int
	warnings int
	diags    []Diagnostic
	level    slog.LevelVar
	logger   *slog.Logger
}

// NewReporter creates a reporter writing to w. format is "text" or "json";
// anything else falls back to text.
func NewReporter(w io.Writer, format string) *Reporter {
	if format != "json" {
		format = "text"
	}
	r := &Reporter{w: w, format: format}
	r.level.Set(slog.LevelInfo)
	opts := &slog.HandlerOptions{
		Level:       &r.level,
		ReplaceAttr: dropTime,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	r.logger = slog.New(handler)
	return r
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// SetVerbose enables debug-level logging.
func (r *Reporter) SetVerbose(v bool) {
	if v {
		r.level.Set(slog.LevelDebug)
	} else {
		r.level.Set(slog.LevelInfo)
	}
}

// Logger returns the structured logger sharing the reporter's output.
func (r *Reporter) Logger() *slog.Logger {
	return r.logger
}

// Error reports an error at pos.
func (r *Reporter) Error(pos Pos, msg string) {
	r.report(Diagnostic{Pos: pos, Severity: SeverityError, Message: msg})
}

// Errorf reports an error without a position.
func (r *Reporter) Errorf(format string, args ...any) {
	r.report(Diagnostic{Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

// Warn reports a warning at pos.
func (r *Reporter) Warn(pos Pos, msg string) {
	r.report(Diagnostic{Pos: pos, Severity: SeverityWarning, Message: msg})
}

func (r *Reporter) report(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Severity == SeverityError {
		r.errors++
	} else {
		r.warnings++
	}
	r.diags = append(r.diags, d)
	if r.w == nil {
		return
	}
	if r.format == "json" {
		_ = json.NewEncoder(r.w).Encode(struct {
			File     string `json:"file,omitempty"`
			Line     int    `json:"line,omitempty"`
			Severity string `json:"severity"`
			Message  string `json:"message"`
		}{d.Pos.File, d.Pos.Line, d.Severity.String(), d.Message})
		return
	}
	if pos := d.Pos.String(); pos != "" {
		fmt.Fprintf(r.w, "%s: %s: %s\n", pos, d.Severity, d.Message)
		return
	}
	fmt.Fprintf(r.w, "%s: %s\n", d.Severity, d.Message)
}

// HasErrors reports whether any error was reported.
func (r *Reporter) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount returns the number of errors reported.
func (r *Reporter) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

// Diagnostics returns a copy of everything reported so far.
func (r *Reporter) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.diags...)
}
