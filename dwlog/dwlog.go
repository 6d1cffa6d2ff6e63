// Package dwlog is the one chokepoint every other package logs through.
//
// The teacher (Direwolf) routes all diagnostics through a single
// text_color_set/dw_printf pair so the whole application has one
// consistent severity vocabulary. dwlog keeps that shape but backs it
// with github.com/charmbracelet/log instead of ANSI color codes plus
// printf.
package dwlog

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	current = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
)

// SetOutput redirects every future log call to w. Tests use this to
// capture output instead of spamming stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	current = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
}

// Logger is the interface every component depends on. A *log.Logger
// satisfies it, as does anything returned by With.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}

// For returns a logger tagged with a component name, e.g. dwlog.For("t30").
// Analogous to the teacher prefixing dw_printf output with a subsystem tag.
func For(component string) Logger {
	mu.Lock()
	defer mu.Unlock()
	return current.With("component", component)
}

// Root returns the shared root logger, for components that want to add
// their own structured fields via With.
func Root() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return current
}
