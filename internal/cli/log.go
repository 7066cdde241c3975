// Package cli implements the knotview command-line interface.
//
// Commands build a scene from a grammar on a headless canvas and report on
// it, serve it over HTTP, or manage the grammar store and payload cache. The
// CLI is built using cobra and logs via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - render: Build a scene, draw a frame, optionally pick and trace
//   - plots: Print the data a scene sends to its linked plots
//   - graph: Draw the layer/knot/plot dependency graph as DOT or SVG
//   - serve: Expose a scene over HTTP with a websocket status stream
//   - browse: Toggle knot visibility interactively
//   - grammar: Validate grammars and manage stored grammars
//   - cache: Manage the payload cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Example
//
//	c := cli.New(os.Stderr, cli.LogInfo)
//	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/grammar"
)

// newLogger creates the CLI logger: timestamps as "15:04:05.00", messages
// below level dropped.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress times a multi-stage operation. Each stage is logged at debug
// level as it finishes; done logs the total at info level.
type progress struct {
	logger *log.Logger
	start  time.Time
	last   time.Time
	stages []string
}

func newProgress(l *log.Logger) *progress {
	now := time.Now()
	return &progress{logger: l, start: now, last: now}
}

// stage marks the end of a named stage.
func (p *progress) stage(name string) {
	now := time.Now()
	d := now.Sub(p.last).Round(time.Millisecond)
	p.last = now
	p.stages = append(p.stages, fmt.Sprintf("%s=%s", name, d))
	p.logger.Debug("stage done", "stage", name, "elapsed", d)
}

// done logs msg with the elapsed time, e.g. "Loaded 3 layers (1.234s)".
func (p *progress) done(msg string) {
	total := time.Since(p.start).Round(time.Millisecond)
	if len(p.stages) > 0 {
		p.logger.Infof("%s (%s; %s)", msg, total, strings.Join(p.stages, " "))
		return
	}
	p.logger.Infof("%s (%s)", msg, total)
}

// logStatus returns a status function that logs scene events at debug level.
func logStatus(l *log.Logger) grammar.StatusFunc {
	return func(key string, value any) {
		switch v := value.(type) {
		case []grammar.KnotData:
			highlighted := 0
			for _, d := range v {
				highlighted += d.HighlightedCount()
			}
			l.Debug("status", "key", key, "knots", len(v), "highlighted", highlighted)
		case map[string][]int:
			l.Debug("status", "key", key, "selection", v)
		case [][]string:
			l.Debug("status", "key", key, "groups", v)
		default:
			l.Debug("status", "key", key)
		}
	}
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
