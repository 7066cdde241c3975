package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knotview/pkg/grammar"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", log.InfoLevel, func(l *log.Logger) { l.Info("frame") }, true},
		{"debug at info level", log.InfoLevel, func(l *log.Logger) { l.Debug("frame") }, false},
		{"debug at debug level", log.DebugLevel, func(l *log.Logger) { l.Debug("frame") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgressStages(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, log.DebugLevel))
	prog.stage("grammar")
	prog.stage("init")
	prog.done("Loaded 2 layers")

	out := buf.String()
	for _, want := range []string{"stage=grammar", "stage=init", "Loaded 2 layers", "grammar=", "init="} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressWithoutStages(t *testing.T) {
	var buf bytes.Buffer
	newProgress(newLogger(&buf, log.InfoLevel)).done("Loaded 0 layers")
	if !strings.Contains(buf.String(), "Loaded 0 layers (") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestLogStatus(t *testing.T) {
	var buf bytes.Buffer
	status := logStatus(newLogger(&buf, log.DebugLevel))

	status(grammar.StatusPlotsData, []grammar.KnotData{{
		KnotID:   "elev",
		Elements: []grammar.Element{{Highlighted: true}, {}, {Highlighted: true}},
	}})
	status(grammar.StatusLayersIDs, [][]string{{"elev", "shade"}})
	status("other", 42)

	out := buf.String()
	for _, want := range []string{"key=plotsData", "knots=1", "highlighted=2", "key=layersIds", "key=other"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) == nil {
		t.Fatal("loggerFromContext should fall back to the default logger")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)
	ctx := withLogger(context.Background(), custom)
	if loggerFromContext(ctx) != custom {
		t.Error("loggerFromContext should return the attached logger")
	}
}
