package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInit(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	tests := []struct {
		name    string
		config  *Config
		logged  bool
		jsonOut bool
	}{
		{"debug level text", &Config{Level: "debug", Format: "text"}, true, false},
		{"info level json", &Config{Level: "info", Format: "json"}, true, true},
		{"warn level drops info", &Config{Level: "warn", Format: "text"}, false, false},
		{"default level", &Config{Level: "invalid", Format: "text"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf
			l := Init(tt.config)
			if l != slog.Default() {
				t.Error("Init should install the logger as default")
			}
			slog.Info("extract.done", "chars", 42)

			out := buf.String()
			if tt.logged != strings.Contains(out, "extract.done") {
				t.Errorf("unexpected output %q", out)
			}
			if tt.jsonOut {
				var m map[string]any
				if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &m); err != nil {
					t.Fatalf("expected JSON output: %v", err)
				}
				if m["msg"] != "extract.done" {
					t.Errorf("msg = %v", m["msg"])
				}
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithAnalysisID(ctx, "an-2")
	ctx = WithTool(ctx, "contract_scan_text")

	WithContext(ctx, base).Info("analysis.done")

	out := buf.String()
	for _, want := range []string{"request_id=req-1", "analysis_id=an-2", "tool=contract_scan_text"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestWithContextEmpty(t *testing.T) {
	if WithContext(context.Background(), nil) == nil {
		t.Error("Expected non-nil logger")
	}
}
