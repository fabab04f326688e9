package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/chainguard-dev/clog"
)

func TestLoggerText(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		log     func(l *Logger)
		want    string
		wantOut bool
	}{
		{
			name:    "success has emoji",
			log:     func(l *Logger) { l.Success("Created PR #%d", 7) },
			want:    successEmoji + "Created PR #7",
			wantOut: true,
		},
		{
			name:    "branch event",
			log:     func(l *Logger) { l.Branch("Branch: %s", "gitfix/1") },
			want:    "event=branch",
			wantOut: true,
		},
		{
			name:    "debug suppressed",
			log:     func(l *Logger) { l.Debug("hidden") },
			wantOut: false,
		},
		{
			name:    "debug enabled",
			debug:   true,
			log:     func(l *Logger) { l.Debug("visible") },
			want:    "visible",
			wantOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithOptions(Options{Debug: tt.debug, Output: &buf})
			tt.log(l)

			out := buf.String()
			if !tt.wantOut {
				if out != "" {
					t.Errorf("Expected no output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("Expected output to contain %q, got %q", tt.want, out)
			}
		})
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{JSON: true, Output: &buf})
	l.With("thread", "t-1").PR("URL: %s", "https://github.com/acme/widget/pull/7")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "URL: https://github.com/acme/widget/pull/7" {
		t.Errorf("Expected plain message without emoji, got %v", rec["msg"])
	}
	if rec["event"] != "pr" {
		t.Errorf("Expected event pr, got %v", rec["event"])
	}
	if rec["thread"] != "t-1" {
		t.Errorf("Expected thread attribute, got %v", rec["thread"])
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions(Options{Output: &buf})
	ctx := l.With("request_id", "abc").WithContext(context.Background())

	clog.FromContext(ctx).Info("from clog")
	FromContext(ctx, l).Warning("from wrapper")

	out := buf.String()
	if strings.Count(out, "request_id=abc") != 2 {
		t.Errorf("Expected both lines to carry request_id, got %q", out)
	}
}

func TestFormatMessage(t *testing.T) {
	got := formatMessage("line one  \n\n  \nline two\n")
	want := "line one\nline two"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
