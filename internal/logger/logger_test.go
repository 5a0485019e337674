package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	ctx := Ctx(context.Background(), slog.String("request_id", "req-1"))
	ctx = Ctx(ctx, slog.String("mixer_id", "m-1"))
	log.With("component", "api").InfoContext(ctx, "hello")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{
		"msg":        "hello",
		"request_id": "req-1",
		"mixer_id":   "m-1",
		"component":  "api",
	} {
		if diff := cmp.Diff(want, got[k]); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", k, diff)
		}
	}
}

func TestCtxDoesNotShareAttributes(t *testing.T) {
	base := Ctx(context.Background(), slog.String("a", "1"))
	first := Ctx(base, slog.String("b", "2"))
	second := Ctx(base, slog.String("c", "3"))

	got := func(ctx context.Context) []string {
		var keys []string
		for _, a := range ctx.Value(attrKey).([]slog.Attr) {
			keys = append(keys, a.Key)
		}
		return keys
	}
	if diff := cmp.Diff([]string{"a", "b"}, got(first)); diff != "" {
		t.Errorf("first mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "c"}, got(second)); diff != "" {
		t.Errorf("second mismatch (-want +got):\n%s", diff)
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		wantOut bool
	}{
		{level: "debug", wantOut: true},
		{level: "info", wantOut: false},
		{level: "bogus", wantOut: false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			New(&buf, tt.level, "text").Debug("detail")
			if diff := cmp.Diff(tt.wantOut, buf.Len() > 0); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
