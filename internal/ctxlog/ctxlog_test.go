// SPDX-License-Identifier: MPL-2.0

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContext_Default(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("expected slog.Default() when no logger is set")
	}
}

func TestWithLogger_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	if FromContext(ctx) != logger {
		t.Fatal("expected stored logger")
	}

	With(ctx, "module", "logger_manager").Value(loggerKey).(*slog.Logger).Info("hello")
	if !strings.Contains(buf.String(), "module=logger_manager") {
		t.Errorf("expected attribute in output, got %q", buf.String())
	}
}
