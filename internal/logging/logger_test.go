package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/merchantlens/merchantlens/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", raw, err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel).With("component", "scanner")

	logger.Debug("hidden")
	logger.Info("Scan finished",
		"merchants", 3,
		"error", errors.New("partial"),
		"elapsed", 1500*time.Millisecond,
		"dangling")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line["message"] != "Scan finished" {
		t.Errorf("Unexpected message %v", line["message"])
	}
	if line["component"] != "scanner" {
		t.Errorf("Expected component field, got %v", line["component"])
	}
	if line["merchants"] != float64(3) {
		t.Errorf("Expected merchants 3, got %v", line["merchants"])
	}
	if line["error"] != "partial" {
		t.Errorf("Expected error string, got %v", line["error"])
	}
	if _, ok := line["dangling"]; ok {
		t.Error("Odd trailing key should be dropped")
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithMerchantID(ctx, "m-1")
	ctx = WithLogger(ctx, logger)

	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("Expected request ID req-1, got %q", got)
	}

	FromContext(ctx).Warn("Slow query")

	line := decodeLines(t, &buf)[0]
	if line["request_id"] != "req-1" || line["merchant_id"] != "m-1" {
		t.Errorf("Expected request fields, got %v", line)
	}
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	previous := Global()
	SetGlobal(NewWithWriter(&buf, zerolog.InfoLevel))
	defer SetGlobal(previous)

	FromContext(context.Background()).Info("hello")
	Info("again")

	if lines := decodeLines(t, &buf); len(lines) != 2 {
		t.Errorf("Expected 2 lines on the global logger, got %d", len(lines))
	}
}

func TestNewFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewFromConfig(config.LoggingConfig{Level: "warn", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")

	if _, err := NewFromConfig(config.LoggingConfig{Level: "bogus", OutputPath: "stdout"}); err != nil {
		t.Errorf("Unknown level should fall back to info, got %v", err)
	}
}

func TestFiberMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, zerolog.InfoLevel)

	app := fiber.New()
	app.Use(FiberMiddleware(logger, DefaultMiddlewareConfig()))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/v1/merchants/:merchant_id/anomalies", func(c *fiber.Ctx) error {
		if RequestID(c.UserContext()) == "" {
			t.Error("Request ID missing from user context")
		}
		return c.Status(fiber.StatusNotFound).SendString("missing")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request ID header")
	}
	if buf.Len() != 0 {
		t.Errorf("Skipped path should not log, got %q", buf.String())
	}

	req := httptest.NewRequest("GET", "/v1/merchants/m-9/anomalies", nil)
	req.Header.Set(RequestIDHeader, "abc")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d", len(lines))
	}
	line := lines[0]
	if line["level"] != "warn" {
		t.Errorf("Expected warn for a 404, got %v", line["level"])
	}
	if line["request_id"] != "abc" {
		t.Errorf("Unexpected request fields: %v", line)
	}
}

func TestNewFromConfig_Off(t *testing.T) {
	logger, err := NewFromConfig(config.LoggingConfig{Level: "OFF", OutputPath: "/nonexistent/dir/app.log"})
	if err != nil {
		t.Fatalf("Level off should not open the output, got %v", err)
	}
	logger.Error("discarded")
}
