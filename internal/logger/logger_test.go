package logger

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware_LogsStatusAndLevel(t *testing.T) {
	tests := []struct {
		name    string
		handler fiber.Handler
		status  int
		level   zapcore.Level
	}{
		{"written status", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusTeapot) }, fiber.StatusTeapot, zap.InfoLevel},
		{"fiber error", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "gone") }, fiber.StatusNotFound, zap.InfoLevel},
		{"server error", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusBadGateway) }, fiber.StatusBadGateway, zap.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			app := fiber.New()
			app.Use(Middleware(zap.New(core)))
			app.Get("/thing", tt.handler)

			res, err := app.Test(httptest.NewRequest("GET", "/thing", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if res.StatusCode != tt.status {
				t.Fatalf("expected response %d, got %d", tt.status, res.StatusCode)
			}

			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected one log line, got %d", len(entries))
			}
			e := entries[0]
			fields := e.ContextMap()
			if e.Message != "request" || e.Level != tt.level {
				t.Fatalf("unexpected entry %q at %s", e.Message, e.Level)
			}
			if fields["status"] != int64(tt.status) || fields["method"] != "GET" || fields["path"] != "/thing" {
				t.Fatalf("unexpected fields %v", fields)
			}
			if _, ok := fields["latency"]; !ok {
				t.Fatalf("expected latency field, got %v", fields)
			}
		})
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
	log, err := New("debug", "console")
	if err != nil || !log.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected a debug logger, got %v", err)
	}
}
