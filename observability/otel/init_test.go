package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization=Bearer abc , x-team=presale,broken, =empty")
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %v", headers)
	}
	if headers["authorization"] != "Bearer abc" || headers["x-team"] != "presale" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	cfg := FromSettings("presaled", "test", "", "", false, false, false)
	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{Traces: true}); err == nil {
		t.Fatalf("expected error without service name")
	}
}
